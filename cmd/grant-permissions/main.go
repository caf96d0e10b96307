package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exproctor-backend/internal/config"
	"github.com/stemsi/exproctor-backend/internal/database"
	"github.com/stemsi/exproctor-backend/internal/logger"
	"github.com/stemsi/exproctor-backend/internal/model"
	"github.com/stemsi/exproctor-backend/internal/repository"
	"github.com/stemsi/exproctor-backend/internal/service"
)

func main() {
	var email string
	flag.StringVar(&email, "email", "", "Email of the admin to grant every permission")
	flag.Parse()

	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Println("Usage: grant-permissions -email admin@example.com")
		os.Exit(2)
	}

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	adminService := service.NewAdminService(repository.NewAdminRepository(pool), cfg.BcryptCost)

	fmt.Println("=== Grant All Permissions ===")
	fmt.Printf("Permissions: %s\n", strings.Join(model.PermissionCodes(), ", "))

	id, err := adminService.GrantAll(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		fmt.Printf("Error: no admin with email %s\n", email)
		os.Exit(1)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to update permissions")
	}

	fmt.Printf("\nSuccess! Admin #%d (%s) now has full access.\n", id, email)
}
