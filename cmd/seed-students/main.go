package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/stemsi/exproctor-backend/internal/config"
	"github.com/stemsi/exproctor-backend/internal/database"
	"github.com/stemsi/exproctor-backend/internal/logger"
	"github.com/stemsi/exproctor-backend/internal/model"
	"github.com/stemsi/exproctor-backend/internal/repository"
	"github.com/stemsi/exproctor-backend/internal/service"
)

// Seeds approved student accounts for local testing and load runs.
func main() {
	var (
		count    int
		course   string
		password string
		domain   string
	)
	flag.IntVar(&count, "count", 50, "Number of students to create")
	flag.StringVar(&course, "course", "Computer Science", "Course assigned to every seeded student")
	flag.StringVar(&password, "password", "exproctor123", "Password shared by every seeded student")
	flag.StringVar(&domain, "domain", "students.local", "Email domain for generated accounts")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	studentService := service.NewStudentService(repository.NewStudentRepository(pool), cfg.BcryptCost, log)

	fmt.Printf("=== Seeding %d Students (%s) ===\n", count, course)

	created, skipped := 0, 0
	for i := 1; i <= count; i++ {
		req := model.RegisterStudentRequest{
			Email:    fmt.Sprintf("student%03d@%s", i, domain),
			Name:     fmt.Sprintf("Student %03d", i),
			Course:   course,
			Password: password,
		}

		student, err := studentService.Register(ctx, req)
		if errors.Is(err, repository.ErrDuplicateEmail) {
			skipped++
			continue
		}
		if err != nil {
			fmt.Printf("Error creating %s: %v\n", req.Email, err)
			continue
		}

		if err := studentService.Review(ctx, student.ID, model.StudentStatusApproved); err != nil {
			fmt.Printf("Error approving %s: %v\n", req.Email, err)
			continue
		}

		created++
		if created%10 == 0 {
			fmt.Printf("Created %d students...\n", created)
		}
	}

	fmt.Printf("\nSeed completed! Added %d/%d students (%d already existed).\n", created, count, skipped)
}
