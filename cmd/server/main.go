package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exproctor-backend/internal/config"
	"github.com/stemsi/exproctor-backend/internal/database"
	"github.com/stemsi/exproctor-backend/internal/handler"
	"github.com/stemsi/exproctor-backend/internal/logger"
	"github.com/stemsi/exproctor-backend/internal/observability"
	"github.com/stemsi/exproctor-backend/internal/proctor"
	"github.com/stemsi/exproctor-backend/internal/repository"
	"github.com/stemsi/exproctor-backend/internal/router"
	"github.com/stemsi/exproctor-backend/internal/service"
	"github.com/stemsi/exproctor-backend/internal/validator"
	"github.com/stemsi/exproctor-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExProctor Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()
	if cfg.MetricsEnabled {
		observability.RegisterMetrics()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Load Face Detector ────────────────────────────────────────────
	detector, err := proctor.LoadPigoDetector(cfg.Proctor.FaceCascadePath, cfg.Proctor.PupilCascadePath, cfg.Proctor.FaceMinSize)
	if err != nil {
		log.Fatal().Err(err).
			Str("face_cascade", cfg.Proctor.FaceCascadePath).
			Str("pupil_cascade", cfg.Proctor.PupilCascadePath).
			Msg("Failed to load face detection cascades")
	}

	// ─── Initialize Repositories ───────────────────────────────────────
	studentRepo := repository.NewStudentRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	perfRepo := repository.NewPerformanceRepository(pool)
	proctorLogRepo := repository.NewProctorLogRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb, studentRepo, adminRepo)
	studentService := service.NewStudentService(studentRepo, cfg.BcryptCost, log)
	adminService := service.NewAdminService(adminRepo, cfg.BcryptCost)
	examService := service.NewExamService(examRepo, questionRepo, perfRepo, log)
	attemptService := service.NewAttemptService(
		examRepo, questionRepo, perfRepo,
		service.NewAttemptStore(rdb),
		cfg.Attempt, log,
	)
	mediaService := service.NewMediaService(cfg)
	reportService := service.NewReportService(perfRepo, proctorLogRepo)
	dashboardService := service.NewDashboardService(repository.NewDashboardRepository(pool))

	proctorStore := proctor.NewStore(cfg.Proctor.IdleTTL)
	proctorService := proctor.NewService(
		proctorStore,
		detector,
		worker.NewProctorLogQueue(rdb),
		proctor.NewRedisPublisher(rdb),
		proctor.Options{
			Thresholds:    proctor.ThresholdsFromConfig(cfg.Proctor),
			AreaThreshold: cfg.Proctor.FaceAreaThreshold,
		},
		log,
	)
	attemptService.OnSubmitted(proctorService.Forget)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:          handler.NewAuthHandler(authService, studentService, adminService, log),
		StudentPortal: handler.NewStudentPortalHandler(attemptService, examService, mediaService, log),
		StudentMgmt:   handler.NewStudentManagementHandler(studentService, authService, log),
		Exam:          handler.NewExamHandler(examService, reportService, mediaService, log),
		Media:         handler.NewMediaHandler(mediaService, log),
		WS:            handler.NewWSHandler(proctorService, attemptService, log, cfg.AllowedOrigins),
		Monitor:       handler.NewMonitorHandler(rdb, examService, reportService, log),
		Dashboard:     handler.NewDashboardHandler(dashboardService, log),
		System:        handler.NewSystemHandler(pool, rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	proctorLogWorker := worker.NewProctorLogWorker(proctorLogRepo, rdb, log)

	workers.Add(2)
	go func() {
		defer workers.Done()
		proctorLogWorker.Start(workerCtx)
	}()
	go func() {
		defer workers.Done()
		proctorStore.Run(workerCtx, time.Minute)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Let in-flight proctor log writes reach the queue.
	proctorService.Close()

	// 3. Stop background workers and wait for the queue to drain.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
