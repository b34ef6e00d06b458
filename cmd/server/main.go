package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stemsi/modexam-backend/internal/config"
	"github.com/stemsi/modexam-backend/internal/database"
	"github.com/stemsi/modexam-backend/internal/engine"
	"github.com/stemsi/modexam-backend/internal/handler"
	"github.com/stemsi/modexam-backend/internal/logger"
	"github.com/stemsi/modexam-backend/internal/metrics"
	"github.com/stemsi/modexam-backend/internal/middleware"
	"github.com/stemsi/modexam-backend/internal/repository"
	"github.com/stemsi/modexam-backend/internal/router"
	"github.com/stemsi/modexam-backend/internal/service"
	"github.com/stemsi/modexam-backend/internal/validator"
	"github.com/stemsi/modexam-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("expiry_policy", cfg.ExpiryPolicy).
		Msg("Starting modexam backend")

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET must be set")
	}

	// ─── Initialize Validator & Metrics ────────────────────────────────
	validator.Setup()
	metrics.Register(prometheus.DefaultRegisterer)

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

	// ─── Initialize Repositories ───────────────────────────────────────
	questionRepo := repository.NewQuestionRepository(pool)
	moduleRepo := repository.NewModuleRepository(pool)
	testRepo := repository.NewTestRepository(pool)
	resultRepo := repository.NewTestResultRepository(pool)
	assignRepo := repository.NewAssignmentRepository(pool)
	monitorRepo := repository.NewMonitorRepository(pool, rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry)
	sessionService := service.NewSessionService(pool, resultRepo, assignRepo, testRepo, moduleRepo, rdb, cfg.ModuleCacheTTL, log)
	testService := service.NewTestService(testRepo, moduleRepo, rdb, log)
	questionService := service.NewQuestionService(pool, questionRepo, moduleRepo, log)
	assignmentService := service.NewAssignmentService(assignRepo, testRepo, log)
	monitorService := service.NewMonitorService(monitorRepo, testRepo, rdb, log)
	lease := service.NewEngineLease(rdb, cfg.EngineLease)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		StudentPortal: handler.NewStudentPortalHandler(sessionService),
		WS: handler.NewWSHandler(sessionService, lease, log, handler.WSOptions{
			AllowedOrigins:  cfg.AllowedOrigins,
			Expiry:          engine.ParseExpiryPolicy(cfg.ExpiryPolicy),
			TickInterval:    cfg.TickInterval,
			CheckpointEvery: cfg.CheckpointEveryTicks,
			LeaseTTL:        cfg.EngineLease,
		}),
		Question:   handler.NewQuestionHandler(questionService),
		Test:       handler.NewTestHandler(testService),
		Assignment: handler.NewAssignmentHandler(assignmentService, sessionService),
		Monitor:    handler.NewMonitorHandler(monitorService, log),
		System:     handler.NewSystemHandler(pool, rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})

	checkpointWorker := worker.NewCheckpointWorker(sessionService, rdb, log)
	go func() {
		defer close(workerDone)
		checkpointWorker.Start(workerCtx)
	}()

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	limiterDone := make(chan struct{})
	limiter.StartCleanup(limiterDone)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, limiter, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests. Hijacked WebSocket connections
	// are not tracked by Shutdown; each flushes its own checkpoint on close.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	close(limiterDone)

	// 2. Stop the checkpoint worker and wait for its queue to drain.
	workerCancel()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("Checkpoint worker did not drain in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
