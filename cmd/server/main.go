package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/leekyio/api/internal/app"
	"github.com/leekyio/api/internal/app/engine"
	"github.com/leekyio/api/internal/config"
	"github.com/leekyio/api/internal/infra/github"
	"github.com/leekyio/api/internal/infra/http"
	"github.com/leekyio/api/internal/infra/http/handler"
	"github.com/leekyio/api/internal/infra/jobs"
	"github.com/leekyio/api/internal/infra/postgres"
	"github.com/leekyio/api/internal/infra/redis"
	"github.com/leekyio/api/pkg/crypto"
	"github.com/leekyio/api/pkg/logger"
	"github.com/leekyio/api/pkg/migrations"
	"github.com/leekyio/api/pkg/validator"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	// ==========================================================================
	// Configuration & Logger
	// ==========================================================================
	cfg, err := config.Load()
	if err != nil {
		log := logger.NewDefault()
		log.Error("failed to load configuration", "error", err)
		return 1
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env)

	// ==========================================================================
	// Infrastructure
	// ==========================================================================
	db, err := postgres.New(&cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return 1
	}
	defer closeWithLog(db, "database", log)
	log.Info("database connected")

	runner := migrations.NewRunner(db.DB, cfg.Database.MigrationsDir)
	if err := runner.Up(ctx); err != nil {
		log.Error("failed to run migrations", "error", err)
		return 1
	}
	log.Info("migrations applied")

	redisClient, err := redis.New(&cfg.Redis, log)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		return 1
	}
	defer closeWithLog(redisClient, "redis", log)
	log.Info("redis connected")

	cipher, err := initEncryptor(cfg, log)
	if err != nil {
		log.Error("failed to initialize encryption", "error", err)
		return 1
	}

	// ==========================================================================
	// Repositories
	// ==========================================================================
	scanRepo := postgres.NewScanRepository(db)
	findingRepo := postgres.NewFindingRepository(db)
	credentialRepo := postgres.NewCredentialRepository(db)

	// ==========================================================================
	// Job Queue
	// ==========================================================================
	jobClient, err := jobs.NewClient(jobs.ClientConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
	}, log)
	if err != nil {
		log.Error("failed to initialize job client", "error", err)
		return 1
	}
	defer closeWithLog(jobClient, "job client", log)

	// ==========================================================================
	// Services
	// ==========================================================================
	v := validator.New()
	scanService := app.NewScanService(scanRepo, findingRepo, jobs.NewScanQueueAdapter(jobClient), v, log)
	credentialService := app.NewCredentialService(credentialRepo, cipher, v, log)

	// ==========================================================================
	// Scan Engine & Workers
	// ==========================================================================
	searcher := github.NewClient(github.Config{
		BaseURL:        cfg.GitHub.BaseURL,
		Timeout:        cfg.GitHub.RequestTimeout,
		MinInterval:    cfg.GitHub.MinInterval,
		PerPage:        cfg.GitHub.PerPage,
		MaxHits:        cfg.GitHub.MaxHitsPerQuery,
		MaxRetries:     cfg.GitHub.MaxRetries,
		DefaultBackoff: cfg.GitHub.DefaultBackoff,
		FetchContent:   cfg.GitHub.FetchContent,
	}, log)

	orchestrator := engine.NewOrchestrator(
		scanRepo,
		findingRepo,
		credentialRepo,
		cipher,
		searcher,
		engine.NewExtractor(
			engine.WithExcludedPrefixes(cfg.Engine.ExcludedPathPrefixes),
			engine.WithMaxPerFile(cfg.Engine.MaxFindingsPerFile),
			engine.WithRawContentLimit(cfg.Engine.RawContentLimit),
		),
		engine.NewClassifier(
			engine.WithSensitiveExtensions(cfg.Engine.SensitiveExtensions),
		),
		log,
	)

	var worker *jobs.Worker
	if cfg.Worker.Enabled {
		worker, err = jobs.NewWorker(jobs.WorkerConfig{
			RedisAddr:     cfg.Redis.Addr(),
			RedisPassword: cfg.Redis.Password,
			RedisDB:       cfg.Redis.DB,
			Concurrency:   cfg.Worker.Concurrency,
		}, orchestrator, log)
		if err != nil {
			log.Error("failed to initialize worker", "error", err)
			return 1
		}
		if err := worker.Start(); err != nil {
			log.Error("failed to start worker", "error", err)
			return 1
		}
		log.Info("worker started", "concurrency", cfg.Worker.Concurrency)
	}

	// ==========================================================================
	// HTTP Server
	// ==========================================================================
	server := http.NewServer(cfg, log, http.Handlers{
		Scan:       handler.NewScanHandler(scanService, log),
		Credential: handler.NewCredentialHandler(credentialService, log),
		Health:     handler.NewHealthHandler(handler.WithDatabase(db), handler.WithRedis(redisClient)),
	})

	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", "error", err)
		}
	}()
	log.Info("application started", "http_addr", cfg.Server.Addr())

	// ==========================================================================
	// Graceful Shutdown
	// ==========================================================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if worker != nil {
		worker.Stop()
		log.Info("worker stopped")
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		return 1
	}

	log.Info("application stopped")
	return 0
}

func initEncryptor(cfg *config.Config, log *logger.Logger) (crypto.Encryptor, error) {
	if cfg.Encryption.Key == "" {
		log.Warn("encryption key not set, storing credentials unencrypted")
		return crypto.NewNoOpEncryptor(), nil
	}
	return crypto.NewCipherFromHex(cfg.Encryption.Key)
}

type closer interface {
	Close() error
}

func closeWithLog(c closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}
