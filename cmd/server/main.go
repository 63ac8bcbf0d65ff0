package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kdimtricp/crackscan/internal/analysis"
	"github.com/kdimtricp/crackscan/internal/api"
	"github.com/kdimtricp/crackscan/internal/config"
	"github.com/kdimtricp/crackscan/internal/database"
	"github.com/kdimtricp/crackscan/internal/inference"
	"github.com/kdimtricp/crackscan/internal/logging"
	"github.com/kdimtricp/crackscan/internal/report"
	"github.com/kdimtricp/crackscan/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	localStorage, err := storage.NewLocalStorage(cfg.UploadDir)
	if err != nil {
		logger.Fatalw("failed to initialize storage", "error", err)
	}

	db, err := database.NewDB(cfg.Database)
	if err != nil {
		logger.Fatalw("failed to initialize database", "error", err)
	}
	defer db.Close()

	source := "embedded"
	if cfg.MigrationsPath != "" {
		source = cfg.MigrationsPath
	}
	logger.Infow("running database migrations", "source", source)
	if err := db.RunMigrations(database.MigrationSource(cfg.MigrationsPath), logger); err != nil {
		logger.Fatalw("failed to run migrations", "error", err)
	}

	detector, classifier, err := inference.Open(cfg.Inference)
	if err != nil {
		logger.Fatalw("failed to initialize inference", "error", err)
	}
	if cfg.Inference.Mode == inference.ModeRemote {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := inference.NewRemoteClient(cfg.Inference.URL, cfg.Inference.Timeout).CheckHealth(ctx); err != nil {
			logger.Warnw("inference server is not healthy yet", "url", cfg.Inference.URL, "error", err)
		}
		cancel()
	}

	svc := analysis.NewService(
		detector,
		classifier,
		database.NewAnalysisRepo(db),
		localStorage,
		analysis.Config{NoveltyThreshold: cfg.NoveltyThreshold},
		logger,
	)

	app := &api.App{
		Analysis:      svc,
		Reports:       report.NewGenerator(logger),
		DB:            db,
		MaxUploadSize: cfg.MaxUploadSize,
		Logger:        logger,
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(app, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("shutdown failed", "error", err)
		}
	}()

	logger.Infow("server starting",
		"port", cfg.Port,
		"upload_dir", cfg.UploadDir,
		"database", cfg.Database.String(),
		"inference", cfg.Inference.Mode,
		"novelty_threshold", cfg.NoveltyThreshold,
		"max_upload_size", cfg.MaxUploadSize,
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalw("server failed", "error", err)
	}
	logger.Info("server stopped")
}
