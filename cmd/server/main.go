package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"secureshare/internal/server/api"
	"secureshare/internal/server/config"
	"secureshare/internal/server/database"
	"secureshare/internal/server/notify"
	"secureshare/internal/server/scanner"
	"secureshare/internal/server/service"
	"secureshare/internal/server/storage"
)

func main() {
	// Structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load config
	cfg := config.Load()
	slog.Info("configuration loaded",
		"port", cfg.Port,
		"storage_backend", cfg.StorageBackend,
		"classifier_backend", cfg.ClassifierBackend,
		"max_upload_size", cfg.MaxUploadSize,
	)

	// Connect to database
	ctx := context.Background()
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	if err := db.RunMigrations(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations complete")

	// Initialize object storage
	var store storage.Store
	switch cfg.StorageBackend {
	case "filesystem":
		store, err = storage.NewFileSystemStore(cfg.StoragePath)
	default:
		store, err = storage.NewMinioStore(ctx, storage.MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	}
	if err != nil {
		slog.Error("failed to initialize storage", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	slog.Info("object storage initialized", "backend", cfg.StorageBackend)

	// Initialize classifier
	var classifier scanner.Classifier
	switch cfg.ClassifierBackend {
	case "clamd":
		classifier, err = scanner.NewClamdClassifier(cfg.ClamdURL)
		if err != nil {
			slog.Error("failed to connect to clamd", "error", err)
			os.Exit(1)
		}
	default:
		classifier = scanner.NewHTTPClassifier(cfg.ClassifierURL, cfg.ClassifierAPIKey, cfg.ScanTimeout)
	}
	slog.Info("classifier initialized", "backend", cfg.ClassifierBackend)

	// Optional event publishing over NATS
	var events *notify.EventPublisher
	if cfg.NATSURL != "" {
		events, err = notify.NewEventPublisher(cfg.NATSURL)
		if err != nil {
			slog.Error("failed to connect to NATS", "url", cfg.NATSURL, "error", err)
			os.Exit(1)
		}
		defer events.Close()
		slog.Info("event publishing enabled", "url", cfg.NATSURL)
	}

	// Upload rules
	rules := config.DefaultRules()
	if cfg.RulesPath != "" {
		rules, err = config.LoadRules(cfg.RulesPath)
		if err != nil {
			slog.Error("failed to load upload rules", "path", cfg.RulesPath, "error", err)
			os.Exit(1)
		}
		slog.Info("upload rules loaded", "path", cfg.RulesPath)
	}

	// Repository, notifier, and services
	repo := database.NewRepository(db)
	notifier := notify.New(repo, events)
	policy := service.TriagePolicy{
		AlertRisk:      cfg.AlertRisk,
		QuarantineRisk: cfg.QuarantineRisk,
		BanRisk:        cfg.BanRisk,
	}

	uploads := service.NewUploadService(repo, store, classifier, notifier, policy, rules, cfg.MaxUploadSize)
	shares := service.NewShareService(repo, notifier)
	scans := service.NewScanService(repo, classifier, notifier, policy)
	files := service.NewFileService(repo, store)

	// Authentication
	auth, err := api.NewAuthenticator(ctx, cfg.OIDCIssuer)
	if err != nil {
		slog.Error("failed to initialize authenticator", "issuer", cfg.OIDCIssuer, "error", err)
		os.Exit(1)
	}

	// Setup HTTP router
	handler := api.NewHandler(uploads, shares, scans, files, repo, db, store)
	e := api.SetupRouter(handler, auth, cfg)

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		slog.Info("starting server", "addr", addr)
		if err := e.Start(addr); err != nil {
			slog.Info("server stopped", "reason", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down", "signal", sig)

	// Stop accepting new requests, finish in-flight with 30s timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server exited cleanly")
}
