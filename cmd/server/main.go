package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mwalcott/taskline/internal"
	"github.com/mwalcott/taskline/internal/email"
	"github.com/mwalcott/taskline/internal/handler"
	"github.com/mwalcott/taskline/internal/jobs"
	"github.com/mwalcott/taskline/internal/metrics"
	"github.com/mwalcott/taskline/internal/middleware"
	"github.com/mwalcott/taskline/internal/repository"
	"github.com/mwalcott/taskline/internal/service"
	"github.com/mwalcott/taskline/internal/session"
	"github.com/mwalcott/taskline/internal/storage"
	"github.com/mwalcott/taskline/internal/token"
	"github.com/mwalcott/taskline/internal/worker"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository
	repo := repository.New(db)

	// Initialize object storage
	store, err := newStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	// Token codecs. The application signs and verifies with the JWT codec;
	// the gatekeeper verifies with the lightweight HMAC codec. Both read the
	// same secret and speak the same wire format, so either one accepts
	// tokens issued by the other.
	appCodec := token.NewJWTCodec(cfg.SessionSecret)
	edgeCodec := token.NewHMACCodec(cfg.SessionSecret)

	appExtractor := session.NewExtractor(appCodec, logger)
	edgeExtractor := session.NewExtractor(edgeCodec, logger)

	// Notification emails are optional; without SMTP the jobs are never enqueued
	var emailService email.Service
	if cfg.EmailEnabled() {
		emailService, err = email.NewSMTPService(email.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		}, cfg.BaseURL, logger)
		if err != nil {
			return fmt.Errorf("email initialization failed: %w", err)
		}
	}

	// Initialize services
	userService := service.NewUserService(repo, appCodec, logger)
	workspaceService := service.NewWorkspaceService(repo, cfg.EmailEnabled(), logger)
	projectService := service.NewProjectService(repo, workspaceService, logger)
	taskService := service.NewTaskService(repo, workspaceService, logger)
	attachmentService := service.NewAttachmentService(repo, store, workspaceService, logger)

	// Background worker for notification emails and attachment cleanup
	workerCfg := worker.DefaultConfig()
	workerCfg.Concurrency = cfg.WorkerConcurrency
	workerCfg.PollInterval = cfg.WorkerPollInterval
	jobWorker, err := worker.New(db, repo, workerCfg, logger)
	if err != nil {
		return fmt.Errorf("worker initialization failed: %w", err)
	}
	if emailService != nil {
		jobWorker.Register(jobs.NewNotifyMemberAddedHandler(repo, emailService, logger))
	}
	jobWorker.Register(jobs.NewPurgeAttachmentsHandler(store, logger))
	jobWorker.Start(ctx)
	defer jobWorker.Stop()

	// Initialize handlers
	isSecure := cfg.IsSecure()
	authHandler := handler.NewAuthHandler(userService, appExtractor, logger, isSecure)
	workspaceHandler := handler.NewWorkspaceHandler(workspaceService, logger)
	projectHandler := handler.NewProjectHandler(projectService, logger)
	taskHandler := handler.NewTaskHandler(taskService, logger)
	attachmentHandler := handler.NewAttachmentHandler(attachmentService, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics, behind basic auth when credentials are configured
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	// Locally stored attachment files (development storage provider)
	if cfg.StorageProvider == storage.ProviderLocal {
		filesFS := http.FileServer(http.Dir(cfg.LocalStoragePath))
		mux.Handle("GET /files/", http.StripPrefix("/files/", filesFS))
	}

	// Auth routes, with per-endpoint rate limits on the credential paths
	authLimiter := middleware.NewAuthRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow, logger)
	mux.Handle("POST /api/auth/register", authLimiter.LimitRegister(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /api/auth/login", authLimiter.LimitLogin(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.HandleFunc("GET /api/auth/verify", authHandler.Verify)
	mux.HandleFunc("GET /api/auth/user", authHandler.User)

	// Domain routes. The gatekeeper already screens everything under /api
	// at the edge; RequireIdentity re-checks with the full JWT codec so
	// these handlers can assume a verified identity in context.
	domainMux := http.NewServeMux()
	workspaceHandler.RegisterRoutes(domainMux)
	projectHandler.RegisterRoutes(domainMux)
	taskHandler.RegisterRoutes(domainMux)
	attachmentHandler.RegisterRoutes(domainMux)

	requireIdentity := middleware.NewRequireIdentity(appExtractor, logger)
	domainRoutes := requireIdentity.Handler(domainMux)
	for _, prefix := range []string{
		"/api/workspaces", "/api/workspaces/",
		"/api/projects/", "/api/tasks/", "/api/attachments/",
	} {
		mux.Handle(prefix, domainRoutes)
	}

	// ==========================================================================
	// Middleware stack
	// ==========================================================================

	gatekeeper := middleware.NewGatekeeper(edgeExtractor, logger, isSecure)
	securityHeaders := middleware.NewSecurityHeadersMiddleware(isSecure)
	requestLogging := middleware.NewRequestLoggingMiddleware(logger)
	csrfProtection := middleware.NewCSRFMiddleware(isSecure, logger)

	root := middleware.Stack(
		requestLogging.Handler,
		metrics.Middleware,
		securityHeaders.Handler,
		csrfProtection.Handler,
		gatekeeper.Handler,
	)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// newStorage builds the configured storage backend.
func newStorage(cfg *internal.Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.StorageProvider {
	case storage.ProviderS3:
		return storage.NewS3Storage(storage.S3Config{
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			BucketName:      cfg.S3BucketName,
			PublicURL:       cfg.S3PublicURL,
			Region:          cfg.S3Region,
		}, logger)
	case storage.ProviderLocal:
		return storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.StorageProvider)
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
