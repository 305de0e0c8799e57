package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DukeRupert/waitlist/internal"
	"github.com/DukeRupert/waitlist/internal/billing"
	"github.com/DukeRupert/waitlist/internal/email"
	"github.com/DukeRupert/waitlist/internal/handler"
	"github.com/DukeRupert/waitlist/internal/jobs"
	"github.com/DukeRupert/waitlist/internal/metrics"
	"github.com/DukeRupert/waitlist/internal/middleware"
	"github.com/DukeRupert/waitlist/internal/ratelimit"
	"github.com/DukeRupert/waitlist/internal/repository"
	"github.com/DukeRupert/waitlist/internal/scheduler"
	"github.com/DukeRupert/waitlist/internal/service"
	"github.com/DukeRupert/waitlist/internal/storage"
	"github.com/DukeRupert/waitlist/internal/worker"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
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
	if err := internal.RunMigrations(ctx, db, logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	store := repository.NewStore(db)

	// ==========================================================================
	// Infrastructure
	// ==========================================================================

	fileStorage, err := storage.New(storage.Config{
		Provider: cfg.StorageProvider,
		Local: storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		},
		R2: storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	logger.Info("storage ready", "provider", cfg.StorageProvider)

	limitStore, memoryStore, closeStore, err := newLimitStore(cfg)
	if err != nil {
		return fmt.Errorf("rate limit store initialization failed: %w", err)
	}
	defer closeStore()
	logger.Info("rate limit store ready", "backend", cfg.RateLimitStore)

	var billingService billing.Service
	if cfg.BillingEnabled() {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, billing.PriceConfig{
			ProPriceID:        cfg.StripeProPriceID,
			EnterprisePriceID: cfg.StripeEnterprisePriceID,
		})
	} else {
		logger.Warn("stripe not configured; billing endpoints disabled")
	}

	emailService := email.NewSMTPEmailService(email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, cfg.BaseURL, logger)

	// ==========================================================================
	// Services
	// ==========================================================================

	accountService := service.NewAccountService(store, logger)
	subscriptionService := service.NewSubscriptionService(store, logger)
	projectService := service.NewProjectService(store, subscriptionService, fileStorage, service.NewLogoProcessor(), logger)
	waitlistService := service.NewWaitlistService(store, subscriptionService, service.WaitlistConfig{BaseURL: cfg.BaseURL}, logger)
	experimentService := service.NewExperimentService(store, logger)
	campaignService := service.NewCampaignService(store, logger)
	exportService := service.NewExportService(store, fileStorage, logger)

	// ==========================================================================
	// Background work
	// ==========================================================================

	var jobWorker *worker.Worker
	if cfg.WorkerEnabled {
		workerCfg := worker.DefaultConfig()
		workerCfg.Concurrency = cfg.WorkerConcurrency
		workerCfg.PollInterval = cfg.WorkerPollInterval
		workerCfg.JobTimeout = cfg.WorkerJobTimeout

		jobWorker, err = worker.New(store, workerCfg, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		jobWorker.Register(jobs.NewSendCampaignHandler(store, emailService, logger))
		jobWorker.Register(jobs.NewExportSignupsHandler(store, fileStorage, logger))
	}

	sched := scheduler.New(logger)
	tasks := []scheduler.Task{
		scheduler.ExpireSubscriptionsTask(cfg.SubscriptionSweepSchedule, subscriptionService, logger),
		scheduler.CleanupSessionsTask(cfg.SessionCleanupSchedule, accountService, logger),
	}
	if memoryStore != nil {
		tasks = append(tasks, scheduler.SweepRateLimitsTask("@every 5m", memoryStore, logger))
	}
	for _, task := range tasks {
		if err := sched.Add(task); err != nil {
			return fmt.Errorf("schedule %s: %w", task.Name, err)
		}
	}

	// ==========================================================================
	// Middleware
	// ==========================================================================

	isSecure := !cfg.IsDevelopment()
	authMw := middleware.NewAuthMiddleware(accountService, logger, isSecure)
	loginLimit := middleware.NewRateLimitMiddleware(ratelimit.New(limitStore, ratelimit.Policy{
		MaxRequests: cfg.LoginRateLimit,
		Window:      cfg.LoginRateWindow,
	}, logger), logger)
	registerLimit := middleware.NewRateLimitMiddleware(ratelimit.New(limitStore, ratelimit.RegisterPolicy, logger), logger)
	joinLimit := middleware.NewRateLimitMiddleware(ratelimit.New(limitStore, ratelimit.Policy{
		MaxRequests: cfg.JoinRateLimit,
		Window:      cfg.JoinRateWindow,
	}, logger), logger)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	securityHeaders := middleware.NewSecurityHeadersMiddleware(isSecure)
	requestLogging := middleware.NewRequestLoggingMiddleware(logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	handler.NewHealthHandler(db, logger).RegisterRoutes(mux)
	handler.NewAuthHandler(accountService, logger, isSecure).RegisterRoutes(mux, authMw.Protected, loginLimit.Limit, registerLimit.Limit)
	handler.NewProjectHandler(projectService, experimentService, logger).RegisterRoutes(mux, authMw.Protected)
	handler.NewSignupHandler(waitlistService, exportService, logger).RegisterRoutes(mux, authMw.Protected)
	handler.NewCampaignHandler(campaignService, logger).RegisterRoutes(mux, authMw.Protected)
	handler.NewBillingHandler(billingService, subscriptionService, cfg.BaseURL, logger).RegisterRoutes(mux, authMw.Protected)
	handler.NewWebhookHandler(billingService, subscriptionService, logger).RegisterRoutes(mux)
	handler.NewPublicHandler(experimentService, waitlistService, logger, isSecure).RegisterRoutes(mux, joinLimit.Limit)

	if metricsAuth.Enabled() {
		mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))
	} else {
		logger.Warn("METRICS_USERNAME/METRICS_PASSWORD not set; /metrics not mounted")
	}

	if cfg.StorageProvider == storage.ProviderLocal {
		files := http.FileServer(http.Dir(cfg.LocalStoragePath))
		mux.Handle("GET /files/", http.StripPrefix("/files/", files))
	}

	root := middleware.Stack(
		securityHeaders.Handler,
		requestLogging.Handler,
		metrics.Middleware,
	)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	if jobWorker != nil {
		jobWorker.Start(workerCtx)
	}
	sched.Start()

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-sigChan:
		logger.Info("shutdown signal received, initiating graceful shutdown")
	case err := <-serverErr:
		logger.Error("server failed", "error", err)
	}

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	<-sched.Stop().Done()
	if jobWorker != nil {
		jobWorker.Stop()
	}
	stopWorker()

	logger.Info("graceful shutdown complete")
	return nil
}

// newLimitStore builds the rate limit backend. The memory store is also
// returned on its own so the scheduler can sweep it.
func newLimitStore(cfg *internal.Config) (ratelimit.Store, *ratelimit.MemoryStore, func(), error) {
	if cfg.RateLimitStore != internal.RateLimitStoreRedis {
		mem := ratelimit.NewMemoryStore()
		return mem, mem, func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, nil, fmt.Errorf("redis ping failed: %w", err)
	}

	closeFn := func() {
		if err := client.Close(); err != nil {
			slog.Default().Warn("redis close failed", "error", err)
		}
	}
	return ratelimit.NewRedisStore(client, "waitlist:ratelimit:"), nil, closeFn, nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
