package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"followup_backend/internal/adapters"
	"followup_backend/internal/adapters/storage"
	"followup_backend/internal/directory"
	"followup_backend/internal/email"
	"followup_backend/internal/events"
	"followup_backend/internal/followups"
	apphttp "followup_backend/internal/http"
	"followup_backend/internal/http/router"
	"followup_backend/internal/notification"
	"followup_backend/internal/notification/sse"
	"followup_backend/internal/scheduler"
	"followup_backend/migrations"
	"followup_backend/platform/config"
	"followup_backend/platform/db"
	"followup_backend/platform/logger"
	"followup_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	dir, closeDirectory, err := directory.New(pool, cfg, log)
	if err != nil {
		log.Error("failed to initialize directory", "error", err)
		panic("failed to initialize directory: " + err.Error())
	}
	defer closeDirectory()

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	sseService := sse.New(log)
	defer sseService.Close()

	notificationModule := notification.New(pool, sender, cfg, log)
	notificationModule.RegisterHandlers(eventBus)
	notificationModule.SetSSE(sseService)
	notificationModule.SetRecipientReader(adapters.NewNotificationRecipientReader(dir))

	followupsModule, err := followups.NewModule(pool, dir, notification.NewNotifier(eventBus, log), val, cfg, log)
	if err != nil {
		log.Error("failed to initialize followups module", "error", err)
		panic("failed to initialize followups module: " + err.Error())
	}

	reminderClient, closeReminders := initReminderScheduler(cfg, log)
	if reminderClient != nil {
		defer closeReminders()
		followupsModule.SetReminderScheduler(reminderClient)
	}

	if archiver := initPurgeArchiver(ctx, cfg, log); archiver != nil {
		followupsModule.SetPurgeArchiver(archiver)
	}

	if cfg.IsSchedulerEmbedded() {
		startEmbeddedScheduler(ctx, cfg, pool, followupsModule, eventBus, log)
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			followupsModule,
			notificationModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		sseService.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initReminderScheduler(cfg *config.Config, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; follow-up reminders disabled")
		return nil, nil
	}

	reminderClient, err := scheduler.NewClient(cfg, cfg.GetReminderLead())
	if err != nil {
		log.Error("failed to initialize reminder scheduler client", "error", err)
		return nil, nil
	}

	return reminderClient, func() {
		_ = reminderClient.Close()
	}
}

func initPurgeArchiver(ctx context.Context, cfg config.MinIOConfig, log *logger.Logger) *storage.FollowUpArchiver {
	if !cfg.IsMinIOEnabled() {
		log.Warn("MINIO_ENDPOINT not configured; purge snapshots disabled")
		return nil
	}

	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		return nil
	}

	bucket := cfg.GetMinioBucketFollowUpArchive()
	if err := withRetry(ctx, log, "ensure follow-up archive bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", bucket)
		return nil
	}

	log.Info("storage service initialized", "followUpArchiveBucket", bucket)
	return storage.NewFollowUpArchiver(storageSvc, bucket)
}

// startEmbeddedScheduler runs the outbox dispatcher and the task worker in the
// API process so SSE pushes reach clients connected here.
func startEmbeddedScheduler(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, followupsModule *followups.Module, bus events.Bus, log *logger.Logger) {
	dispatcher, err := scheduler.NewNotificationOutboxDispatcher(cfg, pool, log)
	if err != nil {
		log.Error("failed to initialize outbox dispatcher", "error", err)
		return
	}
	worker, err := scheduler.NewWorker(cfg, followupsModule.Service(), bus, log)
	if err != nil {
		_ = dispatcher.Close()
		log.Error("failed to initialize scheduler worker", "error", err)
		return
	}

	go func() {
		defer func() { _ = dispatcher.Close() }()
		dispatcher.Run(ctx)
	}()
	go worker.Run(ctx)
	log.Info("embedded scheduler started")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
