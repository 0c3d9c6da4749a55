package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"donation_portal_backend/internal/email"
	"donation_portal_backend/internal/events"
	"donation_portal_backend/internal/leads"
	"donation_portal_backend/internal/notification"
	"donation_portal_backend/internal/notification/outbox"
	"donation_portal_backend/internal/scheduler"
	"donation_portal_backend/platform/config"
	"donation_portal_backend/platform/db"
	"donation_portal_backend/platform/logger"
	"donation_portal_backend/platform/validator"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// followUpSchedulerAdapter bridges the lead service to the asynq client.
type followUpSchedulerAdapter struct {
	client *scheduler.Client
}

func (a followUpSchedulerAdapter) ScheduleFollowUp(ctx context.Context, leadID, workspaceID, taskID uuid.UUID, runAt time.Time) error {
	return a.client.ScheduleFollowUpDue(ctx, scheduler.FollowUpDuePayload{
		LeadID:      leadID.String(),
		WorkspaceID: workspaceID.String(),
		TaskID:      taskID.String(),
		DueAt:       runAt,
	}, runAt)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	if err := db.RunMigrations(ctx, cfg, cfg.MigrationsDir); err != nil {
		log.Error("failed to run migrations", "error", err)
		panic("failed to run migrations: " + err.Error())
	}

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	leadsModule := leads.NewModule(pool, eventBus, val, cfg, log)
	store := leadsModule.Repository()

	schedClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = schedClient.Close() }()
	leadsModule.Service.SetFollowUpScheduler(followUpSchedulerAdapter{client: schedClient})

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	outboxRepo := outbox.New(pool)
	notificationModule := notification.New(outboxRepo, sender, store, store, store, cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	dispatcher, err := scheduler.NewNotificationOutboxDispatcher(cfg, pool, log)
	if err != nil {
		log.Error("failed to initialize outbox dispatcher", "error", err)
		panic("failed to initialize outbox dispatcher: " + err.Error())
	}
	defer func() { _ = dispatcher.Close() }()
	go dispatcher.Run(ctx)

	scanInterval := getDurationEnv("FOLLOW_UP_SCAN_INTERVAL", time.Hour)
	scanner, err := scheduler.NewFollowUpScanner(cfg, store, log, scanInterval)
	if err != nil {
		log.Error("failed to initialize follow-up scanner", "error", err)
		panic("failed to initialize follow-up scanner: " + err.Error())
	}
	defer func() { _ = scanner.Close() }()
	go scanner.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, eventBus, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}
