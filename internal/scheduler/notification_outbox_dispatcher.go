package scheduler

import (
	"context"
	"fmt"
	"time"

	"followup_backend/internal/notification/outbox"
	"followup_backend/platform/config"
	"followup_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	outboxPollInterval = 2 * time.Second
	outboxClaimBatch   = 50
)

type outboxClaimer interface {
	ClaimPending(ctx context.Context, limit int) ([]outbox.Record, error)
	MarkPending(ctx context.Context, id uuid.UUID, lastError *string, runAt *time.Time) error
}

type NotificationOutboxDispatcher struct {
	client   enqueuer
	queue    string
	repo     outboxClaimer
	log      *logger.Logger
	interval time.Duration
}

func NewNotificationOutboxDispatcher(cfg config.SchedulerConfig, pool *pgxpool.Pool, log *logger.Logger) (*NotificationOutboxDispatcher, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &NotificationOutboxDispatcher{
		client:   asynq.NewClient(opt),
		queue:    queueName(cfg),
		repo:     outbox.New(pool),
		log:      log,
		interval: outboxPollInterval,
	}, nil
}

func (d *NotificationOutboxDispatcher) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

func (d *NotificationOutboxDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil || d.repo == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		d.dispatch(ctx)
	}
}

// dispatch claims due records and enqueues one delivery task each. Records
// that cannot be enqueued go back to pending for the next tick.
func (d *NotificationOutboxDispatcher) dispatch(ctx context.Context) int {
	records, err := d.repo.ClaimPending(ctx, outboxClaimBatch)
	if err != nil {
		d.log.Warn("outbox claim failed", "error", err)
		return 0
	}

	enqueued := 0
	for _, rec := range records {
		task, err := NewNotificationOutboxDueTask(NotificationOutboxDuePayload{
			OutboxID: rec.ID.String(),
		})
		if err != nil {
			d.release(ctx, rec.ID, err)
			continue
		}

		_, err = d.client.EnqueueContext(ctx, task, asynq.ProcessAt(rec.RunAt), asynq.Queue(d.queue))
		if err != nil {
			d.release(ctx, rec.ID, err)
			continue
		}
		enqueued++
	}
	return enqueued
}

func (d *NotificationOutboxDispatcher) release(ctx context.Context, id uuid.UUID, cause error) {
	msg := cause.Error()
	if err := d.repo.MarkPending(ctx, id, &msg, nil); err != nil {
		d.log.Warn("outbox release failed", "outboxId", id, "error", err)
	}
}
