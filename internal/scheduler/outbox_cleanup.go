package scheduler

import (
	"context"
	"time"

	"followup_backend/internal/notification/outbox"
	"followup_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultOutboxCleanupInterval    = time.Hour
	defaultSucceededOutboxRetention = 7 * 24 * time.Hour
	defaultFailedOutboxRetention    = 30 * 24 * time.Hour
)

type outboxPruner interface {
	DeleteFinishedBefore(ctx context.Context, succeededBefore, failedBefore time.Time) (int64, error)
}

// OutboxCleanup periodically removes finished notification outbox records.
type OutboxCleanup struct {
	repo               outboxPruner
	log                *logger.Logger
	interval           time.Duration
	succeededRetention time.Duration
	failedRetention    time.Duration
	now                func() time.Time
}

func NewOutboxCleanup(pool *pgxpool.Pool, log *logger.Logger, interval, succeededRetention, failedRetention time.Duration) *OutboxCleanup {
	return newOutboxCleanup(outbox.New(pool), log, interval, succeededRetention, failedRetention)
}

func newOutboxCleanup(repo outboxPruner, log *logger.Logger, interval, succeededRetention, failedRetention time.Duration) *OutboxCleanup {
	if log == nil {
		log = logger.Discard()
	}
	if interval <= 0 {
		interval = defaultOutboxCleanupInterval
	}
	if succeededRetention <= 0 {
		succeededRetention = defaultSucceededOutboxRetention
	}
	if failedRetention <= 0 {
		failedRetention = defaultFailedOutboxRetention
	}

	return &OutboxCleanup{
		repo:               repo,
		log:                log,
		interval:           interval,
		succeededRetention: succeededRetention,
		failedRetention:    failedRetention,
		now:                time.Now,
	}
}

func (c *OutboxCleanup) Run(ctx context.Context) {
	if c == nil || c.repo == nil {
		return
	}

	c.cleanup(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *OutboxCleanup) cleanup(ctx context.Context) {
	now := c.now()
	succeededBefore := now.Add(-c.succeededRetention)
	failedBefore := now.Add(-c.failedRetention)

	deleted, err := c.repo.DeleteFinishedBefore(ctx, succeededBefore, failedBefore)
	if err != nil {
		c.log.Warn("notification outbox cleanup failed", "error", err)
		return
	}

	if deleted > 0 {
		c.log.Info("notification outbox cleanup deleted finished records", "deleted", deleted)
	}
}
