package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"followup_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// enqueuer is the part of asynq.Client the scheduler uses.
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type Client struct {
	client enqueuer
	queue  string
	lead   time.Duration
	now    func() time.Time
}

func NewClient(cfg config.SchedulerConfig, reminderLead time.Duration) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return newClient(asynq.NewClient(opt), queueName(cfg), reminderLead), nil
}

func newClient(client enqueuer, queue string, reminderLead time.Duration) *Client {
	if reminderLead < 0 {
		reminderLead = 0
	}
	return &Client{
		client: client,
		queue:  queue,
		lead:   reminderLead,
		now:    time.Now,
	}
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// ScheduleFollowUpReminder queues the due reminder reminderLead before
// scheduledDate, or immediately when that moment has passed. One task exists
// per follow-up and date; scheduling the same pair again is a no-op.
func (c *Client) ScheduleFollowUpReminder(ctx context.Context, followUpID uuid.UUID, scheduledDate time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewFollowUpReminderTask(FollowUpReminderPayload{
		FollowUpID:    followUpID.String(),
		ScheduledDate: scheduledDate.UTC(),
	})
	if err != nil {
		return err
	}

	runAt := scheduledDate.Add(-c.lead)
	if now := c.now(); runAt.Before(now) {
		runAt = now
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.TaskID(reminderTaskID(followUpID, scheduledDate)),
		asynq.ProcessAt(runAt),
		asynq.Queue(c.queue),
		asynq.MaxRetry(3),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func reminderTaskID(followUpID uuid.UUID, scheduledDate time.Time) string {
	return fmt.Sprintf("followup-reminder:%s:%d", followUpID, scheduledDate.Unix())
}

func queueName(cfg config.SchedulerConfig) string {
	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}
	return queue
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
