package scheduler

import (
	"context"
	"fmt"
	"time"

	"followup_backend/internal/events"
	"followup_backend/platform/config"
	"followup_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// ReminderSender delivers a due reminder for a follow-up if it still applies.
type ReminderSender interface {
	SendDueReminder(ctx context.Context, id uuid.UUID, scheduledDate time.Time) (bool, error)
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	reminders ReminderSender
	bus       events.Bus
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, reminders ReminderSender, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newWorker(reminders, bus, log)
	w.server = server
	return w, nil
}

func newWorker(reminders ReminderSender, bus events.Bus, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.Discard()
	}
	w := &Worker{
		mux:       asynq.NewServeMux(),
		reminders: reminders,
		bus:       bus,
		log:       log,
	}
	w.mux.HandleFunc(TaskFollowUpReminder, w.handleFollowUpReminder)
	w.mux.HandleFunc(TaskNotificationOutboxDue, w.handleNotificationOutboxDue)
	return w
}

func (w *Worker) handleNotificationOutboxDue(ctx context.Context, task *asynq.Task) error {
	if w.bus == nil {
		return nil
	}

	payload, err := ParseNotificationOutboxDuePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	outboxID, err := uuid.Parse(payload.OutboxID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	return w.bus.PublishSync(ctx, events.NotificationOutboxDue{
		BaseEvent: events.NewBaseEvent(),
		OutboxID:  outboxID,
	})
}

func (w *Worker) handleFollowUpReminder(ctx context.Context, task *asynq.Task) error {
	if w.reminders == nil {
		return nil
	}

	payload, err := ParseFollowUpReminderPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	followUpID, err := uuid.Parse(payload.FollowUpID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	sent, err := w.reminders.SendDueReminder(ctx, followUpID, payload.ScheduledDate)
	if err != nil {
		return err
	}
	if !sent {
		w.log.Debug("follow-up reminder no longer applies", "followUpId", followUpID)
	}
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
