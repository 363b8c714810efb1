// Package notification delivers follow-up notifications. Domain modules
// publish NotificationRequested events; this module persists them to the
// outbox and delivers each record in-app and by email once the scheduler
// reports it due.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"followup_backend/internal/email"
	"followup_backend/internal/events"
	apphttp "followup_backend/internal/http"
	notifhandler "followup_backend/internal/notification/handler"
	"followup_backend/internal/notification/inapp"
	notificationoutbox "followup_backend/internal/notification/outbox"
	"followup_backend/internal/notification/sse"
	"followup_backend/platform/config"
	"followup_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	channelInApp = "inapp"
	channelEmail = "email"

	maxOutboxRetryAttempts = 5
	outboxRetryBaseDelay   = time.Minute
	outboxRetryMaxDelay    = 60 * time.Minute
)

// OutboxStore is the outbox persistence the module needs.
type OutboxStore interface {
	Insert(ctx context.Context, p notificationoutbox.InsertParams) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (notificationoutbox.Record, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkSucceeded(ctx context.Context, id uuid.UUID) error
	MarkPending(ctx context.Context, id uuid.UUID, lastError *string, runAt *time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
}

// Recipient is the contact data needed to email a user.
type Recipient struct {
	Name  string
	Email string
}

// RecipientReader resolves a user's email address.
type RecipientReader interface {
	GetRecipient(ctx context.Context, userID uuid.UUID) (Recipient, error)
}

// outboxPayload is the JSON stored in notification_outbox.payload.
type outboxPayload struct {
	Channel string         `json:"channel"`
	Data    map[string]any `json:"data"`
}

// Module handles notification events and serves the in-app endpoints.
type Module struct {
	outbox       OutboxStore
	inAppService *inapp.Service
	inAppHandler *notifhandler.HTTPHandler
	sse          *sse.Service
	sender       email.Sender
	recipients   RecipientReader
	cfg          config.NotificationConfig
	log          *logger.Logger
	now          func() time.Time
}

// New creates the module backed by Postgres.
func New(pool *pgxpool.Pool, sender email.Sender, cfg config.NotificationConfig, log *logger.Logger) *Module {
	return newModule(notificationoutbox.New(pool), inapp.NewRepository(pool), sender, cfg, log)
}

func newModule(outbox OutboxStore, inAppStore inapp.Store, sender email.Sender, cfg config.NotificationConfig, log *logger.Logger) *Module {
	if log == nil {
		log = logger.Discard()
	}
	if sender == nil {
		sender = email.NoopSender{}
	}
	inAppSvc := inapp.NewService(inAppStore, log)
	return &Module{
		outbox:       outbox,
		inAppService: inAppSvc,
		inAppHandler: notifhandler.NewHTTPHandler(inAppSvc),
		sender:       sender,
		cfg:          cfg,
		log:          log,
		now:          time.Now,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// RegisterRoutes registers notification API routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	notifications := ctx.Protected.Group("/notifications")
	m.inAppHandler.RegisterRoutes(notifications)
	if m.sse != nil {
		notifications.GET("/stream", m.sse.Handler())
	}
}

// SetSSE injects the SSE service used to push in-app notifications live.
func (m *Module) SetSSE(s *sse.Service) {
	m.sse = s
	m.inAppService.SetSSE(s)
}

// SetRecipientReader enables email delivery.
func (m *Module) SetRecipientReader(reader RecipientReader) { m.recipients = reader }

// InAppService exposes the in-app notification service.
func (m *Module) InAppService() *inapp.Service { return m.inAppService }

// RegisterHandlers subscribes the module to notification events.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.NotificationRequested{}.EventName(), m)
	bus.Subscribe(events.NotificationOutboxDue{}.EventName(), m)
}

// Handle routes events to the matching handler.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.NotificationRequested:
		return m.handleNotificationRequested(ctx, e)
	case events.NotificationOutboxDue:
		return m.handleNotificationOutboxDue(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

// handleNotificationRequested writes one outbox record per delivery channel so
// a failing email never repeats an in-app notification.
func (m *Module) handleNotificationRequested(ctx context.Context, e events.NotificationRequested) error {
	if m.outbox == nil {
		m.log.Debug("notification outbox not configured; dropping request", "kind", e.Kind)
		return nil
	}

	channels := []string{channelInApp}
	if m.emailEnabled() {
		channels = append(channels, channelEmail)
	}

	runAt := m.now().UTC()
	for _, channel := range channels {
		id, err := m.outbox.Insert(ctx, notificationoutbox.InsertParams{
			UserID:  e.UserID,
			Kind:    e.Kind,
			Payload: outboxPayload{Channel: channel, Data: e.Payload},
			RunAt:   runAt,
		})
		if err != nil {
			m.log.Error("failed to enqueue notification", "userId", e.UserID, "kind", e.Kind, "channel", channel, "error", err)
			return err
		}
		m.log.Debug("notification enqueued", "outboxId", id, "kind", e.Kind, "channel", channel)
	}
	return nil
}

func (m *Module) emailEnabled() bool {
	if m.recipients == nil {
		return false
	}
	_, noop := m.sender.(email.NoopSender)
	return !noop
}

func (m *Module) handleNotificationOutboxDue(ctx context.Context, e events.NotificationOutboxDue) error {
	if m.outbox == nil {
		m.log.Debug("notification outbox not configured; skipping outbox due event", "outboxId", e.OutboxID)
		return nil
	}

	rec, process, err := m.prepareOutboxRecord(ctx, e.OutboxID)
	if err != nil || !process {
		if err != nil {
			m.log.Error("failed to prepare outbox record", "outboxId", e.OutboxID, "error", err)
		}
		return err
	}

	var payload outboxPayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		m.markUndeliverable(ctx, rec, "invalid payload: "+err.Error())
		return nil
	}

	msg, err := render(rec.Kind, payload.Data, m.baseURL())
	if err != nil {
		m.markUndeliverable(ctx, rec, err.Error())
		return nil
	}

	var deliveryErr error
	switch payload.Channel {
	case channelInApp:
		deliveryErr = m.inAppService.Send(ctx, inapp.SendParams{
			UserID:     rec.UserID,
			Kind:       rec.Kind,
			Title:      msg.Title,
			Content:    msg.Content,
			ResourceID: msg.ResourceID,
		})
	case channelEmail:
		deliveryErr = m.deliverEmail(ctx, rec, msg)
	default:
		m.markUndeliverable(ctx, rec, fmt.Sprintf("unsupported channel %q", payload.Channel))
		return nil
	}

	// The outbox owns retries; the task itself is not retried.
	if deliveryErr != nil {
		m.handleOutboxDeliveryError(ctx, rec, deliveryErr)
		return nil
	}

	if err := m.outbox.MarkSucceeded(ctx, rec.ID); err != nil {
		m.log.Error("failed to mark outbox record succeeded", "outboxId", rec.ID, "error", err)
		return err
	}
	m.log.Info("notification delivered", "outboxId", rec.ID, "kind", rec.Kind, "channel", payload.Channel)
	return nil
}

func (m *Module) deliverEmail(ctx context.Context, rec notificationoutbox.Record, msg rendered) error {
	if m.recipients == nil {
		return nil
	}
	recipient, err := m.recipients.GetRecipient(ctx, rec.UserID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}
	if recipient.Email == "" {
		m.log.Info("recipient has no email address; skipping", "userId", rec.UserID, "kind", rec.Kind)
		return nil
	}
	return m.sender.SendNotificationEmail(ctx, recipient.Email, msg.Email)
}

func (m *Module) baseURL() string {
	if m.cfg == nil {
		return ""
	}
	return m.cfg.GetAppBaseURL()
}

func (m *Module) prepareOutboxRecord(ctx context.Context, outboxID uuid.UUID) (notificationoutbox.Record, bool, error) {
	rec, err := m.outbox.GetByID(ctx, outboxID)
	if err != nil {
		return notificationoutbox.Record{}, false, err
	}
	if rec.Status == notificationoutbox.StatusSucceeded || rec.Status == notificationoutbox.StatusFailed {
		m.log.Debug("outbox record already finished; skipping", "outboxId", rec.ID, "status", rec.Status)
		return rec, false, nil
	}
	if err := m.outbox.MarkProcessing(ctx, rec.ID); err != nil {
		return notificationoutbox.Record{}, false, err
	}
	return rec, true, nil
}

func (m *Module) markUndeliverable(ctx context.Context, rec notificationoutbox.Record, reason string) {
	if err := m.outbox.MarkFailed(ctx, rec.ID, reason); err != nil {
		m.log.Error("failed to mark outbox record failed", "outboxId", rec.ID, "error", err)
	}
	m.log.Warn("notification outbox record is undeliverable", "outboxId", rec.ID, "kind", rec.Kind, "reason", reason)
}

func (m *Module) handleOutboxDeliveryError(ctx context.Context, rec notificationoutbox.Record, deliveryErr error) {
	attempt := rec.Attempts + 1
	if attempt >= maxOutboxRetryAttempts {
		_ = m.outbox.MarkFailed(ctx, rec.ID, deliveryErr.Error())
		m.log.Warn("notification outbox exhausted retries",
			"outboxId", rec.ID,
			"kind", rec.Kind,
			"attempt", attempt,
			"maxAttempts", maxOutboxRetryAttempts,
			"error", deliveryErr,
		)
		return
	}

	retryAt := m.now().UTC().Add(computeOutboxRetryDelay(attempt))
	lastError := deliveryErr.Error()
	if err := m.outbox.MarkPending(ctx, rec.ID, &lastError, &retryAt); err != nil {
		_ = m.outbox.MarkFailed(ctx, rec.ID, lastError)
		m.log.Error("notification outbox retry scheduling failed; marked failed",
			"outboxId", rec.ID,
			"attempt", attempt,
			"error", err,
		)
		return
	}

	m.log.Warn("notification outbox scheduled retry",
		"outboxId", rec.ID,
		"kind", rec.Kind,
		"attempt", attempt,
		"retryAt", retryAt,
		"error", deliveryErr,
	)
}

func computeOutboxRetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := outboxRetryBaseDelay << (attempt - 1)
	if delay > outboxRetryMaxDelay {
		return outboxRetryMaxDelay
	}
	return delay
}

var _ apphttp.Module = (*Module)(nil)
