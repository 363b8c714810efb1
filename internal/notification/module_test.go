package notification

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"followup_backend/internal/email"
	"followup_backend/internal/events"
	"followup_backend/internal/followups/ports"
	"followup_backend/internal/notification/inapp"
	notificationoutbox "followup_backend/internal/notification/outbox"
	"followup_backend/platform/apperr"

	"github.com/google/uuid"
)

type testNotificationConfig struct{}

func (testNotificationConfig) GetAppBaseURL() string { return "https://app.example.com" }

type memoryOutbox struct {
	mu        sync.Mutex
	records   map[uuid.UUID]*notificationoutbox.Record
	lastError map[uuid.UUID]string
	order     []uuid.UUID
}

func newMemoryOutbox() *memoryOutbox {
	return &memoryOutbox{
		records:   map[uuid.UUID]*notificationoutbox.Record{},
		lastError: map[uuid.UUID]string{},
	}
}

func (o *memoryOutbox) Insert(_ context.Context, p notificationoutbox.InsertParams) (uuid.UUID, error) {
	raw, err := json.Marshal(p.Payload)
	if err != nil {
		return uuid.Nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	id := uuid.New()
	o.records[id] = &notificationoutbox.Record{
		ID:      id,
		UserID:  p.UserID,
		Kind:    p.Kind,
		Payload: raw,
		RunAt:   p.RunAt,
		Status:  notificationoutbox.StatusPending,
	}
	o.order = append(o.order, id)
	return id, nil
}

func (o *memoryOutbox) GetByID(_ context.Context, id uuid.UUID) (notificationoutbox.Record, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, ok := o.records[id]
	if !ok {
		return notificationoutbox.Record{}, apperr.NotFound("outbox record not found")
	}
	return *rec, nil
}

func (o *memoryOutbox) MarkProcessing(_ context.Context, id uuid.UUID) error {
	return o.update(id, func(r *notificationoutbox.Record) {
		r.Status = notificationoutbox.StatusProcessing
		r.Attempts++
	})
}

func (o *memoryOutbox) MarkSucceeded(_ context.Context, id uuid.UUID) error {
	return o.update(id, func(r *notificationoutbox.Record) { r.Status = notificationoutbox.StatusSucceeded })
}

func (o *memoryOutbox) MarkPending(_ context.Context, id uuid.UUID, lastError *string, runAt *time.Time) error {
	return o.update(id, func(r *notificationoutbox.Record) {
		r.Status = notificationoutbox.StatusPending
		if lastError != nil {
			o.lastError[id] = *lastError
		}
		if runAt != nil {
			r.RunAt = *runAt
		}
	})
}

func (o *memoryOutbox) MarkFailed(_ context.Context, id uuid.UUID, lastError string) error {
	return o.update(id, func(r *notificationoutbox.Record) {
		r.Status = notificationoutbox.StatusFailed
		o.lastError[id] = lastError
	})
}

func (o *memoryOutbox) update(id uuid.UUID, fn func(r *notificationoutbox.Record)) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, ok := o.records[id]
	if !ok {
		return apperr.NotFound("outbox record not found")
	}
	fn(rec)
	return nil
}

func (o *memoryOutbox) ids() []uuid.UUID {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]uuid.UUID(nil), o.order...)
}

type memoryInApp struct {
	mu      sync.Mutex
	created []inapp.CreateParams
	err     error
}

func (s *memoryInApp) Create(_ context.Context, p inapp.CreateParams) (inapp.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return inapp.Notification{}, s.err
	}
	s.created = append(s.created, p)
	return inapp.Notification{ID: uuid.New(), UserID: p.UserID, Kind: p.Kind, Title: p.Title, Content: p.Content, ResourceID: p.ResourceID}, nil
}

func (s *memoryInApp) List(context.Context, uuid.UUID, int, int) ([]inapp.Notification, int, error) {
	return nil, 0, nil
}

func (s *memoryInApp) CountUnread(context.Context, uuid.UUID) (int, error) { return 0, nil }

func (s *memoryInApp) MarkRead(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (s *memoryInApp) MarkAllRead(context.Context, uuid.UUID) error { return nil }

type testSender struct {
	mu   sync.Mutex
	sent map[string][]email.Message
	err  error
}

func (s *testSender) SendNotificationEmail(_ context.Context, toEmail string, msg email.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.sent == nil {
		s.sent = map[string][]email.Message{}
	}
	s.sent[toEmail] = append(s.sent[toEmail], msg)
	return nil
}

type testRecipients map[uuid.UUID]Recipient

func (r testRecipients) GetRecipient(_ context.Context, userID uuid.UUID) (Recipient, error) {
	rec, ok := r[userID]
	if !ok {
		return Recipient{}, apperr.NotFound("user not found")
	}
	return rec, nil
}

type moduleFixture struct {
	module *Module
	outbox *memoryOutbox
	inApp  *memoryInApp
	sender *testSender
	bus    *events.InMemoryBus
	user   uuid.UUID
}

func newModuleFixture(t *testing.T) *moduleFixture {
	t.Helper()
	fx := &moduleFixture{
		outbox: newMemoryOutbox(),
		inApp:  &memoryInApp{},
		sender: &testSender{},
		bus:    events.NewInMemoryBus(nil),
		user:   uuid.New(),
	}
	fx.module = newModule(fx.outbox, fx.inApp, fx.sender, testNotificationConfig{}, nil)
	fx.module.SetRecipientReader(testRecipients{fx.user: {Name: "Ada", Email: "ada@example.com"}})
	fx.module.RegisterHandlers(fx.bus)
	return fx
}

func (fx *moduleFixture) request(t *testing.T, kind string) {
	t.Helper()
	notifier := NewNotifier(fx.bus, nil)
	notifier.Send(context.Background(), fx.user, kind, map[string]any{
		"followUpId":    uuid.NewString(),
		"title":         "Call back about offer",
		"type":          "call",
		"scheduledDate": "2026-03-02T10:00:00Z",
	})
	fx.bus.Wait()
}

func (fx *moduleFixture) deliverAll(t *testing.T) {
	t.Helper()
	for _, id := range fx.outbox.ids() {
		err := fx.bus.PublishSync(context.Background(), events.NotificationOutboxDue{
			BaseEvent: events.NewBaseEvent(),
			OutboxID:  id,
		})
		if err != nil {
			t.Fatalf("deliver %s: %v", id, err)
		}
	}
}

func TestNotificationRequestedWritesOneRecordPerChannel(t *testing.T) {
	fx := newModuleFixture(t)

	fx.request(t, ports.NotificationAssigned)

	ids := fx.outbox.ids()
	if len(ids) != 2 {
		t.Fatalf("expected 2 outbox records, got %d", len(ids))
	}
	channels := map[string]bool{}
	for _, id := range ids {
		rec, _ := fx.outbox.GetByID(context.Background(), id)
		var payload outboxPayload
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			t.Fatalf("payload: %v", err)
		}
		channels[payload.Channel] = true
		if rec.Kind != ports.NotificationAssigned || rec.UserID != fx.user {
			t.Fatalf("unexpected record %+v", rec)
		}
	}
	if !channels[channelInApp] || !channels[channelEmail] {
		t.Fatalf("expected in-app and email channels, got %v", channels)
	}
}

func TestNotificationRequestedSkipsEmailWhenDisabled(t *testing.T) {
	fx := newModuleFixture(t)
	fx.module.sender = email.NoopSender{}

	fx.request(t, ports.NotificationDue)

	if got := len(fx.outbox.ids()); got != 1 {
		t.Fatalf("expected only the in-app record, got %d", got)
	}
}

func TestOutboxDueDeliversInAppAndEmail(t *testing.T) {
	fx := newModuleFixture(t)
	fx.request(t, ports.NotificationAssigned)

	fx.deliverAll(t)

	if len(fx.inApp.created) != 1 {
		t.Fatalf("expected 1 in-app notification, got %d", len(fx.inApp.created))
	}
	created := fx.inApp.created[0]
	if created.Title != "New follow-up assigned" || created.ResourceID == nil {
		t.Fatalf("unexpected in-app notification %+v", created)
	}

	mails := fx.sender.sent["ada@example.com"]
	if len(mails) != 1 {
		t.Fatalf("expected 1 email, got %d", len(mails))
	}
	if !strings.Contains(mails[0].Subject, "Call back about offer") {
		t.Fatalf("unexpected subject %q", mails[0].Subject)
	}
	if !strings.HasPrefix(mails[0].CTAURL, "https://app.example.com/follow-ups/") {
		t.Fatalf("unexpected cta %q", mails[0].CTAURL)
	}

	for _, id := range fx.outbox.ids() {
		rec, _ := fx.outbox.GetByID(context.Background(), id)
		if rec.Status != notificationoutbox.StatusSucceeded {
			t.Fatalf("record %s not succeeded: %s", id, rec.Status)
		}
	}
}

func TestOutboxDueIsIdempotentAfterSuccess(t *testing.T) {
	fx := newModuleFixture(t)
	fx.request(t, ports.NotificationDue)

	fx.deliverAll(t)
	fx.deliverAll(t)

	if len(fx.inApp.created) != 1 {
		t.Fatalf("expected a single in-app notification, got %d", len(fx.inApp.created))
	}
	if len(fx.sender.sent["ada@example.com"]) != 1 {
		t.Fatalf("expected a single email, got %d", len(fx.sender.sent["ada@example.com"]))
	}
}

func TestOutboxEmailFailureSchedulesRetry(t *testing.T) {
	fx := newModuleFixture(t)
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	fx.module.now = func() time.Time { return fixed }
	fx.sender.err = errors.New("smtp unavailable")
	fx.request(t, ports.NotificationCompleted)

	fx.deliverAll(t)

	var emailRec notificationoutbox.Record
	for _, id := range fx.outbox.ids() {
		rec, _ := fx.outbox.GetByID(context.Background(), id)
		var payload outboxPayload
		_ = json.Unmarshal(rec.Payload, &payload)
		if payload.Channel == channelEmail {
			emailRec = rec
			continue
		}
		if rec.Status != notificationoutbox.StatusSucceeded {
			t.Fatalf("in-app record should succeed independently, got %s", rec.Status)
		}
	}

	if emailRec.Status != notificationoutbox.StatusPending {
		t.Fatalf("expected email record back to pending, got %s", emailRec.Status)
	}
	if !emailRec.RunAt.Equal(fixed.Add(outboxRetryBaseDelay)) {
		t.Fatalf("unexpected retry time %s", emailRec.RunAt)
	}
	if fx.outbox.lastError[emailRec.ID] != "smtp unavailable" {
		t.Fatalf("unexpected last error %q", fx.outbox.lastError[emailRec.ID])
	}
}

func TestOutboxFailsAfterMaxAttempts(t *testing.T) {
	fx := newModuleFixture(t)
	fx.inApp.err = errors.New("db down")
	fx.module.sender = email.NoopSender{}
	fx.request(t, ports.NotificationDue)

	for i := 0; i < maxOutboxRetryAttempts; i++ {
		fx.deliverAll(t)
	}

	rec, _ := fx.outbox.GetByID(context.Background(), fx.outbox.ids()[0])
	if rec.Status != notificationoutbox.StatusFailed {
		t.Fatalf("expected failed after %d attempts, got %s", maxOutboxRetryAttempts, rec.Status)
	}
	if rec.Attempts != maxOutboxRetryAttempts {
		t.Fatalf("expected %d attempts, got %d", maxOutboxRetryAttempts, rec.Attempts)
	}
}

func TestOutboxUnknownKindIsMarkedFailed(t *testing.T) {
	fx := newModuleFixture(t)
	fx.request(t, "followup_unknown")

	fx.deliverAll(t)

	for _, id := range fx.outbox.ids() {
		rec, _ := fx.outbox.GetByID(context.Background(), id)
		if rec.Status != notificationoutbox.StatusFailed {
			t.Fatalf("expected failed, got %s", rec.Status)
		}
	}
	if len(fx.inApp.created) != 0 {
		t.Fatalf("unknown kinds must not be delivered")
	}
}

func TestEmailSkippedForRecipientWithoutAddress(t *testing.T) {
	fx := newModuleFixture(t)
	fx.module.SetRecipientReader(testRecipients{fx.user: {Name: "Ada"}})
	fx.request(t, ports.NotificationRescheduled)

	fx.deliverAll(t)

	if len(fx.sender.sent) != 0 {
		t.Fatalf("expected no email, got %v", fx.sender.sent)
	}
	for _, id := range fx.outbox.ids() {
		rec, _ := fx.outbox.GetByID(context.Background(), id)
		if rec.Status != notificationoutbox.StatusSucceeded {
			t.Fatalf("expected succeeded, got %s", rec.Status)
		}
	}
}

func TestNotifierDropsNilRecipient(t *testing.T) {
	fx := newModuleFixture(t)
	NewNotifier(fx.bus, nil).Send(context.Background(), uuid.Nil, ports.NotificationDue, nil)
	fx.bus.Wait()

	if got := len(fx.outbox.ids()); got != 0 {
		t.Fatalf("expected no records, got %d", got)
	}
}

func TestComputeOutboxRetryDelayIsCapped(t *testing.T) {
	if got := computeOutboxRetryDelay(1); got != time.Minute {
		t.Fatalf("attempt 1: got %s", got)
	}
	if got := computeOutboxRetryDelay(3); got != 4*time.Minute {
		t.Fatalf("attempt 3: got %s", got)
	}
	if got := computeOutboxRetryDelay(20); got != outboxRetryMaxDelay {
		t.Fatalf("attempt 20: got %s", got)
	}
}
