package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"followup_backend/internal/followups/domain"
	"followup_backend/internal/followups/ports"
	"followup_backend/internal/followups/repository"
	"followup_backend/platform/apperr"

	"github.com/google/uuid"
)

type fakeDirectory struct {
	mu             sync.Mutex
	leads          map[uuid.UUID]ports.SubjectRecord
	clients        map[uuid.UUID]ports.SubjectRecord
	users          map[uuid.UUID]ports.UserRecord
	leadStatuses   map[uuid.UUID]string
	clientStatuses map[uuid.UUID]string
	statusErr      error
	block          bool
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		leads:          map[uuid.UUID]ports.SubjectRecord{},
		clients:        map[uuid.UUID]ports.SubjectRecord{},
		users:          map[uuid.UUID]ports.UserRecord{},
		leadStatuses:   map[uuid.UUID]string{},
		clientStatuses: map[uuid.UUID]string{},
	}
}

func (d *fakeDirectory) wait(ctx context.Context) error {
	if !d.block {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (d *fakeDirectory) GetLead(ctx context.Context, id uuid.UUID) (ports.SubjectRecord, error) {
	if err := d.wait(ctx); err != nil {
		return ports.SubjectRecord{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.leads[id]
	if !ok {
		return ports.SubjectRecord{}, apperr.NotFound("lead not found")
	}
	return rec, nil
}

func (d *fakeDirectory) GetClient(ctx context.Context, id uuid.UUID) (ports.SubjectRecord, error) {
	if err := d.wait(ctx); err != nil {
		return ports.SubjectRecord{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.clients[id]
	if !ok {
		return ports.SubjectRecord{}, apperr.NotFound("client not found")
	}
	return rec, nil
}

func (d *fakeDirectory) GetUser(ctx context.Context, id uuid.UUID) (ports.UserRecord, error) {
	if err := d.wait(ctx); err != nil {
		return ports.UserRecord{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.users[id]
	if !ok {
		return ports.UserRecord{}, apperr.NotFound("user not found")
	}
	return rec, nil
}

func (d *fakeDirectory) SetLeadStatus(ctx context.Context, id uuid.UUID, status string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.statusErr != nil {
		return d.statusErr
	}
	d.leadStatuses[id] = status
	return nil
}

func (d *fakeDirectory) SetClientStatus(ctx context.Context, id uuid.UUID, status string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.statusErr != nil {
		return d.statusErr
	}
	d.clientStatuses[id] = status
	return nil
}

func (d *fakeDirectory) addLead(name string, owner *uuid.UUID) uuid.UUID {
	id := uuid.New()
	d.leads[id] = ports.SubjectRecord{ID: id, Name: name, Phone: "+31 6 12345678", AssignedTo: owner}
	return id
}

func (d *fakeDirectory) addClient(name string) uuid.UUID {
	id := uuid.New()
	d.clients[id] = ports.SubjectRecord{ID: id, Name: name}
	return id
}

type sentNotification struct {
	to      uuid.UUID
	kind    string
	payload map[string]any
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *fakeNotifier) Send(_ context.Context, to uuid.UUID, kind string, payload map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{to: to, kind: kind, payload: payload})
}

func (n *fakeNotifier) recipients(kind string) []uuid.UUID {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []uuid.UUID
	for _, s := range n.sent {
		if s.kind == kind {
			out = append(out, s.to)
		}
	}
	return out
}

type fakeReminders struct {
	mu        sync.Mutex
	scheduled map[uuid.UUID]time.Time
}

func (r *fakeReminders) ScheduleFollowUpReminder(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scheduled == nil {
		r.scheduled = map[uuid.UUID]time.Time{}
	}
	r.scheduled[id] = at
	return nil
}

type fakeArchiver struct {
	mu        sync.Mutex
	snapshots []uuid.UUID
	err       error
}

func (a *fakeArchiver) SnapshotFollowUp(_ context.Context, id uuid.UUID, _ any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshots = append(a.snapshots, id)
	return a.err
}

// successorFailingStore rejects every successor insert. It embeds the Store
// interface so the completion and successor are written separately.
type successorFailingStore struct {
	repository.Store
}

func (s successorFailingStore) Create(ctx context.Context, f domain.FollowUp) error {
	if f.GeneratedFromID != nil {
		return errors.New("insert failed")
	}
	return s.Store.Create(ctx, f)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
