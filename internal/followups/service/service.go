// Package service implements the follow-up scheduling orchestrator: it runs
// state machine transitions against the store and fans out the side effects
// of completions to the directory, notifier and reminder scheduler.
package service

import (
	"context"
	"time"

	"followup_backend/internal/followups/domain"
	"followup_backend/internal/followups/ports"
	"followup_backend/internal/followups/repository"
	"followup_backend/internal/followups/transport"
	"followup_backend/platform/apperr"
	"followup_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	dependencyStore     = "persistence store"
	dependencyDirectory = "directory service"

	defaultDependencyTimeout = 5 * time.Second
	defaultBulkConcurrency   = 4
	defaultBulkRate          = 10
	maxChainLength           = 50
)

// Options tunes the orchestrator. Zero values fall back to defaults.
type Options struct {
	Location          *time.Location
	DependencyTimeout time.Duration
	BulkConcurrency   int
	BulkRatePerSecond float64
	ListFetchLimit    int
	PhoneRegion       string
	Clock             func() time.Time
}

// Service is the scheduling orchestrator.
type Service struct {
	store     repository.Store
	machine   *domain.Machine
	directory ports.Directory
	notifier  ports.Notifier
	reminders ports.ReminderScheduler
	archiver  ports.PurgeArchiver
	log       *logger.Logger

	now               func() time.Time
	location          *time.Location
	dependencyTimeout time.Duration
	bulkConcurrency   int
	bulkLimiter       *rate.Limiter
	fetchLimit        int
	phoneRegion       string
}

// New creates the orchestrator.
func New(store repository.Store, machine *domain.Machine, directory ports.Directory, notifier ports.Notifier, log *logger.Logger, opts Options) *Service {
	if machine == nil {
		machine = domain.NewMachine(domain.NewResolver(nil, opts.Location))
	}
	if log == nil {
		log = logger.Discard()
	}
	s := &Service{
		store:             store,
		machine:           machine,
		directory:         directory,
		notifier:          notifier,
		log:               log,
		now:               opts.Clock,
		location:          opts.Location,
		dependencyTimeout: opts.DependencyTimeout,
		bulkConcurrency:   opts.BulkConcurrency,
		fetchLimit:        opts.ListFetchLimit,
		phoneRegion:       opts.PhoneRegion,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.dependencyTimeout <= 0 {
		s.dependencyTimeout = defaultDependencyTimeout
	}
	if s.bulkConcurrency <= 0 {
		s.bulkConcurrency = defaultBulkConcurrency
	}
	if s.fetchLimit <= 0 {
		s.fetchLimit = repository.DefaultFindLimit
	}
	ratePerSecond := opts.BulkRatePerSecond
	if ratePerSecond <= 0 {
		ratePerSecond = defaultBulkRate
	}
	s.bulkLimiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	return s
}

// SetReminderScheduler enables due-date reminders.
func (s *Service) SetReminderScheduler(reminders ports.ReminderScheduler) {
	s.reminders = reminders
}

// SetPurgeArchiver enables snapshots of purged follow-ups.
func (s *Service) SetPurgeArchiver(archiver ports.PurgeArchiver) {
	s.archiver = archiver
}

// Outcomes returns the outcome catalog.
func (s *Service) Outcomes() []transport.OutcomeResponse {
	rules := s.machine.Resolver().Taxonomy().Rules()
	out := make([]transport.OutcomeResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, transport.ToOutcomeResponse(rule))
	}
	return out
}

// clock returns the current time in the canonical zone.
func (s *Service) clock() time.Time {
	return s.now().In(s.location)
}

// call runs fn against a collaborator with the dependency timeout applied.
// Deadline errors become DependencyTimeout.
func (s *Service) call(ctx context.Context, dependency string, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, s.dependencyTimeout)
	defer cancel()
	return apperr.FromContext(dependency, fn(callCtx))
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (domain.FollowUp, error) {
	var f domain.FollowUp
	err := s.call(ctx, dependencyStore, func(ctx context.Context) error {
		var err error
		f, err = s.store.FindByID(ctx, id)
		return err
	})
	return f, err
}

// loadAccessible loads a record the caller may act on.
func (s *Service) loadAccessible(ctx context.Context, id, userID uuid.UUID, isAdmin bool) (domain.FollowUp, error) {
	f, err := s.load(ctx, id)
	if err != nil {
		return domain.FollowUp{}, err
	}
	if !canAccess(f, userID, isAdmin) {
		return domain.FollowUp{}, apperr.Forbidden("not allowed to access this follow-up")
	}
	return f, nil
}

// loadLive is loadAccessible for transitions, which archived records reject.
func (s *Service) loadLive(ctx context.Context, id, userID uuid.UUID, isAdmin bool) (domain.FollowUp, error) {
	f, err := s.loadAccessible(ctx, id, userID, isAdmin)
	if err != nil {
		return domain.FollowUp{}, err
	}
	if f.IsArchived() {
		return domain.FollowUp{}, apperr.InvalidTransition("follow-up is archived")
	}
	return f, nil
}

func canAccess(f domain.FollowUp, userID uuid.UUID, isAdmin bool) bool {
	return isAdmin || f.AssignedTo == userID || f.CreatedBy == userID
}

// scheduleReminder queues a due reminder. Failures are logged only.
func (s *Service) scheduleReminder(ctx context.Context, operation string, f domain.FollowUp) {
	if s.reminders == nil || !f.IsOpen() {
		return
	}
	err := s.call(ctx, "reminder scheduler", func(ctx context.Context) error {
		return s.reminders.ScheduleFollowUpReminder(ctx, f.ID, f.ScheduledDate)
	})
	if err != nil {
		s.log.WithContext(ctx).BestEffortFailure(operation, "reminder", err)
	}
}

func (s *Service) notify(ctx context.Context, to uuid.UUID, kind string, payload map[string]any) {
	if s.notifier == nil || to == uuid.Nil {
		return
	}
	s.notifier.Send(ctx, to, kind, payload)
}

func followUpPayload(f domain.FollowUp, actor uuid.UUID) map[string]any {
	payload := map[string]any{
		"followUpId":    f.ID.String(),
		"title":         f.Title,
		"type":          string(f.Type),
		"scheduledDate": f.ScheduledDate.Format(time.RFC3339),
		"actorId":       actor.String(),
	}
	if f.Subject.LeadID != nil {
		payload["leadId"] = f.Subject.LeadID.String()
	}
	if f.Subject.ClientID != nil {
		payload["clientId"] = f.Subject.ClientID.String()
	}
	return payload
}
