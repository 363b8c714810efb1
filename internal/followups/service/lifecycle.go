package service

import (
	"context"
	"fmt"
	"time"

	"followup_backend/internal/followups/domain"
	"followup_backend/internal/followups/ports"
	"followup_backend/internal/followups/repository"
	"followup_backend/internal/followups/transport"
	"followup_backend/platform/apperr"
	"followup_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Create validates and persists a new follow-up. Once the record is written
// the remaining side effects run even if ctx is cancelled.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, isAdmin bool, req transport.CreateFollowUpRequest) (*transport.FollowUpResponse, error) {
	if req.ScheduledDate == nil {
		return nil, apperr.Validation("scheduledDate is required")
	}
	subject := domain.SubjectRef{LeadID: req.LeadID, ClientID: req.ClientID}
	assignee := userID
	if req.AssignedTo != nil {
		assignee = *req.AssignedTo
	}

	now := s.clock()
	f, err := s.machine.Create(domain.NewFollowUp{
		Subject:       subject,
		Type:          domain.Type(req.Type),
		Title:         sanitize.Text(req.Title),
		Description:   sanitize.Text(req.Description),
		Notes:         sanitize.Text(req.Notes),
		Priority:      domain.Priority(req.Priority),
		ScheduledDate: req.ScheduledDate.In(s.location),
		CreatedBy:     userID,
		AssignedTo:    assignee,
	}, now)
	if err != nil {
		return nil, err
	}

	if err := s.ensureSubjectExists(ctx, f.Subject); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	work := context.WithoutCancel(ctx)
	if err := s.call(work, dependencyStore, func(ctx context.Context) error {
		return s.store.Create(ctx, f)
	}); err != nil {
		return nil, err
	}

	if f.AssignedTo != userID {
		s.notify(work, f.AssignedTo, ports.NotificationAssigned, followUpPayload(f, userID))
	}
	s.scheduleReminder(work, "create", f)

	resp := transport.ToFollowUpResponse(f, now)
	return &resp, nil
}

func (s *Service) ensureSubjectExists(ctx context.Context, subject domain.SubjectRef) error {
	if s.directory == nil {
		return nil
	}
	var label string
	err := s.call(ctx, dependencyDirectory, func(ctx context.Context) error {
		var err error
		switch {
		case subject.LeadID != nil:
			label = "lead"
			_, err = s.directory.GetLead(ctx, *subject.LeadID)
		case subject.ClientID != nil:
			label = "client"
			_, err = s.directory.GetClient(ctx, *subject.ClientID)
		}
		return err
	})
	if apperr.Is(err, apperr.KindNotFound) {
		return apperr.Validation(label + " does not exist")
	}
	return err
}

// Get returns one follow-up, archived or not.
func (s *Service) Get(ctx context.Context, id, userID uuid.UUID, isAdmin bool) (*transport.FollowUpResponse, error) {
	f, err := s.loadAccessible(ctx, id, userID, isAdmin)
	if err != nil {
		return nil, err
	}
	resp := transport.ToFollowUpResponse(f, s.clock())
	return &resp, nil
}

// Reschedule edits an open follow-up.
func (s *Service) Reschedule(ctx context.Context, id, userID uuid.UUID, isAdmin bool, req transport.RescheduleFollowUpRequest) (*transport.FollowUpResponse, error) {
	f, err := s.loadLive(ctx, id, userID, isAdmin)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	next, err := s.machine.Reschedule(f, s.toPatch(req), now)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, next, f.Status); err != nil {
		return nil, err
	}

	work := context.WithoutCancel(ctx)
	dateChanged := !next.ScheduledDate.Equal(f.ScheduledDate)
	if dateChanged {
		s.scheduleReminder(work, "reschedule", next)
		if owner := s.subjectOwner(work, next.Subject); owner != uuid.Nil && owner != userID {
			s.notify(work, owner, ports.NotificationRescheduled, followUpPayload(next, userID))
		}
	}
	if next.AssignedTo != f.AssignedTo && next.AssignedTo != userID {
		s.notify(work, next.AssignedTo, ports.NotificationAssigned, followUpPayload(next, userID))
	}

	resp := transport.ToFollowUpResponse(next, now)
	return &resp, nil
}

func (s *Service) toPatch(req transport.RescheduleFollowUpRequest) domain.Patch {
	patch := domain.Patch{AssignedTo: req.AssignedTo}
	if req.ScheduledDate != nil {
		date := req.ScheduledDate.In(s.location)
		patch.ScheduledDate = &date
	}
	if req.Type != nil {
		t := domain.Type(*req.Type)
		patch.Type = &t
	}
	if req.Priority != nil {
		p := domain.Priority(*req.Priority)
		patch.Priority = &p
	}
	patch.Title = sanitize.TextPtr(req.Title)
	patch.Description = sanitize.TextPtr(req.Description)
	patch.Notes = sanitize.TextPtr(req.Notes)
	return patch
}

// subjectOwner returns the user the subject is assigned to, or uuid.Nil when
// unknown. Lookup failures are logged only.
func (s *Service) subjectOwner(ctx context.Context, subject domain.SubjectRef) uuid.UUID {
	if s.directory == nil || subject.IsZero() {
		return uuid.Nil
	}
	var record ports.SubjectRecord
	err := s.call(ctx, dependencyDirectory, func(ctx context.Context) error {
		var err error
		if subject.LeadID != nil {
			record, err = s.directory.GetLead(ctx, *subject.LeadID)
		} else {
			record, err = s.directory.GetClient(ctx, *subject.ClientID)
		}
		return err
	})
	if err != nil {
		s.log.WithContext(ctx).BestEffortFailure("reschedule", "subject_owner", err)
		return uuid.Nil
	}
	if record.AssignedTo == nil {
		return uuid.Nil
	}
	return *record.AssignedTo
}

// Start moves a scheduled follow-up to in_progress.
func (s *Service) Start(ctx context.Context, id, userID uuid.UUID, isAdmin bool) (*transport.FollowUpResponse, error) {
	return s.transition(ctx, id, userID, isAdmin, s.machine.Start)
}

// Cancel stops an open follow-up without a successor.
func (s *Service) Cancel(ctx context.Context, id, userID uuid.UUID, isAdmin bool) (*transport.FollowUpResponse, error) {
	return s.transition(ctx, id, userID, isAdmin, s.machine.Cancel)
}

func (s *Service) transition(ctx context.Context, id, userID uuid.UUID, isAdmin bool, apply func(domain.FollowUp, time.Time) (domain.FollowUp, error)) (*transport.FollowUpResponse, error) {
	f, err := s.loadLive(ctx, id, userID, isAdmin)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	next, err := apply(f, now)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, next, f.Status); err != nil {
		return nil, err
	}
	resp := transport.ToFollowUpResponse(next, now)
	return &resp, nil
}

// commit writes next if the stored status is still expected. Cancellation is
// honoured only until the write is issued.
func (s *Service) commit(ctx context.Context, next domain.FollowUp, expected domain.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.call(context.WithoutCancel(ctx), dependencyStore, func(ctx context.Context) error {
		return s.store.UpdateIfStatus(ctx, next, expected)
	})
}

// Complete records an outcome. When the store supports it the completion and
// its successor are written together and fail together. Otherwise the
// successor, like the subject status change and notifications, is best effort
// and a failure comes back as a partial failure.
func (s *Service) Complete(ctx context.Context, id, userID uuid.UUID, isAdmin bool, req transport.CompleteFollowUpRequest) (*transport.CompleteFollowUpResponse, error) {
	outcome, err := s.machine.Resolver().Taxonomy().Parse(req.Outcome)
	if err != nil {
		return nil, err
	}
	f, err := s.loadLive(ctx, id, userID, isAdmin)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	completion, err := s.machine.Complete(f, outcome, sanitize.Text(req.Notes), now)
	if err != nil {
		return nil, err
	}

	var failures []transport.PartialFailure
	var successor *domain.FollowUp
	if plan := completion.Resolution.Plan; plan != nil {
		spawned, err := s.machine.Spawn(completion.Record, *plan, userID, now)
		if err != nil {
			s.log.WithContext(ctx).BestEffortFailure("complete", transport.StepSuccessor, err)
			failures = append(failures, partialFailure(transport.StepSuccessor, err))
		} else {
			successor = &spawned
		}
	}

	written, err := s.commitCompletion(ctx, completion.Record, f.Status, successor)
	if err != nil {
		return nil, err
	}

	work := context.WithoutCancel(ctx)
	log := s.log.WithContext(work)
	rule := completion.Resolution.Rule
	resp := &transport.CompleteFollowUpResponse{
		FollowUp:       transport.ToFollowUpResponse(completion.Record, now),
		Category:       rule.Category,
		SubjectEffect:  string(completion.Resolution.Effect.Effect),
		PartialFailure: failures,
	}

	if successor != nil && !written {
		err := s.call(work, dependencyStore, func(ctx context.Context) error {
			return s.store.Create(ctx, *successor)
		})
		if err != nil {
			log.BestEffortFailure("complete", transport.StepSuccessor, err)
			resp.PartialFailure = append(resp.PartialFailure, partialFailure(transport.StepSuccessor, err))
			successor = nil
		}
	}
	if successor != nil {
		successorResp := transport.ToFollowUpResponse(*successor, now)
		resp.Successor = &successorResp
		s.scheduleReminder(work, "complete", *successor)
	}

	if effect := completion.Resolution.Effect; effect.Applies() {
		if err := s.applySubjectEffect(work, effect); err != nil {
			log.BestEffortFailure("complete", transport.StepSubjectStatus, err)
			resp.PartialFailure = append(resp.PartialFailure, partialFailure(transport.StepSubjectStatus, err))
		}
	}

	if rule.Category.Notifies() {
		if err := s.notifyCompletion(work, completion.Record, rule, userID); err != nil {
			log.BestEffortFailure("complete", transport.StepNotification, err)
			resp.PartialFailure = append(resp.PartialFailure, partialFailure(transport.StepNotification, err))
		}
	}

	return resp, nil
}

// commitCompletion writes the completed record, together with successor when
// the store can do both as one unit. It reports whether successor was written.
func (s *Service) commitCompletion(ctx context.Context, completed domain.FollowUp, expected domain.Status, successor *domain.FollowUp) (bool, error) {
	completer, ok := s.store.(repository.Completer)
	if !ok {
		return false, s.commit(ctx, completed, expected)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := s.call(context.WithoutCancel(ctx), dependencyStore, func(ctx context.Context) error {
		return completer.CompleteWithSuccessor(ctx, completed, expected, successor)
	})
	return err == nil && successor != nil, err
}

func (s *Service) applySubjectEffect(ctx context.Context, effect domain.SubjectStatusEffect) error {
	if s.directory == nil {
		return apperr.Internal("directory service not configured")
	}
	status, err := subjectStatus(effect.Effect)
	if err != nil {
		return err
	}
	return s.call(ctx, dependencyDirectory, func(ctx context.Context) error {
		if effect.Subject.LeadID != nil {
			return s.directory.SetLeadStatus(ctx, *effect.Subject.LeadID, status)
		}
		return s.directory.SetClientStatus(ctx, *effect.Subject.ClientID, status)
	})
}

func subjectStatus(effect domain.SubjectEffect) (string, error) {
	switch effect {
	case domain.EffectConverted:
		return ports.SubjectStatusConverted, nil
	case domain.EffectDisqualified:
		return ports.SubjectStatusDisqualified, nil
	default:
		return "", apperr.Internal(fmt.Sprintf("unsupported subject effect %q", effect))
	}
}

// notifyCompletion tells the assignee's manager, the creator and the assignee
// about a positive or successful outcome. The actor is never notified.
func (s *Service) notifyCompletion(ctx context.Context, f domain.FollowUp, rule domain.OutcomeRule, actor uuid.UUID) error {
	recipients := []uuid.UUID{f.CreatedBy, f.AssignedTo}

	var lookupErr error
	if s.directory != nil {
		var assignee ports.UserRecord
		lookupErr = s.call(ctx, dependencyDirectory, func(ctx context.Context) error {
			var err error
			assignee, err = s.directory.GetUser(ctx, f.AssignedTo)
			return err
		})
		if lookupErr == nil && assignee.ManagerID != nil {
			recipients = append([]uuid.UUID{*assignee.ManagerID}, recipients...)
		}
	}

	payload := followUpPayload(f, actor)
	payload["outcome"] = string(rule.Outcome)
	payload["outcomeLabel"] = rule.Label
	payload["category"] = string(rule.Category)

	seen := map[uuid.UUID]bool{actor: true, uuid.Nil: true}
	for _, to := range recipients {
		if seen[to] {
			continue
		}
		seen[to] = true
		s.notify(ctx, to, ports.NotificationCompleted, payload)
	}
	return lookupErr
}

func partialFailure(step string, err error) transport.PartialFailure {
	kind := apperr.GetKind(err)
	message := err.Error()
	if kind == apperr.KindUnknown {
		kind = apperr.KindInternal
		message = step + " failed"
	}
	return transport.PartialFailure{Step: step, ErrorKind: kind.String(), Message: message}
}
