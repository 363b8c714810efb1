package service

import (
	"context"
	"strings"
	"time"

	"followup_backend/internal/followups/domain"
	"followup_backend/internal/followups/ports"
	"followup_backend/internal/followups/repository"
	"followup_backend/internal/followups/transport"
	"followup_backend/platform/apperr"
	"followup_backend/platform/phone"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	dateFormat        = "2006-01-02"
	unassignedName    = "Unassigned"
	nameLookupWorkers = 8
)

// List returns the caller's follow-ups deduplicated, grouped by subject and
// paginated over groups.
func (s *Service) List(ctx context.Context, userID uuid.UUID, isAdmin bool, req transport.ListFollowUpsRequest) (*transport.ListFollowUpsResponse, error) {
	now := s.clock()
	items, removed, err := s.fetch(ctx, userID, isAdmin, req, now)
	if err != nil {
		return nil, err
	}

	groups := domain.GroupBySubject(items, now)
	page, meta := domain.Paginate(groups, req.Page, req.PageSize)
	if err := s.resolveGroupNames(ctx, page); err != nil {
		return nil, err
	}

	resp := &transport.ListFollowUpsResponse{
		Groups:            make([]transport.GroupResponse, 0, len(page)),
		Pagination:        meta,
		TotalFollowUps:    len(items),
		DuplicatesRemoved: removed,
	}
	for _, g := range page {
		resp.Groups = append(resp.Groups, transport.ToGroupResponse(g))
	}
	return resp, nil
}

// Stats counts the caller's follow-ups by display status.
func (s *Service) Stats(ctx context.Context, userID uuid.UUID, isAdmin bool, req transport.ListFollowUpsRequest) (*transport.StatsResponse, error) {
	now := s.clock()
	items, removed, err := s.fetch(ctx, userID, isAdmin, req, now)
	if err != nil {
		return nil, err
	}
	return &transport.StatsResponse{Counts: domain.Summarize(items, now), DuplicatesRemoved: removed}, nil
}

// fetch queries the store for the requested scope and removes duplicates.
// Non-admins asking for everything visible get the union of what they are
// assigned and what they created, which overlaps by construction.
func (s *Service) fetch(ctx context.Context, userID uuid.UUID, isAdmin bool, req transport.ListFollowUpsRequest, now time.Time) ([]domain.FollowUp, int, error) {
	base, err := s.buildFilter(req, now)
	if err != nil {
		return nil, 0, err
	}

	var filters []repository.Filter
	switch transport.ListScope(req.Scope) {
	case transport.ScopeAssigned:
		f := base
		f.AssignedTo = &userID
		filters = append(filters, f)
	case transport.ScopeCreated:
		f := base
		f.CreatedBy = &userID
		filters = append(filters, f)
	case transport.ScopeAll, "":
		if isAdmin {
			filters = append(filters, base)
		} else {
			assigned, created := base, base
			assigned.AssignedTo = &userID
			created.CreatedBy = &userID
			filters = append(filters, assigned, created)
		}
	default:
		return nil, 0, apperr.Validation("invalid scope")
	}

	batches := make([][]domain.FollowUp, len(filters))
	g, gctx := errgroup.WithContext(ctx)
	for i, filter := range filters {
		g.Go(func() error {
			var err error
			batches[i], err = s.findAll(gctx, filter)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	var merged []domain.FollowUp
	for _, batch := range batches {
		merged = append(merged, batch...)
	}
	unique, removed := domain.Dedupe(merged)
	s.log.WithContext(ctx).DuplicatesRemoved("list_followups", removed, len(unique))
	return unique, removed, nil
}

// findAll reads every page of filter, fetchLimit rows per store call.
func (s *Service) findAll(ctx context.Context, filter repository.Filter) ([]domain.FollowUp, error) {
	filter.Limit = s.fetchLimit
	var all []domain.FollowUp
	for {
		var page []domain.FollowUp
		err := s.call(ctx, dependencyStore, func(ctx context.Context) error {
			var err error
			page, err = s.store.Find(ctx, filter)
			return err
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < filter.Limit {
			return all, nil
		}
		filter.After = repository.CursorAt(page[len(page)-1])
	}
}

func (s *Service) buildFilter(req transport.ListFollowUpsRequest, now time.Time) (repository.Filter, error) {
	filter := repository.Filter{
		Search:   strings.TrimSpace(req.Search),
		Archived: req.Archived,
		Limit:    s.fetchLimit,
		Now:      now,
	}
	for _, status := range req.Status {
		filter.Statuses = append(filter.Statuses, domain.DisplayStatus(status))
	}
	for _, t := range req.Type {
		filter.Types = append(filter.Types, domain.Type(t))
	}
	for _, p := range req.Priority {
		filter.Priorities = append(filter.Priorities, domain.Priority(p))
	}

	var err error
	if filter.LeadID, err = parseOptionalID(req.LeadID); err != nil {
		return repository.Filter{}, apperr.Validation("invalid leadId")
	}
	if filter.ClientID, err = parseOptionalID(req.ClientID); err != nil {
		return repository.Filter{}, apperr.Validation("invalid clientId")
	}
	if filter.From, err = s.parseBound(req.From, false); err != nil {
		return repository.Filter{}, apperr.Validation("invalid from date")
	}
	if filter.To, err = s.parseBound(req.To, true); err != nil {
		return repository.Filter{}, apperr.Validation("invalid to date")
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return repository.Filter{}, apperr.Validation("to must not be before from")
	}
	return filter, nil
}

func parseOptionalID(value string) (*uuid.UUID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// parseBound accepts RFC3339 timestamps or plain dates in the canonical zone.
// A plain upper bound covers the whole day.
func (s *Service) parseBound(value string, endOfDay bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(dateFormat, value, s.location)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &t, nil
}

// resolveGroupNames fills subject names and phones from the directory. A
// missing subject keeps an empty name; a timeout fails the listing.
func (s *Service) resolveGroupNames(ctx context.Context, groups []domain.Group) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(nameLookupWorkers)
	for i := range groups {
		group := &groups[i]
		if group.Subject.IsZero() {
			group.Name = unassignedName
			continue
		}
		if s.directory == nil {
			continue
		}
		g.Go(func() error {
			var record ports.SubjectRecord
			err := s.call(gctx, dependencyDirectory, func(ctx context.Context) error {
				var err error
				if group.Subject.LeadID != nil {
					record, err = s.directory.GetLead(ctx, *group.Subject.LeadID)
				} else {
					record, err = s.directory.GetClient(ctx, *group.Subject.ClientID)
				}
				return err
			})
			switch {
			case err == nil:
				group.Name = record.Name
				group.Phone = phone.Display(record.Phone, s.phoneRegion)
				return nil
			case apperr.Is(err, apperr.KindDependencyTimeout):
				return err
			default:
				s.log.WithContext(gctx).BestEffortFailure("list_followups", "subject_name", err)
				return nil
			}
		})
	}
	return g.Wait()
}

// Chain returns the generation chain through id, oldest first: its ancestors
// via generatedFromId and its descendants via their successors.
func (s *Service) Chain(ctx context.Context, id, userID uuid.UUID, isAdmin bool) (*transport.ChainResponse, error) {
	f, err := s.loadAccessible(ctx, id, userID, isAdmin)
	if err != nil {
		return nil, err
	}

	seen := map[uuid.UUID]bool{f.ID: true}
	ancestors := make([]domain.FollowUp, 0)
	for current := f; current.GeneratedFromID != nil && len(seen) < maxChainLength; {
		parentID := *current.GeneratedFromID
		if seen[parentID] {
			break
		}
		parent, err := s.load(ctx, parentID)
		if apperr.Is(err, apperr.KindNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		seen[parent.ID] = true
		ancestors = append(ancestors, parent)
		current = parent
	}

	descendants := make([]domain.FollowUp, 0)
	for current := f; len(seen) < maxChainLength; {
		child, ok, err := s.successorOf(ctx, current.ID)
		if err != nil {
			return nil, err
		}
		if !ok || seen[child.ID] {
			break
		}
		seen[child.ID] = true
		descendants = append(descendants, child)
		current = child
	}

	now := s.clock()
	items := make([]transport.FollowUpResponse, 0, len(ancestors)+1+len(descendants))
	for i := len(ancestors) - 1; i >= 0; i-- {
		items = append(items, transport.ToFollowUpResponse(ancestors[i], now))
	}
	items = append(items, transport.ToFollowUpResponse(f, now))
	for _, d := range descendants {
		items = append(items, transport.ToFollowUpResponse(d, now))
	}
	return &transport.ChainResponse{Items: items}, nil
}

func (s *Service) successorOf(ctx context.Context, id uuid.UUID) (domain.FollowUp, bool, error) {
	var found []domain.FollowUp
	lookup := func(archived bool) error {
		return s.call(ctx, dependencyStore, func(ctx context.Context) error {
			var err error
			found, err = s.store.Find(ctx, repository.Filter{GeneratedFromID: &id, Archived: archived, Limit: 1})
			return err
		})
	}
	if err := lookup(false); err != nil {
		return domain.FollowUp{}, false, err
	}
	if len(found) == 0 {
		if err := lookup(true); err != nil {
			return domain.FollowUp{}, false, err
		}
	}
	if len(found) == 0 {
		return domain.FollowUp{}, false, nil
	}
	return found[0], true, nil
}
