package service

import (
	"context"

	"followup_backend/internal/followups/domain"
	"followup_backend/internal/followups/transport"
	"followup_backend/platform/apperr"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Archive soft-deletes a follow-up. It stays recoverable until purged.
func (s *Service) Archive(ctx context.Context, id, userID uuid.UUID, isAdmin bool) error {
	f, err := s.loadAccessible(ctx, id, userID, isAdmin)
	if err != nil {
		return err
	}
	if f.IsArchived() {
		return apperr.Conflict("follow-up is already archived")
	}
	return s.call(ctx, dependencyStore, func(ctx context.Context) error {
		return s.store.SoftDelete(ctx, id, s.clock())
	})
}

// Restore brings an archived follow-up back.
func (s *Service) Restore(ctx context.Context, id, userID uuid.UUID, isAdmin bool) (*transport.FollowUpResponse, error) {
	f, err := s.loadAccessible(ctx, id, userID, isAdmin)
	if err != nil {
		return nil, err
	}
	if !f.IsArchived() {
		return nil, apperr.Conflict("follow-up is not archived")
	}
	now := s.clock()
	if err := s.call(ctx, dependencyStore, func(ctx context.Context) error {
		return s.store.Restore(ctx, id, now)
	}); err != nil {
		return nil, err
	}
	f.ArchivedAt = nil
	f.UpdatedAt = now
	resp := transport.ToFollowUpResponse(f, now)
	return &resp, nil
}

// Purge permanently removes an archived follow-up. Live records fail with
// NotArchived.
func (s *Service) Purge(ctx context.Context, id, userID uuid.UUID, isAdmin bool) error {
	f, err := s.loadAccessible(ctx, id, userID, isAdmin)
	if err != nil {
		return err
	}
	return s.purge(ctx, f)
}

func (s *Service) purge(ctx context.Context, f domain.FollowUp) error {
	if !f.IsArchived() {
		return apperr.NotArchived("follow-up must be archived before it can be purged")
	}
	if s.archiver != nil {
		err := s.call(ctx, "purge archiver", func(ctx context.Context) error {
			return s.archiver.SnapshotFollowUp(ctx, f.ID, transport.ToFollowUpResponse(f, s.clock()))
		})
		if err != nil {
			s.log.WithContext(ctx).BestEffortFailure("purge", "snapshot", err)
		}
	}
	return s.call(ctx, dependencyStore, func(ctx context.Context) error {
		return s.store.Purge(ctx, f.ID)
	})
}

// BulkDelete archives then purges every id. Items are paced and processed
// with bounded concurrency; each id reports its own result.
func (s *Service) BulkDelete(ctx context.Context, userID uuid.UUID, isAdmin bool, req transport.BulkDeleteRequest) (*transport.BulkDeleteResponse, error) {
	ids := uniqueIDs(req.IDs)
	if len(ids) == 0 {
		return nil, apperr.Validation("ids are required")
	}

	results := make([]transport.BulkDeleteResult, len(ids))
	var g errgroup.Group
	g.SetLimit(s.bulkConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = s.deleteOne(ctx, id, userID, isAdmin)
			return nil
		})
	}
	_ = g.Wait()

	resp := &transport.BulkDeleteResponse{Results: results}
	for _, r := range results {
		if r.OK {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	return resp, nil
}

func (s *Service) deleteOne(ctx context.Context, id, userID uuid.UUID, isAdmin bool) transport.BulkDeleteResult {
	result := transport.BulkDeleteResult{ID: id}
	err := func() error {
		if err := s.bulkLimiter.Wait(ctx); err != nil {
			return err
		}
		f, err := s.loadAccessible(ctx, id, userID, isAdmin)
		if err != nil {
			return err
		}
		if !f.IsArchived() {
			now := s.clock()
			if err := s.call(ctx, dependencyStore, func(ctx context.Context) error {
				return s.store.SoftDelete(ctx, id, now)
			}); err != nil {
				return err
			}
			f.ArchivedAt = &now
		}
		return s.purge(ctx, f)
	}()
	if err != nil {
		kind := apperr.GetKind(err)
		if kind == apperr.KindUnknown {
			kind = apperr.KindInternal
		}
		result.ErrorKind = kind.String()
		result.Message = err.Error()
		return result
	}
	result.OK = true
	return result
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
