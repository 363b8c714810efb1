package ports

import (
	"context"

	"github.com/google/uuid"
)

// PurgeArchiver keeps a copy of a follow-up before it is purged.
type PurgeArchiver interface {
	SnapshotFollowUp(ctx context.Context, id uuid.UUID, snapshot any) error
}
