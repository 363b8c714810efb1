package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"followup_backend/internal/followups/ports"

	"github.com/google/uuid"
)

const snapshotContentType = "application/json"

// ObjectWriter stores one object.
type ObjectWriter interface {
	PutObject(ctx context.Context, bucket, key, contentType string, reader io.Reader, size int64) error
}

// FollowUpArchiver keeps a JSON copy of each purged follow-up.
type FollowUpArchiver struct {
	store  ObjectWriter
	bucket string
	now    func() time.Time
}

func NewFollowUpArchiver(store ObjectWriter, bucket string) *FollowUpArchiver {
	return &FollowUpArchiver{store: store, bucket: bucket, now: time.Now}
}

type snapshotDocument struct {
	FollowUpID uuid.UUID `json:"followUpId"`
	PurgedAt   time.Time `json:"purgedAt"`
	FollowUp   any       `json:"followUp"`
}

// SnapshotFollowUp writes followups/YYYY/MM/DD/<id>-<unix>.json.
func (a *FollowUpArchiver) SnapshotFollowUp(ctx context.Context, id uuid.UUID, snapshot any) error {
	purgedAt := a.now().UTC()
	data, err := json.Marshal(snapshotDocument{FollowUpID: id, PurgedAt: purgedAt, FollowUp: snapshot})
	if err != nil {
		return fmt.Errorf("marshal follow-up snapshot: %w", err)
	}
	return a.store.PutObject(ctx, a.bucket, snapshotKey(id, purgedAt), snapshotContentType, bytes.NewReader(data), int64(len(data)))
}

func snapshotKey(id uuid.UUID, at time.Time) string {
	return fmt.Sprintf("followups/%s/%s-%d.json", at.Format("2006/01/02"), id, at.Unix())
}

var _ ports.PurgeArchiver = (*FollowUpArchiver)(nil)
