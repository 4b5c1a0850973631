package documents

import (
	"context"
	"time"
)

// Repo defines persistence operations for document records. Mutations go
// through Save with a Transition; callers never write arbitrary fields.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, id string) (Document, error)
	// Save writes only the fields named by the transition, guarded by the
	// transition's starting status. Returns ErrStatusConflict if the stored
	// status has moved on, ErrNotFound if the record is gone.
	Save(ctx context.Context, doc Document, tr Transition) error
	// ListStuckProcessing returns documents in processing whose updated_at
	// predates olderThan.
	ListStuckProcessing(ctx context.Context, olderThan time.Time, limit int) ([]Document, error)
	ListByCase(ctx context.Context, caseID string) ([]Document, error)
}
