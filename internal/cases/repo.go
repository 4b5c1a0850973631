package cases

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("case not found")

// Repo defines the read operations the lifecycle needs on cases.
type Repo interface {
	GetByID(ctx context.Context, id string) (Case, error)
	// ListCompletedBefore returns completed cases untouched since cutoff.
	ListCompletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]Case, error)
}
