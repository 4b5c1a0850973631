package documents

import "errors"

var (
	ErrNotFound          = errors.New("document not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrStatusConflict means the guarded save lost a race: the stored
	// status no longer matches the transition's starting status.
	ErrStatusConflict = errors.New("document status conflict")
)
