package pipeline

import "errors"

// Disposition tells the task-queue adapter what to do with the delivery.
// Expected failure paths are values, not panics or thrown errors.
type Disposition string

const (
	// DispositionSuccess: extraction recorded, delete the message.
	DispositionSuccess Disposition = "success"
	// DispositionNoop: duplicate or stale delivery; nothing written,
	// delete the message.
	DispositionNoop Disposition = "noop"
	// DispositionFatal: failure recorded against the document; delete the
	// message, do not retry.
	DispositionFatal Disposition = "fatal"
	// DispositionRetryable: no state written; the queue should redeliver
	// with backoff.
	DispositionRetryable Disposition = "retryable"
)

// Outcome is the result of one processing attempt.
type Outcome struct {
	Disposition Disposition
	Code        string
	Err         error
}

// Retryable reports whether the queue should schedule a redelivery.
func (o Outcome) Retryable() bool {
	return o.Disposition == DispositionRetryable
}

// Error codes recorded on failed attempts.
const (
	ErrorCodeNotFound   = "DOCUMENT_NOT_FOUND"
	ErrorCodeStorage    = "STORAGE_ERROR"
	ErrorCodeExtraction = "EXTRACTION_ERROR"
	ErrorCodeInternal   = "INTERNAL_ERROR"
)

// ErrDocumentNotFound indicates a stale message: the identifier no longer
// resolves to a record. Non-retryable.
var ErrDocumentNotFound = errors.New("document not found for processing")
