// Package pipeline runs the asynchronous document processing task: fetch
// bytes from object storage, extract structured data, and record the
// outcome through the document state machine.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"casedocs-backend/internal/documents"
	"casedocs-backend/internal/extract"
	"casedocs-backend/internal/queue"
	"casedocs-backend/internal/shared/metrics"
	"casedocs-backend/internal/shared/storage/object"
	"casedocs-backend/internal/shared/telemetry"
)

const (
	defaultFetchRetries   = 3
	defaultRetryBaseDelay = 60 * time.Second
	defaultTimeout        = 30 * time.Minute
)

// Service processes documents. Delivery is at-least-once; the state
// machine's guarded saves make duplicate deliveries safe no-ops.
type Service struct {
	Docs     documents.Repo
	Store    object.Store
	Producer *queue.Producer

	// FetchRetries and RetryBaseDelay bound the in-process retry on
	// transient object-store reads. FetchRetries counts retries after the
	// first read, so a read is attempted at most FetchRetries+1 times.
	FetchRetries   int
	RetryBaseDelay time.Duration
	// Timeout is the hard ceiling for one processing attempt.
	Timeout time.Duration
}

// Process runs one processing attempt for the document. It never throws
// for expected failures; the Outcome tells the queue adapter what to do.
func (s *Service) Process(ctx context.Context, documentID string) Outcome {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	requestID := requestIDFromContext(ctx)
	startedAt := time.Now().UTC()

	doc, err := s.Docs.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			telemetry.Error("pipeline.document.missing", map[string]any{
				"request_id":  requestID,
				"document_id": documentID,
			})
			return Outcome{Disposition: DispositionFatal, Code: ErrorCodeNotFound, Err: fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)}
		}
		return Outcome{Disposition: DispositionRetryable, Code: ErrorCodeStorage, Err: fmt.Errorf("document lookup id=%s: %w", documentID, err)}
	}

	tr, err := doc.BeginProcessing(startedAt)
	if err != nil {
		// Duplicate or stale delivery. At-least-once means this is
		// expected; nothing was mutated.
		telemetry.Info("pipeline.begin.noop", map[string]any{
			"request_id":  requestID,
			"document_id": doc.ID,
			"status":      string(doc.Status),
		})
		return Outcome{Disposition: DispositionNoop}
	}
	if err := s.Docs.Save(ctx, doc, tr); err != nil {
		if errors.Is(err, documents.ErrStatusConflict) {
			// A concurrent delivery claimed the document first.
			return Outcome{Disposition: DispositionNoop}
		}
		return Outcome{Disposition: DispositionRetryable, Code: ErrorCodeStorage, Err: fmt.Errorf("begin processing id=%s: %w", doc.ID, err)}
	}
	s.logTransition(ctx, doc, tr, nil)

	retries := s.FetchRetries
	if retries <= 0 {
		retries = defaultFetchRetries
	}
	baseDelay := s.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultRetryBaseDelay
	}

	ref := object.Ref{Bucket: doc.Storage.Bucket, Key: doc.Storage.Key, Region: doc.Storage.Region}
	data, err := fetchWithRetry(ctx, s.Store, ref, retries, baseDelay, requestID)
	if err != nil {
		if object.IsTransient(err) {
			// No state transition: the document stays in processing and
			// the queue redelivers. If redeliveries run out, the stuck
			// sweep resets it.
			metrics.IncDocumentsFailed()
			return Outcome{Disposition: DispositionRetryable, Code: ErrorCodeStorage, Err: fmt.Errorf("fetch document id=%s: %w", doc.ID, err)}
		}
		return s.failFatal(ctx, doc, ErrorCodeStorage, fmt.Errorf("fetch document id=%s: %w", doc.ID, err))
	}

	result, err := extract.Process(ctx, doc.DocumentType, data, doc.ContentType)
	if err != nil {
		return s.failFatal(ctx, doc, ErrorCodeExtraction, fmt.Errorf("extract document id=%s type=%s: %w", doc.ID, doc.DocumentType, err))
	}

	completedAt := time.Now().UTC()
	tr, err = doc.CompleteProcessing(result.Data, result.OCRText, completedAt)
	if err != nil {
		return s.failFatal(ctx, doc, ErrorCodeInternal, fmt.Errorf("complete processing id=%s: %w", doc.ID, err))
	}
	if err := s.Docs.Save(ctx, doc, tr); err != nil {
		if errors.Is(err, documents.ErrStatusConflict) {
			// Another worker already recorded an outcome; exactly one
			// success survives.
			return Outcome{Disposition: DispositionNoop}
		}
		return s.failFatal(ctx, doc, ErrorCodeStorage, fmt.Errorf("record result id=%s: %w", doc.ID, err))
	}

	metrics.IncDocumentsProcessed()
	metrics.ObserveProcessingDurationMs(metrics.DurationMs(startedAt, completedAt))
	s.logTransition(ctx, doc, tr, map[string]any{"duration_ms": metrics.DurationMs(startedAt, completedAt)})

	if s.Producer != nil {
		// Best-effort: a lost notification never rolls back processing.
		if err := s.Producer.EnqueueNotification(ctx, doc.ID); err != nil {
			telemetry.Warn("pipeline.notify.enqueue_failed", map[string]any{
				"request_id":  requestID,
				"document_id": doc.ID,
				"error":       err.Error(),
			})
		}
	}
	return Outcome{Disposition: DispositionSuccess}
}

// failFatal records a fatal attempt by resetting the document to uploaded.
// If the reset write itself fails the document stays in processing, where
// the stuck-task sweep will recover it; that fallback is deliberate.
func (s *Service) failFatal(ctx context.Context, doc documents.Document, code string, cause error) Outcome {
	metrics.IncDocumentsFailed()
	tr, err := doc.FailProcessing(time.Now().UTC())
	if err != nil {
		telemetry.Error("pipeline.reset.invalid", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"document_id": doc.ID,
			"status":      string(doc.Status),
			"error":       err.Error(),
		})
		return Outcome{Disposition: DispositionFatal, Code: code, Err: cause}
	}
	if err := s.Docs.Save(ctx, doc, tr); err != nil {
		telemetry.Warn("pipeline.reset.deferred", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"document_id": doc.ID,
			"error":       err.Error(),
		})
	} else {
		s.logTransition(ctx, doc, tr, map[string]any{"error": cause.Error()})
	}
	return Outcome{Disposition: DispositionFatal, Code: code, Err: cause}
}

func (s *Service) logTransition(ctx context.Context, doc documents.Document, tr documents.Transition, extra map[string]any) {
	fields := map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"document_id":       doc.ID,
		"case_id":           doc.CaseID,
		"document_type":     doc.DocumentType,
		"status":            string(tr.To),
		"status_transition": string(tr.From) + "->" + string(tr.To),
	}
	for k, v := range extra {
		fields[k] = v
	}
	telemetry.Info("document.status", fields)
}
