// Package reconciler runs the scheduled sweeps that keep storage and
// document state converged: archival of closed-case documents and
// recovery of documents stranded in processing.
package reconciler

import (
	"context"
	"time"

	"casedocs-backend/internal/cases"
	"casedocs-backend/internal/documents"
	"casedocs-backend/internal/queue"
	"casedocs-backend/internal/shared/metrics"
	"casedocs-backend/internal/shared/storage/object"
	"casedocs-backend/internal/shared/storage/router"
	"casedocs-backend/internal/shared/telemetry"
)

const (
	defaultBatchLimit       = 200
	defaultArchiveRetention = 90 * 24 * time.Hour
	defaultStallThreshold   = time.Hour
)

// Reconciler owns the periodic sweeps. Both sweeps tolerate partial
// failure: a bad item is logged and skipped, never aborts the batch.
type Reconciler struct {
	Docs   documents.Repo
	Cases  cases.Repo
	Store  object.Store
	Router *router.Router
	// Producer re-queues reset documents. Nil means reset-only; something
	// else re-queues them.
	Producer *queue.Producer

	// ArchiveRetention is how long a case must have been completed before
	// its documents are copied to cold storage.
	ArchiveRetention time.Duration
	// StallThreshold is how long a document may sit in processing before
	// the sweep assumes its worker died.
	StallThreshold time.Duration
	// BatchLimit caps how many cases or documents one sweep touches.
	BatchLimit int
}

// ArchiveReport summarises one archival sweep.
type ArchiveReport struct {
	CasesScanned int
	Copied       int
	Skipped      int
}

// ArchiveOldDocuments copies documents of long-completed cases into the
// archive prefix under cold storage. Originals are kept; the copy exists
// so lifecycle rules on the archive prefix can expire independently.
func (r *Reconciler) ArchiveOldDocuments(ctx context.Context, now time.Time) (ArchiveReport, error) {
	retention := r.ArchiveRetention
	if retention <= 0 {
		retention = defaultArchiveRetention
	}
	limit := r.BatchLimit
	if limit <= 0 {
		limit = defaultBatchLimit
	}

	cutoff := now.Add(-retention)
	completed, err := r.Cases.ListCompletedBefore(ctx, cutoff, limit)
	if err != nil {
		return ArchiveReport{}, err
	}

	report := ArchiveReport{CasesScanned: len(completed)}
	for _, c := range completed {
		docs, err := r.Docs.ListByCase(ctx, c.ID)
		if err != nil {
			telemetry.Warn("reconcile.archive.list_failed", map[string]any{
				"case_id": c.ID,
				"error":   err.Error(),
			})
			report.Skipped++
			continue
		}
		for _, doc := range docs {
			if doc.Storage.IsZero() {
				continue
			}
			src := object.Ref{Bucket: doc.Storage.Bucket, Key: doc.Storage.Key, Region: doc.Storage.Region}
			dst := object.Ref{
				Bucket: doc.Storage.Bucket,
				Key:    r.Router.ArchiveKey(c.ID, doc.Storage.Key),
				Region: doc.Storage.Region,
			}
			if err := r.Store.Copy(ctx, src, dst, object.ClassGlacierIR); err != nil {
				telemetry.Warn("reconcile.archive.copy_failed", map[string]any{
					"case_id":     c.ID,
					"document_id": doc.ID,
					"src":         src.String(),
					"error":       err.Error(),
				})
				report.Skipped++
				continue
			}
			report.Copied++
		}
	}

	metrics.AddArchiveCopies(report.Copied)
	telemetry.Info("reconcile.archive.done", map[string]any{
		"cases_scanned": report.CasesScanned,
		"copied":        report.Copied,
		"skipped":       report.Skipped,
		"cutoff":        cutoff.UTC().Format(time.RFC3339),
	})
	return report, nil
}

// ResetStuckDocuments returns documents abandoned mid-processing to the
// uploaded state so they can be re-queued. A worker that is merely slow is
// protected by the stall threshold exceeding the processing deadline.
func (r *Reconciler) ResetStuckDocuments(ctx context.Context, now time.Time) (int, error) {
	threshold := r.StallThreshold
	if threshold <= 0 {
		threshold = defaultStallThreshold
	}
	limit := r.BatchLimit
	if limit <= 0 {
		limit = defaultBatchLimit
	}

	stuck, err := r.Docs.ListStuckProcessing(ctx, now.Add(-threshold), limit)
	if err != nil {
		return 0, err
	}

	reset := 0
	for _, doc := range stuck {
		tr, err := doc.TimeoutProcessing(now)
		if err != nil {
			// Listed as processing but changed since; leave it alone.
			continue
		}
		if err := r.Docs.Save(ctx, doc, tr); err != nil {
			telemetry.Warn("reconcile.stuck.reset_failed", map[string]any{
				"document_id": doc.ID,
				"error":       err.Error(),
			})
			continue
		}
		telemetry.Info("document.status", map[string]any{
			"document_id":       doc.ID,
			"case_id":           doc.CaseID,
			"status":            string(tr.To),
			"status_transition": string(tr.From) + "->" + string(tr.To),
			"reason":            "stuck_reset",
		})
		reset++

		if r.Producer != nil {
			if err := r.Producer.EnqueueProcessing(ctx, doc.ID); err != nil {
				telemetry.Warn("reconcile.stuck.requeue_failed", map[string]any{
					"document_id": doc.ID,
					"error":       err.Error(),
				})
			}
		}
	}

	metrics.AddStuckResets(reset)
	telemetry.Info("reconcile.stuck.done", map[string]any{
		"found": len(stuck),
		"reset": reset,
	})
	return reset, nil
}
