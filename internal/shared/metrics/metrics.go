package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	processJobsReceivedTotal      atomic.Uint64
	processJobsCompletedTotal     atomic.Uint64
	processJobsFailedTotal        atomic.Uint64
	processJobsRetriedTotal       atomic.Uint64
	processJobsUnrecoverableTotal atomic.Uint64

	documentsProcessedTotal atomic.Uint64
	documentsFailedTotal    atomic.Uint64
	archiveCopiesTotal      atomic.Uint64
	stuckResetsTotal        atomic.Uint64
	notificationsSentTotal  atomic.Uint64

	processingDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 300000})
)

// IncProcessJobsReceived increments the received-jobs counter.
func IncProcessJobsReceived() { processJobsReceivedTotal.Add(1) }

// IncProcessJobsCompleted increments the completed-jobs counter.
func IncProcessJobsCompleted() { processJobsCompletedTotal.Add(1) }

// IncProcessJobsFailed increments the failed-jobs counter.
func IncProcessJobsFailed() { processJobsFailedTotal.Add(1) }

// IncProcessJobsRetried increments the retried-jobs counter.
func IncProcessJobsRetried() { processJobsRetriedTotal.Add(1) }

// IncProcessJobsDeletedUnrecoverable increments the unrecoverable-jobs counter.
func IncProcessJobsDeletedUnrecoverable() { processJobsUnrecoverableTotal.Add(1) }

// IncDocumentsProcessed increments the processed-documents counter.
func IncDocumentsProcessed() { documentsProcessedTotal.Add(1) }

// IncDocumentsFailed increments the failed-documents counter.
func IncDocumentsFailed() { documentsFailedTotal.Add(1) }

// AddArchiveCopies adds to the archive-copies counter.
func AddArchiveCopies(n int) {
	if n > 0 {
		archiveCopiesTotal.Add(uint64(n))
	}
}

// AddStuckResets adds to the stuck-resets counter.
func AddStuckResets(n int) {
	if n > 0 {
		stuckResetsTotal.Add(uint64(n))
	}
}

// IncNotificationsSent increments the notifications counter.
func IncNotificationsSent() { notificationsSentTotal.Add(1) }

// ObserveProcessingDurationMs records a document processing duration in milliseconds.
func ObserveProcessingDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	processingDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "process_jobs_received_total", "Total processing jobs received", processJobsReceivedTotal.Load())
	writeCounter(&buf, "process_jobs_completed_total", "Total processing jobs completed", processJobsCompletedTotal.Load())
	writeCounter(&buf, "process_jobs_failed_total", "Total processing jobs failed", processJobsFailedTotal.Load())
	writeCounter(&buf, "process_jobs_retried_total", "Total processing jobs scheduled for retry", processJobsRetriedTotal.Load())
	writeCounter(&buf, "process_jobs_unrecoverable_total", "Total malformed jobs deleted", processJobsUnrecoverableTotal.Load())
	writeCounter(&buf, "documents_processed_total", "Total documents processed successfully", documentsProcessedTotal.Load())
	writeCounter(&buf, "documents_failed_total", "Total documents whose processing failed", documentsFailedTotal.Load())
	writeCounter(&buf, "archive_copies_total", "Total documents copied to archive storage", archiveCopiesTotal.Load())
	writeCounter(&buf, "stuck_resets_total", "Total stuck documents reset to uploaded", stuckResetsTotal.Load())
	writeCounter(&buf, "notifications_sent_total", "Total notifications delivered", notificationsSentTotal.Load())
	writeHistogram(&buf, "processing_duration_ms", "Document processing duration in milliseconds", processingDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	// Observe keeps bucket counts cumulative already.
	for i, bound := range snap.buckets {
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), snap.counts[i])
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// DurationMs returns the elapsed time between two instants in milliseconds.
func DurationMs(start, end time.Time) float64 {
	return float64(end.Sub(start).Microseconds()) / 1000.0
}
