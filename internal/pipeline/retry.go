package pipeline

import (
	"context"
	"time"

	"casedocs-backend/internal/shared/storage/object"
	"casedocs-backend/internal/shared/telemetry"
)

// fetchWithRetry reads an object, retrying transient store failures with
// exponential backoff. retries counts retries after the first read, so the
// store sees at most retries+1 Get calls. Non-transient failures return
// immediately.
func fetchWithRetry(ctx context.Context, store object.Store, ref object.Ref, retries int, baseDelay time.Duration, requestID string) ([]byte, error) {
	if retries < 0 {
		retries = 0
	}
	attempts := retries + 1
	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		data, err := store.Get(ctx, ref)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !object.IsTransient(err) {
			return nil, err
		}
		if attempt == attempts {
			break
		}
		telemetry.Warn("pipeline.fetch.retry", map[string]any{
			"request_id": requestID,
			"ref":        ref.String(),
			"attempt":    attempt,
			"delay_ms":   delay.Milliseconds(),
			"error":      err.Error(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay *= 2
	}
	return nil, lastErr
}
