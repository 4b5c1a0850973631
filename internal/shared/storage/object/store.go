// Package object defines the contract for region-aware object storage.
// All operations take an explicit Ref; nothing is inferred from ambient
// configuration.
package object

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Ref identifies a stored object.
type Ref struct {
	Bucket string
	Key    string
	Region string
}

func (r Ref) String() string {
	return fmt.Sprintf("bucket=%s key=%s region=%s", r.Bucket, r.Key, r.Region)
}

// Metadata describes a stored object without fetching its contents.
type Metadata struct {
	SizeBytes    int64
	ContentType  string
	LastModified time.Time
	Checksum     string
}

// SignedUpload carries a presigned upload URL and the headers the client
// must send with it.
type SignedUpload struct {
	URL    string
	Fields map[string]string
}

// StorageClass is the cost/latency tier for a stored object.
type StorageClass string

const (
	ClassStandard  StorageClass = "STANDARD"
	ClassGlacierIR StorageClass = "GLACIER_IR"
)

// Store is the object storage contract used by the document lifecycle.
type Store interface {
	Get(ctx context.Context, ref Ref) ([]byte, error)
	Put(ctx context.Context, ref Ref, data []byte, contentType string) error
	// Delete is idempotent; deleting an absent key is not an error.
	Delete(ctx context.Context, ref Ref) error
	// Copy duplicates src into dst with the given storage class. The source
	// object is preserved.
	Copy(ctx context.Context, src, dst Ref, class StorageClass) error
	Head(ctx context.Context, ref Ref) (Metadata, error)
	// PresignDownload and PresignUpload compute time-limited URLs locally;
	// they fail only on malformed input. TTLs above the store's configured
	// maximum are clamped.
	PresignDownload(ctx context.Context, ref Ref, ttl time.Duration) (string, error)
	PresignUpload(ctx context.Context, ref Ref, ttl time.Duration) (SignedUpload, error)
}

// Failure taxonomy. Implementations translate backend errors into exactly
// one of these; callers match with errors.Is.
var (
	ErrNotFound     = errors.New("object not found")
	ErrAccessDenied = errors.New("object access denied")
	ErrTransient    = errors.New("transient store error")
	ErrInvalidTTL   = errors.New("invalid presign ttl")
)

// IsTransient reports whether err is a retryable store failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// BoundTTL validates a presign TTL and clamps it to max.
func BoundTTL(ttl, max time.Duration) (time.Duration, error) {
	if ttl <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidTTL, ttl)
	}
	if max > 0 && ttl > max {
		return max, nil
	}
	return ttl, nil
}
