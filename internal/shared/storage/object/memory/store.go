// Package memory provides an in-process object store used by tests and
// local development. It supports fault injection for transient failures.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"casedocs-backend/internal/shared/storage/object"
)

type entry struct {
	data         []byte
	contentType  string
	storageClass object.StorageClass
	lastModified time.Time
}

// Store implements object.Store backed by a map.
type Store struct {
	mu      sync.Mutex
	objects map[string]entry
	maxTTL  time.Duration

	getFaults int
	getErr    error
	putErr    error
	copyErr   error
}

// New creates an empty memory store. maxTTL bounds presigned URL lifetimes;
// zero means one hour.
func New(maxTTL time.Duration) *Store {
	if maxTTL <= 0 {
		maxTTL = time.Hour
	}
	return &Store{
		objects: map[string]entry{},
		maxTTL:  maxTTL,
	}
}

func refKey(ref object.Ref) string {
	return ref.Bucket + "/" + ref.Key
}

// FailGets makes the next n Get calls return err.
func (s *Store) FailGets(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getFaults = n
	s.getErr = err
}

// FailPuts makes Put calls return err until reset with nil.
func (s *Store) FailPuts(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putErr = err
}

// FailCopies makes Copy calls return err until reset with nil.
func (s *Store) FailCopies(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.copyErr = err
}

// Get returns the stored bytes for ref.
func (s *Store) Get(ctx context.Context, ref object.Ref) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getFaults > 0 {
		s.getFaults--
		return nil, fmt.Errorf("memory get %s: %w", ref, s.getErr)
	}
	e, ok := s.objects[refKey(ref)]
	if !ok {
		return nil, fmt.Errorf("memory get %s: %w", ref, object.ErrNotFound)
	}
	return append([]byte(nil), e.data...), nil
}

// Put stores the bytes under ref.
func (s *Store) Put(ctx context.Context, ref object.Ref, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return fmt.Errorf("memory put %s: %w", ref, s.putErr)
	}
	s.objects[refKey(ref)] = entry{
		data:         append([]byte(nil), data...),
		contentType:  contentType,
		storageClass: object.ClassStandard,
		lastModified: time.Now().UTC(),
	}
	return nil
}

// Delete removes ref if present; absent keys are not an error.
func (s *Store) Delete(ctx context.Context, ref object.Ref) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, refKey(ref))
	return nil
}

// Copy duplicates src into dst with the given storage class.
func (s *Store) Copy(ctx context.Context, src, dst object.Ref, class object.StorageClass) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.copyErr != nil {
		return fmt.Errorf("memory copy %s: %w", src, s.copyErr)
	}
	e, ok := s.objects[refKey(src)]
	if !ok {
		return fmt.Errorf("memory copy %s: %w", src, object.ErrNotFound)
	}
	if class == "" {
		class = e.storageClass
	}
	s.objects[refKey(dst)] = entry{
		data:         append([]byte(nil), e.data...),
		contentType:  e.contentType,
		storageClass: class,
		lastModified: time.Now().UTC(),
	}
	return nil
}

// Head returns metadata for ref.
func (s *Store) Head(ctx context.Context, ref object.Ref) (object.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return object.Metadata{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.objects[refKey(ref)]
	if !ok {
		return object.Metadata{}, fmt.Errorf("memory head %s: %w", ref, object.ErrNotFound)
	}
	return object.Metadata{
		SizeBytes:    int64(len(e.data)),
		ContentType:  e.contentType,
		LastModified: e.lastModified,
		Checksum:     fmt.Sprintf("%x", len(e.data)),
	}, nil
}

// PresignDownload returns a synthetic URL carrying the bounded TTL.
func (s *Store) PresignDownload(ctx context.Context, ref object.Ref, ttl time.Duration) (string, error) {
	_ = ctx
	bounded, err := object.BoundTTL(ttl, s.maxTTL)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("memory://%s/%s?expires=%d", ref.Bucket, ref.Key, int(bounded.Seconds())), nil
}

// PresignUpload returns a synthetic upload URL carrying the bounded TTL.
func (s *Store) PresignUpload(ctx context.Context, ref object.Ref, ttl time.Duration) (object.SignedUpload, error) {
	_ = ctx
	bounded, err := object.BoundTTL(ttl, s.maxTTL)
	if err != nil {
		return object.SignedUpload{}, err
	}
	return object.SignedUpload{
		URL:    fmt.Sprintf("memory://%s/%s?expires=%d&upload=1", ref.Bucket, ref.Key, int(bounded.Seconds())),
		Fields: map[string]string{"Content-Type": "application/octet-stream"},
	}, nil
}

// StorageClassOf reports the storage class recorded for ref, for tests.
func (s *Store) StorageClassOf(ref object.Ref) (object.StorageClass, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.objects[refKey(ref)]
	return e.storageClass, ok
}

// Len reports how many objects are stored.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

var _ object.Store = (*Store)(nil)
