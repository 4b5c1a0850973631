package documents

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo used by tests.
type MemoryRepo struct {
	mu   sync.Mutex
	docs map[string]Document
}

// NewMemoryRepo creates an empty memory repo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{docs: map[string]Document{}}
}

// Create inserts a document.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc.Status == "" {
		doc.Status = StatusUploaded
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.UploadedAt
	}
	r.docs[doc.ID] = doc
	return nil
}

// GetByID fetches a document by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Document, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// Save applies the transition's touched fields under the same status guard
// as the Postgres repo.
func (r *MemoryRepo) Save(ctx context.Context, doc Document, tr Transition) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.docs[doc.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Status != tr.From {
		return ErrStatusConflict
	}
	for _, field := range tr.Fields {
		switch field {
		case FieldStatus:
			stored.Status = doc.Status
		case FieldUpdatedAt:
			stored.UpdatedAt = doc.UpdatedAt
		case FieldContentType:
			stored.ContentType = doc.ContentType
		case FieldSizeBytes:
			stored.SizeBytes = doc.SizeBytes
		case FieldExtractedData:
			stored.ExtractedData = doc.ExtractedData
		case FieldOCRText:
			stored.OCRText = doc.OCRText
		case FieldProcessedAt:
			stored.ProcessedAt = doc.ProcessedAt
		case FieldVerifiedBy:
			stored.VerifiedBy = doc.VerifiedBy
		case FieldVerifiedAt:
			stored.VerifiedAt = doc.VerifiedAt
		case FieldVerificationNotes:
			stored.VerificationNotes = doc.VerificationNotes
		case FieldRejectionReason:
			stored.RejectionReason = doc.RejectionReason
		}
	}
	r.docs[doc.ID] = stored
	return nil
}

// ListStuckProcessing returns processing documents untouched since olderThan.
func (r *MemoryRepo) ListStuckProcessing(ctx context.Context, olderThan time.Time, limit int) ([]Document, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Document
	for _, doc := range r.docs {
		if doc.Status == StatusProcessing && doc.UpdatedAt.Before(olderThan) {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListByCase lists a case's documents newest-first.
func (r *MemoryRepo) ListByCase(ctx context.Context, caseID string) ([]Document, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Document
	for _, doc := range r.docs {
		if doc.CaseID == caseID {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
