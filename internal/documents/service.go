package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"casedocs-backend/internal/shared/storage/object"
	"casedocs-backend/internal/shared/storage/router"
	"casedocs-backend/internal/shared/telemetry"
)

// Service contains document operations invoked by collaborators: presigned
// access URLs, upload registration, and the manual verify/reject overrides.
type Service struct {
	Repo   Repo
	Store  object.Store
	Router *router.Router
}

// storageRef converts a document's stored location into an object reference.
func storageRef(doc Document) object.Ref {
	return object.Ref{
		Bucket: doc.Storage.Bucket,
		Key:    doc.Storage.Key,
		Region: doc.Storage.Region,
	}
}

// DownloadURL issues a presigned download URL for a stored document.
func (s *Service) DownloadURL(ctx context.Context, id string, ttl time.Duration) (string, error) {
	doc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if doc.Storage.IsZero() {
		return "", fmt.Errorf("document %s has no storage location", id)
	}
	return s.Store.PresignDownload(ctx, storageRef(doc), ttl)
}

// Upload describes a registered pending upload: the record plus the
// presigned PUT the client uses to deliver the bytes.
type Upload struct {
	Document Document
	Signed   object.SignedUpload
}

// RegisterUpload creates a pending document record routed to the case's
// residency region and returns a presigned upload URL for it.
func (s *Service) RegisterUpload(ctx context.Context, caseID, residencyRegion, documentType, filename string, ttl time.Duration) (Upload, error) {
	if caseID == "" || documentType == "" || filename == "" {
		return Upload{}, errors.New("caseID, documentType, and filename are required")
	}
	now := time.Now().UTC()
	route := s.Router.Resolve(residencyRegion)
	key := route.Prefix + "/" + router.OrganizeKey(caseID, documentType, filename, now)

	doc := Document{
		ID:               uuid.NewString(),
		CaseID:           caseID,
		DocumentType:     documentType,
		OriginalFilename: filename,
		Storage: StorageLocation{
			Bucket: route.Bucket,
			Key:    key,
			Region: route.Region,
		},
		Status:     StatusPending,
		UploadedAt: now,
		UpdatedAt:  now,
	}

	signed, err := s.Store.PresignUpload(ctx, storageRef(doc), ttl)
	if err != nil {
		return Upload{}, err
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return Upload{}, err
	}
	return Upload{Document: doc, Signed: signed}, nil
}

// ConfirmUpload checks the object arrived behind the presigned URL and
// moves the record from pending to uploaded with the stored object's
// metadata. Processing is enqueued by the caller once this returns.
func (s *Service) ConfirmUpload(ctx context.Context, id string) (Document, error) {
	doc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Document{}, err
	}
	meta, err := s.Store.Head(ctx, storageRef(doc))
	if err != nil {
		return Document{}, fmt.Errorf("confirm upload %s: %w", id, err)
	}
	tr, err := doc.ConfirmUpload(meta.ContentType, meta.SizeBytes, time.Now().UTC())
	if err != nil {
		return Document{}, err
	}
	if err := s.Repo.Save(ctx, doc, tr); err != nil {
		return Document{}, err
	}
	telemetry.Info("document.status", map[string]any{
		"document_id":       doc.ID,
		"case_id":           doc.CaseID,
		"status":            string(tr.To),
		"status_transition": string(tr.From) + "->" + string(tr.To),
		"size_bytes":        meta.SizeBytes,
	})
	return doc, nil
}

// Verify applies the verify transition on behalf of a case officer.
func (s *Service) Verify(ctx context.Context, id, officer, notes string) (Document, error) {
	if officer == "" {
		return Document{}, errors.New("officer identity is required")
	}
	doc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Document{}, err
	}
	tr, err := doc.Verify(officer, notes, time.Now().UTC())
	if err != nil {
		return Document{}, err
	}
	if err := s.Repo.Save(ctx, doc, tr); err != nil {
		return Document{}, err
	}
	telemetry.Info("document.status", map[string]any{
		"document_id":       doc.ID,
		"case_id":           doc.CaseID,
		"status":            string(tr.To),
		"status_transition": string(tr.From) + "->" + string(tr.To),
		"verified_by":       officer,
	})
	return doc, nil
}

// Reject applies the terminal manual-override transition.
func (s *Service) Reject(ctx context.Context, id, reason string) (Document, error) {
	doc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Document{}, err
	}
	tr, err := doc.Reject(reason, time.Now().UTC())
	if err != nil {
		return Document{}, err
	}
	if err := s.Repo.Save(ctx, doc, tr); err != nil {
		return Document{}, err
	}
	telemetry.Info("document.status", map[string]any{
		"document_id":       doc.ID,
		"case_id":           doc.CaseID,
		"status":            string(tr.To),
		"status_transition": string(tr.From) + "->" + string(tr.To),
		"reason":            reason,
	})
	return doc, nil
}

// Delete removes the stored object for a document. The record itself is
// owned by the surrounding CRUD layer; this only clears object storage.
func (s *Service) Delete(ctx context.Context, id string) error {
	doc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if doc.Storage.IsZero() {
		return nil
	}
	return s.Store.Delete(ctx, storageRef(doc))
}
