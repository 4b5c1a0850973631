package documents

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"casedocs-backend/internal/shared/storage/object"
	"casedocs-backend/internal/shared/storage/object/memory"
	"casedocs-backend/internal/shared/storage/router"
)

func newTestRouter(t *testing.T) *router.Router {
	t.Helper()
	rt, err := router.New(router.Config{
		Routes: map[string]router.Route{
			"au": {Bucket: "docs-au", Region: "ap-southeast-2", Prefix: "documents/au"},
			"in": {Bucket: "docs-in", Region: "ap-south-1", Prefix: "documents/in"},
		},
		DefaultRegion: "au",
		ArchivePrefix: "archive",
	})
	if err != nil {
		t.Fatalf("router.New: %v", err)
	}
	return rt
}

func newTestService(t *testing.T) (*Service, *MemoryRepo, *memory.Store) {
	t.Helper()
	repo := NewMemoryRepo()
	store := memory.New(time.Hour)
	svc := &Service{Repo: repo, Store: store, Router: newTestRouter(t)}
	return svc, repo, store
}

func TestRegisterUploadRoutesToResidencyRegion(t *testing.T) {
	svc, repo, _ := newTestService(t)

	upload, err := svc.RegisterUpload(context.Background(), "case-1", "in", "passport", "My Passport.pdf", 15*time.Minute)
	if err != nil {
		t.Fatalf("RegisterUpload: %v", err)
	}
	doc := upload.Document
	if doc.Storage.Bucket != "docs-in" || doc.Storage.Region != "ap-south-1" {
		t.Fatalf("routed to wrong region: %+v", doc.Storage)
	}
	if !strings.HasPrefix(doc.Storage.Key, "documents/in/cases/case-1/passport/") {
		t.Fatalf("unexpected key: %s", doc.Storage.Key)
	}
	if strings.Contains(doc.Storage.Key, " ") {
		t.Fatalf("key not sanitized: %s", doc.Storage.Key)
	}
	if doc.Status != StatusPending {
		t.Fatalf("expected pending, got %s", doc.Status)
	}
	if upload.Signed.URL == "" {
		t.Fatalf("expected presigned upload url")
	}

	stored, err := repo.GetByID(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != StatusPending {
		t.Fatalf("record not persisted as pending: %s", stored.Status)
	}
}

func TestRegisterUploadUnknownRegionFallsBackToDefault(t *testing.T) {
	svc, _, _ := newTestService(t)

	upload, err := svc.RegisterUpload(context.Background(), "case-1", "nz", "photo", "photo.jpg", 15*time.Minute)
	if err != nil {
		t.Fatalf("RegisterUpload: %v", err)
	}
	if upload.Document.Storage.Bucket != "docs-au" {
		t.Fatalf("expected fallback to default route, got %+v", upload.Document.Storage)
	}
}

func TestConfirmUploadRecordsObjectMetadata(t *testing.T) {
	svc, repo, store := newTestService(t)

	upload, err := svc.RegisterUpload(context.Background(), "case-1", "au", "passport", "passport.pdf", 15*time.Minute)
	if err != nil {
		t.Fatalf("RegisterUpload: %v", err)
	}
	ref := object.Ref{
		Bucket: upload.Document.Storage.Bucket,
		Key:    upload.Document.Storage.Key,
		Region: upload.Document.Storage.Region,
	}
	if err := store.Put(context.Background(), ref, []byte("pdf bytes"), "application/pdf"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	doc, err := svc.ConfirmUpload(context.Background(), upload.Document.ID)
	if err != nil {
		t.Fatalf("ConfirmUpload: %v", err)
	}
	if doc.Status != StatusUploaded {
		t.Fatalf("expected uploaded, got %s", doc.Status)
	}
	if doc.ContentType != "application/pdf" || doc.SizeBytes != int64(len("pdf bytes")) {
		t.Fatalf("metadata not recorded: %q %d", doc.ContentType, doc.SizeBytes)
	}

	stored, _ := repo.GetByID(context.Background(), doc.ID)
	if stored.Status != StatusUploaded {
		t.Fatalf("record not persisted as uploaded: %s", stored.Status)
	}
}

func TestConfirmUploadFailsWhenObjectMissing(t *testing.T) {
	svc, _, _ := newTestService(t)

	upload, err := svc.RegisterUpload(context.Background(), "case-1", "au", "passport", "passport.pdf", 15*time.Minute)
	if err != nil {
		t.Fatalf("RegisterUpload: %v", err)
	}
	if _, err := svc.ConfirmUpload(context.Background(), upload.Document.ID); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDownloadURLClampsTTL(t *testing.T) {
	svc, repo, store := newTestService(t)

	doc := Document{
		ID:     "doc-1",
		CaseID: "case-1",
		Storage: StorageLocation{
			Bucket: "docs-au",
			Key:    "documents/au/cases/case-1/passport/x.pdf",
			Region: "ap-southeast-2",
		},
		Status: StatusProcessed,
	}
	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	ref := object.Ref{Bucket: doc.Storage.Bucket, Key: doc.Storage.Key, Region: doc.Storage.Region}
	if err := store.Put(context.Background(), ref, []byte("x"), "application/pdf"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	url, err := svc.DownloadURL(context.Background(), doc.ID, 48*time.Hour)
	if err != nil {
		t.Fatalf("DownloadURL: %v", err)
	}
	// The memory store encodes the bounded TTL in the URL; the configured
	// maximum is one hour.
	if !strings.Contains(url, "expires=3600") {
		t.Fatalf("ttl not clamped: %s", url)
	}

	if _, err := svc.DownloadURL(context.Background(), doc.ID, 0); !errors.Is(err, object.ErrInvalidTTL) {
		t.Fatalf("expected ErrInvalidTTL, got %v", err)
	}
}

func TestVerifyRequiresProcessedStatus(t *testing.T) {
	svc, repo, _ := newTestService(t)

	doc := Document{ID: "doc-1", CaseID: "case-1", Status: StatusUploaded}
	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Verify(context.Background(), "doc-1", "officer-7", "ok"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestMemoryRepoSaveDetectsConcurrentChange(t *testing.T) {
	repo := NewMemoryRepo()
	doc := Document{ID: "doc-1", Status: StatusUploaded}
	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first := doc
	tr1, err := first.BeginProcessing(time.Now().UTC())
	if err != nil {
		t.Fatalf("BeginProcessing: %v", err)
	}
	if err := repo.Save(context.Background(), first, tr1); err != nil {
		t.Fatalf("first Save: %v", err)
	}

	// A duplicate delivery working from the stale snapshot must lose.
	second := doc
	tr2, err := second.BeginProcessing(time.Now().UTC())
	if err != nil {
		t.Fatalf("BeginProcessing: %v", err)
	}
	if err := repo.Save(context.Background(), second, tr2); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}
}
