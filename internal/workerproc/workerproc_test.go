package workerproc

import (
	"context"
	"errors"
	"testing"
	"time"

	"casedocs-backend/internal/bootstrap"
	"casedocs-backend/internal/cases"
	"casedocs-backend/internal/documents"
	"casedocs-backend/internal/notify"
	"casedocs-backend/internal/pipeline"
	"casedocs-backend/internal/queue"
	"casedocs-backend/internal/shared/storage/object"
	"casedocs-backend/internal/shared/storage/object/memory"
)

func newTestApp(t *testing.T) (*bootstrap.App, *documents.MemoryRepo, *memory.Store) {
	t.Helper()
	repo := documents.NewMemoryRepo()
	store := memory.New(time.Hour)
	client := queue.NewMemoryClient()
	app := &bootstrap.App{
		DocsRepo:  repo,
		CasesRepo: cases.NewMemoryRepo(),
		Store:     store,
		Pipeline: &pipeline.Service{
			Docs:           repo,
			Store:          store,
			Producer:       &queue.Producer{Client: client},
			FetchRetries:   2,
			RetryBaseDelay: time.Millisecond,
			Timeout:        time.Minute,
		},
		Notifier: &notify.Notifier{
			Docs:   repo,
			Cases:  cases.NewMemoryRepo(),
			Sender: notify.LogSender{},
		},
	}
	return app, repo, store
}

func seedUploaded(t *testing.T, repo *documents.MemoryRepo, store *memory.Store, id string) {
	t.Helper()
	doc := documents.Document{
		ID:           id,
		CaseID:       "case-1",
		DocumentType: "passport",
		ContentType:  "text/plain",
		Storage: documents.StorageLocation{
			Bucket: "docs-au",
			Key:    "documents/au/cases/case-1/passport/x.txt",
			Region: "ap-southeast-2",
		},
		Status: documents.StatusUploaded,
	}
	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("seed document: %v", err)
	}
	ref := object.Ref{Bucket: doc.Storage.Bucket, Key: doc.Storage.Key, Region: doc.Storage.Region}
	if err := store.Put(context.Background(), ref, []byte("sample text"), "text/plain"); err != nil {
		t.Fatalf("seed object: %v", err)
	}
}

func encode(t *testing.T, msg queue.Message) string {
	t.Helper()
	raw, err := queue.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(raw)
}

func TestParseMessageRejectsEmptyBody(t *testing.T) {
	_, _, err := ParseMessage("   ")
	var emptyErr ErrEmptyBody
	if !errors.As(err, &emptyErr) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}
}

func TestParseMessageRejectsBadJSON(t *testing.T) {
	_, meta, err := ParseMessage("{bad-json")
	var decodeErr ErrDecode
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if meta.BodyLen == 0 || meta.BodySHA == "" {
		t.Fatalf("expected metadata for diagnostics, got %+v", meta)
	}
}

func TestParseMessageRejectsMissingDocumentID(t *testing.T) {
	body := encode(t, queue.Message{Type: queue.TypeProcess, RequestID: "req-1"})
	_, _, err := ParseMessage(body)
	var missingErr ErrMissingDocumentID
	if !errors.As(err, &missingErr) {
		t.Fatalf("expected ErrMissingDocumentID, got %v", err)
	}
	if missingErr.RequestID != "req-1" {
		t.Fatalf("request id not carried: %+v", missingErr)
	}
}

func TestHandleMessageProcessesDocument(t *testing.T) {
	app, repo, store := newTestApp(t)
	seedUploaded(t, repo, store, "doc-1")

	body := encode(t, queue.Message{Type: queue.TypeProcess, DocumentID: "doc-1", RequestID: "req-1"})
	outcome, err := HandleMessage(context.Background(), app, body)
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if outcome.Disposition != pipeline.DispositionSuccess {
		t.Fatalf("expected success, got %s", outcome.Disposition)
	}

	stored, _ := repo.GetByID(context.Background(), "doc-1")
	if stored.Status != documents.StatusProcessed {
		t.Fatalf("expected processed, got %s", stored.Status)
	}
}

func TestHandleMessageMissingDocumentReturnsFatalOutcome(t *testing.T) {
	app, _, _ := newTestApp(t)

	body := encode(t, queue.Message{Type: queue.TypeProcess, DocumentID: "no-such-doc"})
	outcome, err := HandleMessage(context.Background(), app, body)
	var procErr ErrProcess
	if !errors.As(err, &procErr) {
		t.Fatalf("expected ErrProcess, got %v", err)
	}
	if outcome.Disposition != pipeline.DispositionFatal {
		t.Fatalf("expected fatal, got %s", outcome.Disposition)
	}
	if procErr.DocumentID != "no-such-doc" {
		t.Fatalf("document id not carried: %+v", procErr)
	}
}

func TestHandleMessageEmptyTypeDefaultsToProcess(t *testing.T) {
	app, repo, store := newTestApp(t)
	seedUploaded(t, repo, store, "doc-1")

	body := encode(t, queue.Message{DocumentID: "doc-1"})
	outcome, err := HandleMessage(context.Background(), app, body)
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if outcome.Disposition != pipeline.DispositionSuccess {
		t.Fatalf("expected success, got %s", outcome.Disposition)
	}
}

func TestHandleMessageNotifyConsumesMessage(t *testing.T) {
	app, repo, store := newTestApp(t)
	seedUploaded(t, repo, store, "doc-1")

	body := encode(t, queue.Message{Type: queue.TypeNotify, DocumentID: "doc-1"})
	outcome, err := HandleMessage(context.Background(), app, body)
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if outcome.Disposition != pipeline.DispositionSuccess {
		t.Fatalf("expected success, got %s", outcome.Disposition)
	}
}

func TestHandleMessageUnknownTypeErrors(t *testing.T) {
	app, _, _ := newTestApp(t)

	body := encode(t, queue.Message{Type: "mystery", DocumentID: "doc-1"})
	_, err := HandleMessage(context.Background(), app, body)
	var unknownErr ErrUnknownType
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}
