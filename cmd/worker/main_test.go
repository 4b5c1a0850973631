package main

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"casedocs-backend/internal/bootstrap"
	"casedocs-backend/internal/documents"
	"casedocs-backend/internal/pipeline"
	"casedocs-backend/internal/queue"
	"casedocs-backend/internal/shared/config"
	"casedocs-backend/internal/shared/storage/object"
	"casedocs-backend/internal/shared/storage/object/memory"
)

type fakeSQS struct {
	deleted    []string
	visibility []int32
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	_ = ctx
	_ = params
	_ = optFns
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	_ = ctx
	_ = optFns
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	_ = ctx
	_ = optFns
	f.visibility = append(f.visibility, params.VisibilityTimeout)
	return &sqs.ChangeMessageVisibilityOutput{}, nil
}

func newTestApp(t *testing.T) (*bootstrap.App, *documents.MemoryRepo, *memory.Store) {
	t.Helper()
	repo := documents.NewMemoryRepo()
	store := memory.New(time.Hour)
	app := &bootstrap.App{
		Config: config.Config{MaxAttempts: 3, RetryBaseDelay: 60 * time.Second},
		Pipeline: &pipeline.Service{
			Docs:           repo,
			Store:          store,
			Producer:       &queue.Producer{Client: queue.NewMemoryClient()},
			FetchRetries:   1,
			RetryBaseDelay: time.Millisecond,
			Timeout:        time.Minute,
		},
	}
	return app, repo, store
}

func seedUploaded(t *testing.T, repo *documents.MemoryRepo, store *memory.Store, withObject bool) {
	t.Helper()
	doc := documents.Document{
		ID:           "doc-1",
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
	if withObject {
		ref := object.Ref{Bucket: doc.Storage.Bucket, Key: doc.Storage.Key, Region: doc.Storage.Region}
		if err := store.Put(context.Background(), ref, []byte("sample text"), "text/plain"); err != nil {
			t.Fatalf("seed object: %v", err)
		}
	}
}

func sqsMessage(t *testing.T, documentID, receipt string, receiveCount string) sqstypes.Message {
	t.Helper()
	body, err := queue.EncodeMessage(queue.Message{Type: queue.TypeProcess, DocumentID: documentID, RequestID: "req-1"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	msg := sqstypes.Message{
		MessageId:     aws.String("m1"),
		ReceiptHandle: aws.String(receipt),
		Body:          aws.String(string(body)),
	}
	if receiveCount != "" {
		msg.Attributes = map[string]string{"ApproximateReceiveCount": receiveCount}
	}
	return msg
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	client := &fakeSQS{}
	app, repo, store := newTestApp(t)
	seedUploaded(t, repo, store, true)

	handleMessage(context.Background(), app, client, "queue", sqsMessage(t, "doc-1", "r1", "1"))

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
	if len(client.visibility) != 0 {
		t.Fatalf("no visibility change expected, got %v", client.visibility)
	}
}

func TestWorkerBacksOffOnTransientFailure(t *testing.T) {
	client := &fakeSQS{}
	app, repo, store := newTestApp(t)
	seedUploaded(t, repo, store, true)
	store.FailGets(5, object.ErrTransient)

	handleMessage(context.Background(), app, client, "queue", sqsMessage(t, "doc-1", "r1", "1"))

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %v", client.deleted)
	}
	if len(client.visibility) != 1 || client.visibility[0] != 60 {
		t.Fatalf("expected 60s visibility, got %v", client.visibility)
	}
}

func TestWorkerDeletesAfterRetriesExhausted(t *testing.T) {
	client := &fakeSQS{}
	app, repo, store := newTestApp(t)
	seedUploaded(t, repo, store, true)
	store.FailGets(5, object.ErrTransient)

	handleMessage(context.Background(), app, client, "queue", sqsMessage(t, "doc-1", "r1", "3"))

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete after exhaustion, got %v", client.deleted)
	}
	if len(client.visibility) != 0 {
		t.Fatalf("no visibility change expected, got %v", client.visibility)
	}
}

func TestWorkerDeletesOnFatalOutcome(t *testing.T) {
	client := &fakeSQS{}
	app, _, _ := newTestApp(t)

	handleMessage(context.Background(), app, client, "queue", sqsMessage(t, "no-such-doc", "r1", "1"))

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete on fatal outcome, got %v", client.deleted)
	}
}

func TestWorkerDeletesOnInvalidJSON(t *testing.T) {
	client := &fakeSQS{}
	app, _, _ := newTestApp(t)

	msg := sqstypes.Message{
		MessageId:     aws.String("m3"),
		ReceiptHandle: aws.String("r3"),
		Body:          aws.String("{bad-json"),
	}
	handleMessage(context.Background(), app, client, "queue", msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestBackoffDelayDoublesPerAttempt(t *testing.T) {
	base := 60 * time.Second
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 60 * time.Second},
		{2, 120 * time.Second},
		{3, 240 * time.Second},
	}
	for _, tc := range cases {
		if got := backoffDelay(base, tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: got %s, want %s", tc.attempt, got, tc.want)
		}
	}
	if got := backoffDelay(base, 20); got != maxBackoff {
		t.Fatalf("expected cap at %s, got %s", maxBackoff, got)
	}
}
