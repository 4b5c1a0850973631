package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Producer is the inbound enqueue surface offered to collaborators.
type Producer struct {
	Client Client
}

func newMessage(jobType, documentID string) Message {
	return Message{
		Type:       jobType,
		DocumentID: documentID,
		RequestID:  uuid.NewString(),
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
		Version:    1,
	}
}

// EnqueueProcessing schedules asynchronous processing for one document.
func (p *Producer) EnqueueProcessing(ctx context.Context, documentID string) error {
	return p.Client.Send(ctx, newMessage(TypeProcess, documentID))
}

// EnqueueBulkProcessing schedules processing for many documents. The first
// send failure aborts the loop and reports how many were enqueued.
func (p *Producer) EnqueueBulkProcessing(ctx context.Context, documentIDs []string) (int, error) {
	for i, id := range documentIDs {
		if err := p.Client.Send(ctx, newMessage(TypeProcess, id)); err != nil {
			return i, err
		}
	}
	return len(documentIDs), nil
}

// EnqueueNotification schedules a best-effort notification job.
func (p *Producer) EnqueueNotification(ctx context.Context, documentID string) error {
	return p.Client.Send(ctx, newMessage(TypeNotify, documentID))
}
