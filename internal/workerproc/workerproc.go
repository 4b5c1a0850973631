// Package workerproc parses queue payloads and routes them to the
// processing pipeline or the notifier.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"casedocs-backend/internal/bootstrap"
	"casedocs-backend/internal/pipeline"
	"casedocs-backend/internal/queue"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrMissingDocumentID indicates a message missing the document id.
type ErrMissingDocumentID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingDocumentID) Error() string { return "missing document id" }

// ErrUnknownType indicates a message type no handler is registered for.
type ErrUnknownType struct {
	Type      string
	RequestID string
}

func (e ErrUnknownType) Error() string { return "unknown message type: " + e.Type }

// ErrProcess indicates processing failed after successful parsing. Outcome
// carries the pipeline's verdict so the poll loop can pick delete vs
// redeliver.
type ErrProcess struct {
	DocumentID string
	RequestID  string
	Outcome    pipeline.Outcome
	Err        error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process document"
	}
	return "process document: " + e.Err.Error()
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.DocumentID) == "" {
		return msg, meta, ErrMissingDocumentID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

type parsedMessageKey struct{}

// WithParsedMessage stores a decoded message in the context for reuse.
func WithParsedMessage(ctx context.Context, msg queue.Message) context.Context {
	return context.WithValue(ctx, parsedMessageKey{}, msg)
}

func parsedMessageFromContext(ctx context.Context) (queue.Message, bool) {
	if ctx == nil {
		return queue.Message{}, false
	}
	msg, ok := ctx.Value(parsedMessageKey{}).(queue.Message)
	return msg, ok
}

// HandleMessage parses, validates, and dispatches a message payload. The
// returned Outcome is meaningful only when err is nil or an ErrProcess.
func HandleMessage(ctx context.Context, app *bootstrap.App, body string) (pipeline.Outcome, error) {
	if app == nil || app.Pipeline == nil {
		return pipeline.Outcome{}, errors.New("pipeline not configured")
	}

	msg, ok := parsedMessageFromContext(ctx)
	if !ok {
		var err error
		msg, _, err = ParseMessage(body)
		if err != nil {
			return pipeline.Outcome{}, err
		}
	}

	if strings.TrimSpace(msg.DocumentID) == "" {
		return pipeline.Outcome{}, ErrMissingDocumentID{Meta: ComputeMeta(body), RequestID: msg.RequestID}
	}

	ctxWithRequest := pipeline.WithRequestID(ctx, msg.RequestID)
	switch msg.Type {
	case queue.TypeProcess, "":
		outcome := app.Pipeline.Process(ctxWithRequest, msg.DocumentID)
		if outcome.Err != nil {
			return outcome, ErrProcess{DocumentID: msg.DocumentID, RequestID: msg.RequestID, Outcome: outcome, Err: outcome.Err}
		}
		return outcome, nil
	case queue.TypeNotify:
		if app.Notifier == nil {
			return pipeline.Outcome{}, errors.New("notifier not configured")
		}
		// Notifications are best effort; a failure is logged by the
		// notifier and the message is still consumed.
		app.Notifier.Notify(ctxWithRequest, msg.DocumentID)
		return pipeline.Outcome{Disposition: pipeline.DispositionSuccess}, nil
	default:
		return pipeline.Outcome{}, ErrUnknownType{Type: msg.Type, RequestID: msg.RequestID}
	}
}
