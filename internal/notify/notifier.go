// Package notify delivers processing-complete notifications to case
// officers. Delivery is best effort and never blocks the pipeline.
package notify

import (
	"context"
	"errors"

	"casedocs-backend/internal/cases"
	"casedocs-backend/internal/documents"
	"casedocs-backend/internal/shared/metrics"
	"casedocs-backend/internal/shared/telemetry"
)

// Sender delivers a single notification. Implementations wrap whatever
// channel operations has configured (email, webhook, chat).
type Sender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// LogSender records notifications as telemetry events. It stands in until
// a real delivery channel is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, recipient, subject, body string) error {
	telemetry.Info("notify.delivered", map[string]any{
		"recipient": recipient,
		"subject":   subject,
	})
	return nil
}

// Notifier resolves the recipient for a processed document and sends the
// notification through the configured Sender.
type Notifier struct {
	Docs   documents.Repo
	Cases  cases.Repo
	Sender Sender
	// Fallback receives notifications for documents whose case has no
	// assigned officer.
	Fallback string
}

// Notify tells the responsible officer that a document finished
// processing. Failures are logged, never returned: notification loss is
// acceptable, blocking the queue is not.
func (n *Notifier) Notify(ctx context.Context, documentID string) {
	doc, err := n.Docs.GetByID(ctx, documentID)
	if err != nil {
		telemetry.Warn("notify.document.missing", map[string]any{
			"document_id": documentID,
			"error":       err.Error(),
		})
		return
	}

	recipient := n.Fallback
	c, err := n.Cases.GetByID(ctx, doc.CaseID)
	switch {
	case err == nil && c.AssignedOfficer != "":
		recipient = c.AssignedOfficer
	case err != nil && !errors.Is(err, cases.ErrNotFound):
		telemetry.Warn("notify.case.lookup_failed", map[string]any{
			"document_id": documentID,
			"case_id":     doc.CaseID,
			"error":       err.Error(),
		})
	}
	if recipient == "" {
		telemetry.Warn("notify.no_recipient", map[string]any{
			"document_id": documentID,
			"case_id":     doc.CaseID,
		})
		return
	}

	subject := "Document processed: " + doc.Title
	body := "Document " + doc.OriginalFilename + " for case " + doc.CaseID + " has been processed and is ready for review."

	sender := n.Sender
	if sender == nil {
		sender = LogSender{}
	}
	if err := sender.Send(ctx, recipient, subject, body); err != nil {
		telemetry.Warn("notify.send_failed", map[string]any{
			"document_id": documentID,
			"recipient":   recipient,
			"error":       err.Error(),
		})
		return
	}
	metrics.IncNotificationsSent()
	telemetry.Info("notify.sent", map[string]any{
		"document_id": documentID,
		"case_id":     doc.CaseID,
		"recipient":   recipient,
	})
}
