package documents

import (
	"fmt"
	"time"
)

// Status is a document's position in the processing lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusVerified   Status = "verified"
	StatusRejected   Status = "rejected"
)

// Field names touched by transitions; they match the documents table columns.
const (
	FieldStatus            = "status"
	FieldUpdatedAt         = "updated_at"
	FieldContentType       = "content_type"
	FieldSizeBytes         = "size_bytes"
	FieldExtractedData     = "extracted_data"
	FieldOCRText           = "ocr_text"
	FieldProcessedAt       = "processed_at"
	FieldVerifiedBy        = "verified_by"
	FieldVerifiedAt        = "verified_at"
	FieldVerificationNotes = "verification_notes"
	FieldRejectionReason   = "rejection_reason"
)

// Transition records an applied state change: the prior status guards the
// save against concurrent duplicate deliveries, and Fields limits the write
// to what the transition touched.
type Transition struct {
	From   Status
	To     Status
	Fields []string
}

type event string

const (
	eventConfirm event = "confirm_upload"
	eventBegin   event = "begin_processing"
	eventSuccess event = "success"
	eventFailure event = "failure"
	eventTimeout event = "timeout"
	eventVerify  event = "verify"
	eventReject  event = "reject"
)

// transitions is the closed edge table. Reject is handled separately since
// it is legal from every state except the rejected terminal itself.
var transitions = map[Status]map[event]Status{
	StatusPending:    {eventConfirm: StatusUploaded},
	StatusUploaded:   {eventBegin: StatusProcessing},
	StatusProcessing: {eventSuccess: StatusProcessed, eventFailure: StatusUploaded, eventTimeout: StatusUploaded},
	StatusProcessed:  {eventVerify: StatusVerified},
	StatusVerified:   {},
	StatusRejected:   {},
}

func next(from Status, ev event) (Status, error) {
	if ev == eventReject {
		if from == StatusRejected {
			return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, ev)
		}
		return StatusRejected, nil
	}
	edges, ok := transitions[from]
	if !ok {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, from)
	}
	to, ok := edges[ev]
	if !ok {
		return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, ev)
	}
	return to, nil
}

// ConfirmUpload records that the client delivered the bytes behind the
// presigned URL. Size and content type come from the stored object.
func (d *Document) ConfirmUpload(contentType string, sizeBytes int64, now time.Time) (Transition, error) {
	return d.apply(eventConfirm, now, func(d *Document, tr *Transition) {
		d.ContentType = contentType
		d.SizeBytes = sizeBytes
		tr.Fields = append(tr.Fields, FieldContentType, FieldSizeBytes)
	})
}

// BeginProcessing moves an uploaded document into processing.
func (d *Document) BeginProcessing(now time.Time) (Transition, error) {
	return d.apply(eventBegin, now, nil)
}

// CompleteProcessing records a successful extraction.
func (d *Document) CompleteProcessing(extracted map[string]any, ocrText string, now time.Time) (Transition, error) {
	return d.apply(eventSuccess, now, func(d *Document, tr *Transition) {
		d.ExtractedData = extracted
		d.OCRText = ocrText
		processedAt := now
		d.ProcessedAt = &processedAt
		tr.Fields = append(tr.Fields, FieldExtractedData, FieldOCRText, FieldProcessedAt)
	})
}

// FailProcessing resets a document to uploaded after a fatal extraction
// failure. Extracted data is left untouched (still nil from upload).
func (d *Document) FailProcessing(now time.Time) (Transition, error) {
	return d.apply(eventFailure, now, nil)
}

// TimeoutProcessing is the reconciler-driven reset for stuck documents.
func (d *Document) TimeoutProcessing(now time.Time) (Transition, error) {
	return d.apply(eventTimeout, now, nil)
}

// Verify marks a processed document as verified by a case officer. After
// this transition the extraction result is locked for audit integrity.
func (d *Document) Verify(by, notes string, now time.Time) (Transition, error) {
	return d.apply(eventVerify, now, func(d *Document, tr *Transition) {
		d.VerifiedBy = by
		verifiedAt := now
		d.VerifiedAt = &verifiedAt
		d.VerificationNotes = notes
		tr.Fields = append(tr.Fields, FieldVerifiedBy, FieldVerifiedAt, FieldVerificationNotes)
	})
}

// Reject is the terminal manual override.
func (d *Document) Reject(reason string, now time.Time) (Transition, error) {
	return d.apply(eventReject, now, func(d *Document, tr *Transition) {
		d.RejectionReason = reason
		tr.Fields = append(tr.Fields, FieldRejectionReason)
	})
}

// apply validates the edge before any mutation so illegal transitions are
// all-or-nothing.
func (d *Document) apply(ev event, now time.Time, sideEffects func(*Document, *Transition)) (Transition, error) {
	to, err := next(d.Status, ev)
	if err != nil {
		return Transition{}, err
	}
	tr := Transition{
		From:   d.Status,
		To:     to,
		Fields: []string{FieldStatus, FieldUpdatedAt},
	}
	d.Status = to
	d.UpdatedAt = now
	if sideEffects != nil {
		sideEffects(d, &tr)
	}
	return tr, nil
}
