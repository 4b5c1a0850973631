package documents

import (
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)

func TestLifecycleHappyPath(t *testing.T) {
	doc := Document{ID: "doc-1", Status: StatusPending}

	tr, err := doc.ConfirmUpload("application/pdf", 2048, testNow)
	if err != nil {
		t.Fatalf("confirm upload: %v", err)
	}
	if tr.From != StatusPending || tr.To != StatusUploaded {
		t.Fatalf("unexpected transition %s -> %s", tr.From, tr.To)
	}
	if doc.ContentType != "application/pdf" || doc.SizeBytes != 2048 {
		t.Fatalf("metadata not recorded: %q %d", doc.ContentType, doc.SizeBytes)
	}

	if _, err := doc.BeginProcessing(testNow.Add(time.Minute)); err != nil {
		t.Fatalf("begin processing: %v", err)
	}
	if doc.Status != StatusProcessing {
		t.Fatalf("expected processing, got %s", doc.Status)
	}

	extracted := map[string]any{"document_category": "identity"}
	tr, err = doc.CompleteProcessing(extracted, "sample text", testNow.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("complete processing: %v", err)
	}
	if doc.Status != StatusProcessed {
		t.Fatalf("expected processed, got %s", doc.Status)
	}
	if doc.ProcessedAt == nil || !doc.ProcessedAt.Equal(testNow.Add(2*time.Minute)) {
		t.Fatalf("processed_at not set: %v", doc.ProcessedAt)
	}
	if doc.OCRText != "sample text" {
		t.Fatalf("ocr text not recorded: %q", doc.OCRText)
	}
	want := []string{FieldStatus, FieldUpdatedAt, FieldExtractedData, FieldOCRText, FieldProcessedAt}
	if len(tr.Fields) != len(want) {
		t.Fatalf("unexpected fields: %v", tr.Fields)
	}

	tr, err = doc.Verify("officer-7", "checked against passport", testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if doc.Status != StatusVerified {
		t.Fatalf("expected verified, got %s", doc.Status)
	}
	if doc.VerifiedBy != "officer-7" || doc.VerifiedAt == nil {
		t.Fatalf("verifier fields not recorded: %q %v", doc.VerifiedBy, doc.VerifiedAt)
	}
	if tr.From != StatusProcessed || tr.To != StatusVerified {
		t.Fatalf("unexpected transition %s -> %s", tr.From, tr.To)
	}
}

func TestFailProcessingReturnsToUploaded(t *testing.T) {
	doc := Document{ID: "doc-1", Status: StatusProcessing}
	tr, err := doc.FailProcessing(testNow)
	if err != nil {
		t.Fatalf("fail processing: %v", err)
	}
	if doc.Status != StatusUploaded {
		t.Fatalf("expected uploaded, got %s", doc.Status)
	}
	if tr.From != StatusProcessing || tr.To != StatusUploaded {
		t.Fatalf("unexpected transition %s -> %s", tr.From, tr.To)
	}
	// Failure only touches status and timestamp.
	if len(tr.Fields) != 2 {
		t.Fatalf("unexpected fields: %v", tr.Fields)
	}
}

func TestTimeoutProcessingReturnsToUploaded(t *testing.T) {
	doc := Document{ID: "doc-1", Status: StatusProcessing}
	if _, err := doc.TimeoutProcessing(testNow); err != nil {
		t.Fatalf("timeout processing: %v", err)
	}
	if doc.Status != StatusUploaded {
		t.Fatalf("expected uploaded, got %s", doc.Status)
	}
}

func TestIllegalTransitionsLeaveDocumentUntouched(t *testing.T) {
	cases := []struct {
		name  string
		from  Status
		apply func(d *Document) error
	}{
		{"verify from uploaded", StatusUploaded, func(d *Document) error {
			_, err := d.Verify("officer-7", "", testNow)
			return err
		}},
		{"verify from processing", StatusProcessing, func(d *Document) error {
			_, err := d.Verify("officer-7", "", testNow)
			return err
		}},
		{"begin from pending", StatusPending, func(d *Document) error {
			_, err := d.BeginProcessing(testNow)
			return err
		}},
		{"begin from processed", StatusProcessed, func(d *Document) error {
			_, err := d.BeginProcessing(testNow)
			return err
		}},
		{"complete from uploaded", StatusUploaded, func(d *Document) error {
			_, err := d.CompleteProcessing(nil, "", testNow)
			return err
		}},
		{"confirm from uploaded", StatusUploaded, func(d *Document) error {
			_, err := d.ConfirmUpload("application/pdf", 1, testNow)
			return err
		}},
		{"fail from verified", StatusVerified, func(d *Document) error {
			_, err := d.FailProcessing(testNow)
			return err
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := Document{ID: "doc-1", Status: tc.from, UpdatedAt: testNow.Add(-time.Hour)}
			doc := before
			err := tc.apply(&doc)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition, got %v", err)
			}
			if doc.Status != before.Status {
				t.Fatalf("status mutated on illegal transition: %s", doc.Status)
			}
			if !doc.UpdatedAt.Equal(before.UpdatedAt) {
				t.Fatalf("updated_at mutated on illegal transition")
			}
			if doc.VerifiedBy != "" || doc.VerifiedAt != nil {
				t.Fatalf("verifier fields mutated on illegal transition")
			}
		})
	}
}

func TestRejectLegalFromEveryStateExceptRejected(t *testing.T) {
	for _, from := range []Status{StatusPending, StatusUploaded, StatusProcessing, StatusProcessed, StatusVerified} {
		doc := Document{ID: "doc-1", Status: from}
		tr, err := doc.Reject("illegible scan", testNow)
		if err != nil {
			t.Fatalf("reject from %s: %v", from, err)
		}
		if doc.Status != StatusRejected {
			t.Fatalf("expected rejected, got %s", doc.Status)
		}
		if doc.RejectionReason != "illegible scan" {
			t.Fatalf("reason not recorded: %q", doc.RejectionReason)
		}
		if tr.From != from {
			t.Fatalf("transition from %s recorded as %s", from, tr.From)
		}
	}

	doc := Document{ID: "doc-1", Status: StatusRejected}
	if _, err := doc.Reject("again", testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition from rejected, got %v", err)
	}
}

func TestRejectedIsTerminal(t *testing.T) {
	doc := Document{ID: "doc-1", Status: StatusRejected}
	if _, err := doc.BeginProcessing(testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := doc.Verify("officer-7", "", testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}
