package documents

import "time"

// StorageLocation points at the object-storage copy of a document. It is set
// once at upload and never mutated; archival creates a new location instead.
type StorageLocation struct {
	Bucket string
	Key    string
	Region string
}

// IsZero reports whether no location has been recorded.
func (l StorageLocation) IsZero() bool {
	return l.Bucket == "" && l.Key == "" && l.Region == ""
}

// Document is the status record for one immigration-case document.
type Document struct {
	ID           string
	CaseID       string
	DocumentType string
	Title        string

	OriginalFilename string
	ContentType      string
	SizeBytes        int64
	Storage          StorageLocation

	Status        Status
	ExtractedData map[string]any
	OCRText       string

	VerifiedBy        string
	VerifiedAt        *time.Time
	VerificationNotes string
	RejectionReason   string

	UploadedAt  time.Time
	ProcessedAt *time.Time
	UpdatedAt   time.Time
}
