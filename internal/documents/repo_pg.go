package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, case_id, document_type, title, original_filename, content_type, size_bytes, storage_bucket, storage_key, storage_region, status, extracted_data, ocr_text, verified_by, verified_at, verification_notes, rejection_reason, uploaded_at, processed_at, updated_at`

// Create inserts a new document record.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id, case_id, document_type, title, original_filename, content_type, size_bytes,
    storage_bucket, storage_key, storage_region, status, uploaded_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	status := doc.Status
	if status == "" {
		status = StatusUploaded
	}
	uploadedAt := doc.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now().UTC()
	}
	updatedAt := doc.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = uploadedAt
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.CaseID,
		doc.DocumentType,
		doc.Title,
		doc.OriginalFilename,
		doc.ContentType,
		doc.SizeBytes,
		doc.Storage.Bucket,
		doc.Storage.Key,
		doc.Storage.Region,
		string(status),
		uploadedAt,
		updatedAt,
	)
	return err
}

// GetByID fetches a document by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 LIMIT 1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// Save writes only the transition's touched fields, guarded by the
// transition's starting status so concurrent duplicate deliveries cannot
// clobber each other.
func (r *PGRepo) Save(ctx context.Context, doc Document, tr Transition) error {
	if len(tr.Fields) == 0 {
		return fmt.Errorf("save document %s: no fields to write", doc.ID)
	}

	setClauses := make([]string, 0, len(tr.Fields))
	args := make([]any, 0, len(tr.Fields)+2)
	for _, field := range tr.Fields {
		value, err := fieldValue(doc, field)
		if err != nil {
			return fmt.Errorf("save document %s: %w", doc.ID, err)
		}
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field, len(args)))
	}
	args = append(args, doc.ID, string(tr.From))
	query := fmt.Sprintf(
		"UPDATE documents SET %s WHERE id = $%d AND status = $%d",
		strings.Join(setClauses, ", "), len(args)-1, len(args),
	)

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// ListStuckProcessing returns processing documents untouched since olderThan.
func (r *PGRepo) ListStuckProcessing(ctx context.Context, olderThan time.Time, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `SELECT ` + documentColumns + `
FROM documents
WHERE status = $1 AND updated_at < $2
ORDER BY updated_at ASC
LIMIT $3`
	rows, err := r.DB.QueryContext(ctx, query, string(StatusProcessing), olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// ListByCase lists a case's documents ordered newest-first.
func (r *PGRepo) ListByCase(ctx context.Context, caseID string) ([]Document, error) {
	query := `SELECT ` + documentColumns + `
FROM documents
WHERE case_id = $1
ORDER BY uploaded_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func fieldValue(doc Document, field string) (any, error) {
	switch field {
	case FieldStatus:
		return string(doc.Status), nil
	case FieldUpdatedAt:
		return doc.UpdatedAt, nil
	case FieldContentType:
		return doc.ContentType, nil
	case FieldSizeBytes:
		return doc.SizeBytes, nil
	case FieldExtractedData:
		if doc.ExtractedData == nil {
			return nil, nil
		}
		raw, err := json.Marshal(doc.ExtractedData)
		if err != nil {
			return nil, fmt.Errorf("marshal extracted data: %w", err)
		}
		return raw, nil
	case FieldOCRText:
		return nullString(doc.OCRText), nil
	case FieldProcessedAt:
		return nullTime(doc.ProcessedAt), nil
	case FieldVerifiedBy:
		return nullString(doc.VerifiedBy), nil
	case FieldVerifiedAt:
		return nullTime(doc.VerifiedAt), nil
	case FieldVerificationNotes:
		return nullString(doc.VerificationNotes), nil
	case FieldRejectionReason:
		return nullString(doc.RejectionReason), nil
	default:
		return nil, fmt.Errorf("field %q is not writable", field)
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var status string
	var extractedData []byte
	var ocrText sql.NullString
	var verifiedBy sql.NullString
	var verifiedAt sql.NullTime
	var verificationNotes sql.NullString
	var rejectionReason sql.NullString
	var processedAt sql.NullTime

	err := row.Scan(
		&doc.ID,
		&doc.CaseID,
		&doc.DocumentType,
		&doc.Title,
		&doc.OriginalFilename,
		&doc.ContentType,
		&doc.SizeBytes,
		&doc.Storage.Bucket,
		&doc.Storage.Key,
		&doc.Storage.Region,
		&status,
		&extractedData,
		&ocrText,
		&verifiedBy,
		&verifiedAt,
		&verificationNotes,
		&rejectionReason,
		&doc.UploadedAt,
		&processedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return Document{}, err
	}

	doc.Status = Status(status)
	if len(extractedData) > 0 {
		if err := json.Unmarshal(extractedData, &doc.ExtractedData); err != nil {
			return Document{}, fmt.Errorf("unmarshal extracted data: %w", err)
		}
	}
	if ocrText.Valid {
		doc.OCRText = ocrText.String
	}
	if verifiedBy.Valid {
		doc.VerifiedBy = verifiedBy.String
	}
	if verifiedAt.Valid {
		doc.VerifiedAt = &verifiedAt.Time
	}
	if verificationNotes.Valid {
		doc.VerificationNotes = verificationNotes.String
	}
	if rejectionReason.Valid {
		doc.RejectionReason = rejectionReason.String
	}
	if processedAt.Valid {
		doc.ProcessedAt = &processedAt.Time
	}
	return doc, nil
}

func scanDocuments(rows *sql.Rows) ([]Document, error) {
	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
