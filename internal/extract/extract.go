// Package extract turns raw document bytes into structured data plus OCR
// text. Dispatch is a closed mapping from document category to extractor;
// unrecognized document types always fall back to the generic extractor.
package extract

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Category selects an extraction strategy.
type Category string

const (
	CategoryIdentity    Category = "identity"
	CategoryFinancial   Category = "financial"
	CategoryEducational Category = "educational"
	CategoryEmployment  Category = "employment"
	CategoryGeneric     Category = "generic"
)

// categoryByType maps concrete document types to their category.
var categoryByType = map[string]Category{
	"passport":          CategoryIdentity,
	"photo":             CategoryIdentity,
	"birth_certificate": CategoryIdentity,

	"bank_statement":  CategoryFinancial,
	"tax_return":      CategoryFinancial,
	"financial_proof": CategoryFinancial,

	"degree":       CategoryEducational,
	"transcript":   CategoryEducational,
	"english_test": CategoryEducational,

	"employment_letter": CategoryEmployment,
	"payslip":           CategoryEmployment,
	"resume":            CategoryEmployment,
}

// CategoryOf returns the extraction category for a document type. Unknown
// types route to the generic category, never an error.
func CategoryOf(documentType string) Category {
	if cat, ok := categoryByType[documentType]; ok {
		return cat
	}
	return CategoryGeneric
}

// Result is an extractor's output. Either part may be empty.
type Result struct {
	Data    map[string]any
	OCRText string
}

// Extractor produces structured data and OCR text from raw bytes.
type Extractor func(ctx context.Context, data []byte, contentType string) (Result, error)

// extractors is the closed dispatch table.
var extractors = map[Category]Extractor{
	CategoryIdentity:    identityExtractor,
	CategoryFinancial:   financialExtractor,
	CategoryEducational: educationalExtractor,
	CategoryEmployment:  employmentExtractor,
	CategoryGeneric:     genericExtractor,
}

// Process runs the extractor selected by documentType.
func Process(ctx context.Context, documentType string, data []byte, contentType string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	cat := CategoryOf(documentType)
	res, err := extractors[cat](ctx, data, contentType)
	if err != nil {
		return Result{}, fmt.Errorf("extract %s (%s): %w", documentType, cat, err)
	}
	return res, nil
}

func envelope(cat Category, text string) map[string]any {
	data := map[string]any{
		"document_category": string(cat),
		"processed_at":      time.Now().UTC().Format(time.RFC3339),
	}
	if text != "" {
		data["has_text"] = true
		data["text_length"] = len(text)
	}
	return data
}

// identityExtractor handles passports, photos, and birth certificates.
// It accepts both PDFs and image scans.
func identityExtractor(ctx context.Context, data []byte, contentType string) (Result, error) {
	text, err := textFromDocument(ctx, data, contentType)
	if err != nil {
		return Result{}, err
	}
	return Result{Data: envelope(CategoryIdentity, text), OCRText: text}, nil
}

func financialExtractor(ctx context.Context, data []byte, contentType string) (Result, error) {
	text, err := textFromDocument(ctx, data, contentType)
	if err != nil {
		return Result{}, err
	}
	return Result{Data: envelope(CategoryFinancial, text), OCRText: text}, nil
}

func educationalExtractor(ctx context.Context, data []byte, contentType string) (Result, error) {
	text, err := textFromDocument(ctx, data, contentType)
	if err != nil {
		return Result{}, err
	}
	return Result{Data: envelope(CategoryEducational, text), OCRText: text}, nil
}

func employmentExtractor(ctx context.Context, data []byte, contentType string) (Result, error) {
	text, err := textFromDocument(ctx, data, contentType)
	if err != nil {
		return Result{}, err
	}
	return Result{Data: envelope(CategoryEmployment, text), OCRText: text}, nil
}

func genericExtractor(ctx context.Context, data []byte, contentType string) (Result, error) {
	text, err := textFromDocument(ctx, data, contentType)
	if err != nil {
		// Generic documents may be any format; a payload we cannot read
		// still yields an envelope so the record is not blocked on it.
		if errors.Is(err, errUnsupportedFormat) {
			return Result{Data: envelope(CategoryGeneric, "")}, nil
		}
		return Result{}, err
	}
	return Result{Data: envelope(CategoryGeneric, text), OCRText: text}, nil
}
