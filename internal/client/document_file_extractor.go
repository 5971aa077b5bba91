package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pesio-ai/be-ap-reconciler/internal/reconcile"
)

// FileExtractor reads pre-structured .json invoices straight from disk and
// hands every other document to the next extractor.
type FileExtractor struct {
	next DocumentExtractor
}

// NewFileExtractor creates a file extractor. next may be nil, in which case
// non-JSON documents get the fallback extraction.
func NewFileExtractor(next DocumentExtractor) *FileExtractor {
	return &FileExtractor{next: next}
}

// Extract implements DocumentExtractor
func (e *FileExtractor) Extract(ctx context.Context, documentPath string) (*reconcile.Extraction, error) {
	if strings.EqualFold(filepath.Ext(documentPath), ".json") {
		data, err := os.ReadFile(documentPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read invoice %s: %w", documentPath, err)
		}
		invoice, ok := ParseInvoiceJSON(string(data))
		if !ok {
			return reconcile.FallbackExtraction(unparseableNote), nil
		}
		return &reconcile.Extraction{Invoice: invoice, Confidence: successExtractionConfidence}, nil
	}

	if e.next == nil {
		return reconcile.FallbackExtraction(
			fmt.Sprintf("No document extraction service configured for '%s'. Using empty fallback invoice.", filepath.Base(documentPath)),
		), nil
	}
	return e.next.Extract(ctx, documentPath)
}
