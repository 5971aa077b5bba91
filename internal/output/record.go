package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pesio-ai/be-ap-reconciler/internal/errors"
	"github.com/pesio-ai/be-ap-reconciler/internal/reconcile"
)

// Record is the persisted result of reconciling one invoice
type Record struct {
	RunID                string                     `json:"run_id"`
	FileName             string                     `json:"file_name"`
	Decision             reconcile.Decision         `json:"decision"`
	Invoice              reconcile.Invoice          `json:"invoice"`
	MatchedPO            *reconcile.PurchaseOrder   `json:"matched_po"`
	MatchConfidence      float64                    `json:"match_confidence"`
	ExtractionConfidence float64                    `json:"extraction_confidence"`
	Issues               []reconcile.Issue          `json:"issues"`
	Reasoning            []reconcile.ReasoningEntry `json:"reasoning"`
	HumanFeedback        *reconcile.ReviewFeedback  `json:"human_feedback,omitempty"`
	HumanExplanation     *string                    `json:"human_explanation"`
	ProcessedAt          time.Time                  `json:"processed_at"`
}

// NewRecord captures a completed run
func NewRecord(runID, fileName string, state *reconcile.State, processedAt time.Time) *Record {
	return &Record{
		RunID:                runID,
		FileName:             fileName,
		Decision:             state.Decision,
		Invoice:              state.Invoice,
		MatchedPO:            state.MatchedPO,
		MatchConfidence:      state.MatchConfidence,
		ExtractionConfidence: state.ExtractionConfidence,
		Issues:               state.Issues,
		Reasoning:            state.Reasoning,
		HumanFeedback:        state.Feedback,
		ProcessedAt:          processedAt.UTC(),
	}
}

// NeedsHuman reports whether the record was not auto-approved
func (r *Record) NeedsHuman() bool {
	return r.Decision != reconcile.DecisionAutoApprove
}

// FileWriter persists records as indented JSON, one file per invoice
type FileWriter struct {
	dir string
}

// NewFileWriter creates a writer rooted at dir
func NewFileWriter(dir string) *FileWriter {
	return &FileWriter{dir: dir}
}

// PathFor returns where the record of runID for fileName is written, one file
// per run.
func (w *FileWriter) PathFor(fileName, runID string) string {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "invoice"
	}
	if runID != "" {
		base += "_" + runID
	}
	return filepath.Join(w.dir, base+".json")
}

// Write stores rec and returns the path written
func (w *FileWriter) Write(rec *Record) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "failed to create output directory")
	}

	path := w.PathFor(rec.FileName, rec.RunID)
	if err := WriteFile(path, rec); err != nil {
		return "", err
	}
	return path, nil
}

// WriteFile stores rec at path as indented JSON
func WriteFile(path string, rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal record")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, fmt.Sprintf("failed to write %s", path))
	}
	return nil
}

// ReadFile loads a previously written record
func ReadFile(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeNotFound, fmt.Sprintf("failed to read %s", path))
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, fmt.Sprintf("failed to decode %s", path))
	}
	return &rec, nil
}
