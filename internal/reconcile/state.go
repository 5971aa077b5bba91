package reconcile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pesio-ai/be-ap-reconciler/internal/errors"
)

// Catalog is the read-only set of purchase orders shared by every run
type Catalog struct {
	PurchaseOrders []PurchaseOrder `json:"purchase_orders"`
}

// LoadCatalog decodes a {"purchase_orders": [...]} document
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var catalog Catalog
	if err := json.NewDecoder(r).Decode(&catalog); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to decode purchase order catalog")
	}
	if catalog.PurchaseOrders == nil {
		return nil, errors.InvalidInput("purchase_orders", "catalog has no purchase_orders key")
	}
	return &catalog, nil
}

// LoadCatalogFile reads a catalog from disk
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeNotFound, fmt.Sprintf("failed to open catalog %s", path))
	}
	defer f.Close()
	return LoadCatalog(f)
}

// State is the run-scoped context threaded through the stages. It is owned by
// exactly one run; issues and reasoning only ever grow.
type State struct {
	Invoice              Invoice          `json:"invoice"`
	ExtractionConfidence float64          `json:"extraction_confidence"`
	MatchedPO            *PurchaseOrder   `json:"matched_po"`
	MatchConfidence      float64          `json:"match_confidence"`
	Issues               []Issue          `json:"issues"`
	Decision             Decision         `json:"decision"`
	Reasoning            []ReasoningEntry `json:"reasoning"`
	Feedback             *ReviewFeedback  `json:"human_feedback,omitempty"`
}

// NewState starts a run for an invoice
func NewState(invoice Invoice) *State {
	return &State{
		Invoice:   invoice,
		Issues:    []Issue{},
		Reasoning: []ReasoningEntry{},
	}
}

// addIssue appends an issue
func (s *State) addIssue(issue Issue) {
	s.Issues = append(s.Issues, issue)
}

// logf appends a reasoning entry for stage
func (s *State) logf(stage Stage, format string, args ...any) {
	s.Reasoning = append(s.Reasoning, ReasoningEntry{Stage: stage, Message: fmt.Sprintf(format, args...)})
}

// ReasoningFor returns the entries produced by one stage, in order
func (s *State) ReasoningFor(stage Stage) []ReasoningEntry {
	var entries []ReasoningEntry
	for _, e := range s.Reasoning {
		if e.Stage == stage {
			entries = append(entries, e)
		}
	}
	return entries
}

// HasIssue reports whether an issue of type t has been raised
func (s *State) HasIssue(t IssueType) bool {
	return hasIssueType(s.Issues, t)
}
