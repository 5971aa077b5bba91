package reconcile

// LineItem represents one invoice or purchase order line
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

// Invoice represents a structured supplier invoice
type Invoice struct {
	InvoiceNo *string    `json:"invoice_no"`
	Supplier  *string    `json:"supplier"`
	PONumber  *string    `json:"po_number"`
	Items     []LineItem `json:"items"`
	Total     float64    `json:"total"`
}

// PurchaseOrder represents a purchase order in the catalog
type PurchaseOrder struct {
	PONumber  string     `json:"po_number"`
	LineItems []LineItem `json:"line_items"`
}

// MatchResult is the outcome of PO matching
type MatchResult struct {
	MatchedPO  *PurchaseOrder `json:"matched_po"`
	Confidence float64        `json:"confidence"`
}

// Decision is the reconciliation outcome for an invoice
type Decision string

const (
	DecisionAutoApprove          Decision = "AUTO_APPROVE"
	DecisionRequestClarification Decision = "REQUEST_CLARIFICATION"
	DecisionEscalateToHuman      Decision = "ESCALATE_TO_HUMAN"
)

// Valid reports whether d is one of the three decisions
func (d Decision) Valid() bool {
	switch d {
	case DecisionAutoApprove, DecisionRequestClarification, DecisionEscalateToHuman:
		return true
	}
	return false
}

// Stage identifies the pipeline stage that produced an issue or reasoning entry
type Stage string

const (
	StageDocument    Stage = "document"
	StageMatching    Stage = "matching"
	StageDiscrepancy Stage = "discrepancy"
	StageResolution  Stage = "resolution"
	StageReview      Stage = "review"
)

// ReasoningEntry is one line of the audit trail
type ReasoningEntry struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// ReviewFeedback is recorded by the secondary review stage
type ReviewFeedback struct {
	HumanReviewed bool     `json:"human_reviewed"`
	HumanDecision Decision `json:"human_decision"`
	Notes         string   `json:"notes"`
}

// Extraction is what the document understanding collaborator hands the pipeline
type Extraction struct {
	Invoice    Invoice
	Confidence float64
	// Note explains a degraded extraction; empty on success.
	Note string
}

// FallbackExtractionConfidence is reported when extraction output was unusable.
const FallbackExtractionConfidence = 0.1

// FallbackExtraction returns the empty invoice used when extraction fails.
func FallbackExtraction(note string) *Extraction {
	return &Extraction{
		Invoice:    Invoice{Items: []LineItem{}},
		Confidence: FallbackExtractionConfidence,
		Note:       note,
	}
}

// StringValue dereferences an optional invoice field.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
