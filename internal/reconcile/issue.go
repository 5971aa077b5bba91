package reconcile

// IssueType tags the kind of an Issue
type IssueType string

const (
	IssueMissingData        IssueType = "MISSING_DATA"
	IssueItemNotInPO        IssueType = "ITEM_NOT_IN_PO"
	IssuePriceMismatch      IssueType = "PRICE_MISMATCH"
	IssueQtyMismatch        IssueType = "QTY_MISMATCH"
	IssueMissingPO          IssueType = "MISSING_PO"
	IssueLowMatchConfidence IssueType = "LOW_MATCH_CONFIDENCE"
)

// Severity grades issues raised by the resolution engine
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
)

// Fixed issue confidences.
const (
	missingDataConfidence   = 0.9
	itemNotInPOConfidence   = 0.85
	priceMismatchConfidence = 0.95
	qtyMismatchConfidence   = 0.9
	missingPOConfidence     = 0.95
)

// Issue is a typed discrepancy. Only the fields relevant to Type are set;
// use the New* constructors rather than building one by hand.
type Issue struct {
	Type       IssueType `json:"type"`
	Stage      Stage     `json:"stage"`
	Confidence float64   `json:"confidence"`
	Severity   Severity  `json:"severity,omitempty"`

	Item         string   `json:"item,omitempty"`
	InvoicePrice *float64 `json:"invoice_price,omitempty"`
	POPrice      *float64 `json:"po_price,omitempty"`
	InvoiceQty   *float64 `json:"invoice_qty,omitempty"`
	POQty        *float64 `json:"po_qty,omitempty"`
	POValue      *string  `json:"po_value,omitempty"`
}

// NewMissingData reports that the invoice or matched PO was unavailable.
func NewMissingData() Issue {
	return Issue{Type: IssueMissingData, Stage: StageDiscrepancy, Confidence: missingDataConfidence}
}

// NewItemNotInPO reports an invoice item with no sufficiently similar PO line.
func NewItemNotInPO(item string) Issue {
	return Issue{Type: IssueItemNotInPO, Stage: StageDiscrepancy, Confidence: itemNotInPOConfidence, Item: item}
}

// NewPriceMismatch reports differing unit prices for a matched item.
func NewPriceMismatch(item string, invoicePrice, poPrice float64) Issue {
	return Issue{
		Type:         IssuePriceMismatch,
		Stage:        StageDiscrepancy,
		Confidence:   priceMismatchConfidence,
		Item:         item,
		InvoicePrice: &invoicePrice,
		POPrice:      &poPrice,
	}
}

// NewQtyMismatch reports differing quantities for a matched item.
func NewQtyMismatch(item string, invoiceQty, poQty float64) Issue {
	return Issue{
		Type:       IssueQtyMismatch,
		Stage:      StageDiscrepancy,
		Confidence: qtyMismatchConfidence,
		Item:       item,
		InvoiceQty: &invoiceQty,
		POQty:      &poQty,
	}
}

// NewMissingPO reports an absent or placeholder PO number. poValue is the raw
// value found on the invoice, nil when absent.
func NewMissingPO(poValue *string) Issue {
	return Issue{
		Type:       IssueMissingPO,
		Stage:      StageResolution,
		Confidence: missingPOConfidence,
		Severity:   SeverityCritical,
		POValue:    poValue,
	}
}

// NewLowMatchConfidence reports a PO match too weak to trust.
func NewLowMatchConfidence(matchConfidence float64) Issue {
	return Issue{
		Type:       IssueLowMatchConfidence,
		Stage:      StageResolution,
		Confidence: matchConfidence,
		Severity:   SeverityHigh,
	}
}

// hasIssueType reports whether any issue in issues has type t
func hasIssueType(issues []Issue, t IssueType) bool {
	for _, issue := range issues {
		if issue.Type == t {
			return true
		}
	}
	return false
}

// issueTypes lists the types of issues in order
func issueTypes(issues []Issue) []IssueType {
	types := make([]IssueType, 0, len(issues))
	for _, issue := range issues {
		types = append(types, issue.Type)
	}
	return types
}
