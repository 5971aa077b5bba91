package reconcile

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Detector compares invoice lines against the matched PO
type Detector struct {
	opts Options
}

// NewDetector creates a discrepancy detector
func NewDetector(opts Options) *Detector {
	return &Detector{opts: opts}
}

// Detect returns the issues found for the invoice against po, plus the
// reasoning entries documenting every comparison made.
func (d *Detector) Detect(invoice *Invoice, po *PurchaseOrder) ([]Issue, []ReasoningEntry) {
	var reasoning []ReasoningEntry
	logf := func(format string, args ...any) {
		reasoning = append(reasoning, ReasoningEntry{Stage: StageDiscrepancy, Message: fmt.Sprintf(format, args...)})
	}

	if len(invoice.Items) == 0 || po == nil {
		logf("Missing invoice or PO data. Cannot perform comparison.")
		return []Issue{NewMissingData()}, reasoning
	}

	issues := []Issue{}
	for _, item := range invoice.Items {
		poItem, score := d.bestLine(item, po)

		if poItem == nil || score < d.opts.ItemMatchThreshold {
			issues = append(issues, NewItemNotInPO(item.Description))
			logf("No good PO match for invoice item '%s'. Best fuzzy score=%d.", item.Description, score)
			continue
		}

		logf("Comparing prices for '%s': invoice_price=%v, po_price=%v", item.Description, item.UnitPrice, poItem.UnitPrice)
		if differs(item.UnitPrice, poItem.UnitPrice, d.opts.PriceTolerance) {
			issues = append(issues, NewPriceMismatch(item.Description, item.UnitPrice, poItem.UnitPrice))
			logf("PRICE_MISMATCH detected for '%s'.", item.Description)
		}

		logf("Comparing quantities for '%s': invoice_qty=%v, po_qty=%v", item.Description, item.Quantity, poItem.Quantity)
		if differs(item.Quantity, poItem.Quantity, d.opts.QuantityTolerance) {
			issues = append(issues, NewQtyMismatch(item.Description, item.Quantity, poItem.Quantity))
			logf("QTY_MISMATCH detected for '%s'.", item.Description)
		}
	}

	if len(issues) > 0 {
		logf("Comparison complete. Detected %d issues: %v", len(issues), issueTypes(issues))
	} else {
		logf("Comparison complete. No discrepancies found.")
	}
	return issues, reasoning
}

// bestLine returns the PO line with the strictly greatest similarity to item.
// A line scoring zero is never selected.
func (d *Detector) bestLine(item LineItem, po *PurchaseOrder) (*LineItem, int) {
	similarity := d.opts.similarity()
	description := strings.ToLower(item.Description)

	var best *LineItem
	bestScore := 0
	for i := range po.LineItems {
		score := similarity(description, strings.ToLower(po.LineItems[i].Description))
		if score > bestScore {
			bestScore = score
			best = &po.LineItems[i]
		}
	}
	return best, bestScore
}

// Run applies Detect to a run state
func (d *Detector) Run(state *State) {
	issues, reasoning := d.Detect(&state.Invoice, state.MatchedPO)
	for _, issue := range issues {
		state.addIssue(issue)
	}
	state.Reasoning = append(state.Reasoning, reasoning...)
}

// differs compares two amounts. With a zero tolerance any difference counts.
func differs(a, b float64, tolerance decimal.Decimal) bool {
	if !tolerance.IsPositive() || !finite(a) || !finite(b) {
		return a != b
	}
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Abs().GreaterThan(tolerance)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
