package reconcile

import (
	"fmt"
	"math"
)

// Matcher selects the purchase order an invoice corresponds to
type Matcher struct {
	opts Options
}

// NewMatcher creates a matcher
func NewMatcher(opts Options) *Matcher {
	return &Matcher{opts: opts}
}

// Match finds the best purchase order for the invoice. An exact PO number hit
// short-circuits fuzzy scoring; otherwise every PO is scored by the sum of
// similarities over all (invoice item, PO item) pairs.
func (m *Matcher) Match(invoice *Invoice, catalog *Catalog) (MatchResult, ReasoningEntry) {
	// Nothing to match on
	if len(invoice.Items) == 0 {
		return MatchResult{}, ReasoningEntry{
			Stage:   StageMatching,
			Message: "Invoice has no line items. Cannot perform PO matching.",
		}
	}

	// Direct PO number match
	if poNumber := StringValue(invoice.PONumber); poNumber != "" {
		for i := range catalog.PurchaseOrders {
			po := &catalog.PurchaseOrders[i]
			if po.PONumber == poNumber {
				return MatchResult{MatchedPO: po, Confidence: m.opts.ExactMatchConfidence}, ReasoningEntry{
					Stage:   StageMatching,
					Message: fmt.Sprintf("Exact PO number match found: %s (confidence=%.2f)", po.PONumber, m.opts.ExactMatchConfidence),
				}
			}
		}
	}

	// Aggregate fuzzy score per PO
	similarity := m.opts.similarity()
	var best *PurchaseOrder
	bestScore := 0
	for i := range catalog.PurchaseOrders {
		po := &catalog.PurchaseOrders[i]
		score := 0
		for _, item := range invoice.Items {
			for _, poItem := range po.LineItems {
				score += similarity(item.Description, poItem.Description)
			}
		}
		if score > bestScore {
			bestScore = score
			best = po
		}
	}

	if best == nil {
		return MatchResult{}, ReasoningEntry{
			Stage:   StageMatching,
			Message: "No direct PO match and no purchase order shares any item description. No PO matched (confidence=0.00)",
		}
	}

	confidence := m.confidence(bestScore)
	return MatchResult{MatchedPO: best, Confidence: confidence}, ReasoningEntry{
		Stage:   StageMatching,
		Message: fmt.Sprintf("No direct PO match. Best fuzzy match = %s with score=%d, confidence=%.2f", best.PONumber, bestScore, confidence),
	}
}

// confidence normalises an aggregate score into [0,1]
func (m *Matcher) confidence(score int) float64 {
	if m.opts.CalibrationDivisor <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1.0, float64(score)/m.opts.CalibrationDivisor))
}

// Run applies Match to a run state
func (m *Matcher) Run(state *State, catalog *Catalog) {
	result, entry := m.Match(&state.Invoice, catalog)
	state.MatchedPO = result.MatchedPO
	state.MatchConfidence = result.Confidence
	state.Reasoning = append(state.Reasoning, entry)
}
