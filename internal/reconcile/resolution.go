package reconcile

import "strings"

// placeholderPONumbers are PO values treated as missing
var placeholderPONumbers = map[string]bool{
	"n/a":  true,
	"na":   true,
	"none": true,
	"null": true,
	"":     true,
}

// Resolver turns accumulated issues and match confidence into a decision.
// Rules are evaluated in order and the first that fires decides.
type Resolver struct {
	opts Options
}

// NewResolver creates a resolution engine
func NewResolver(opts Options) *Resolver {
	return &Resolver{opts: opts}
}

// Run decides the state, appending issues where a rule raises one
func (r *Resolver) Run(state *State) {
	poNumber := state.Invoice.PONumber

	// Rule 1: missing or placeholder PO number
	if IsMissingPONumber(poNumber) {
		state.addIssue(NewMissingPO(poNumber))
		state.Decision = DecisionEscalateToHuman
		state.logf(StageResolution, "Invoice PO is missing or invalid ('%s'). Escalating.", StringValue(poNumber))
		return
	}

	// Rule 2: weak PO match
	if state.MatchConfidence < r.opts.LowConfidenceThreshold {
		state.addIssue(NewLowMatchConfidence(state.MatchConfidence))
		state.Decision = DecisionEscalateToHuman
		state.logf(StageResolution, "PO match confidence too low (%.2f). Escalating.", state.MatchConfidence)
		return
	}

	// Rule 3: price mismatches are critical
	if state.HasIssue(IssuePriceMismatch) {
		state.Decision = DecisionEscalateToHuman
		state.logf(StageResolution, "Critical issue detected (%s). Escalating to human.", IssuePriceMismatch)
		return
	}

	// Rule 4: clean invoice
	if len(state.Issues) == 0 {
		state.Decision = DecisionAutoApprove
		state.logf(StageResolution, "No issues and high confidence. Auto-approving invoice.")
		return
	}

	// Rule 5: only non-critical issues
	state.Decision = DecisionRequestClarification
	state.logf(StageResolution, "Only non-critical issues detected (%s). Requesting vendor clarification.", joinTypes(issueTypes(state.Issues)))
}

// IsMissingPONumber reports whether a PO number is absent or a placeholder
func IsMissingPONumber(poNumber *string) bool {
	if poNumber == nil {
		return true
	}
	return placeholderPONumbers[strings.ToLower(strings.TrimSpace(*poNumber))]
}

func joinTypes(types []IssueType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}
