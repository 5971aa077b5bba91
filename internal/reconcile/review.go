package reconcile

// Reviewer confirms or overrides the resolution decision. The automatic
// reviewer below can be replaced by a human-in-the-loop implementation.
type Reviewer interface {
	Review(state *State)
}

// AutoReviewer re-derives a decision from the issues and match confidence
// alone, independently of the resolution engine.
type AutoReviewer struct {
	opts Options
}

// NewAutoReviewer creates the automatic secondary review stage
func NewAutoReviewer(opts Options) *AutoReviewer {
	return &AutoReviewer{opts: opts}
}

// Review overwrites the state decision and records feedback
func (r *AutoReviewer) Review(state *State) {
	feedback := &ReviewFeedback{HumanReviewed: true}

	switch {
	case state.MatchConfidence < r.opts.LowConfidenceThreshold:
		feedback.HumanDecision = DecisionEscalateToHuman
		feedback.Notes = "PO could not be confidently identified. Manual review required."
		state.logf(StageReview, "Reviewer confirms escalation due to low PO match confidence (%.2f).", state.MatchConfidence)

	case state.HasIssue(IssuePriceMismatch):
		feedback.HumanDecision = DecisionEscalateToHuman
		feedback.Notes = "Price mismatch confirmed by reviewer."
		state.logf(StageReview, "Reviewer confirms escalation due to price mismatch.")

	case len(state.Issues) > 0:
		feedback.HumanDecision = DecisionRequestClarification
		feedback.Notes = "Minor issues found. Vendor clarification required."
		state.logf(StageReview, "Reviewer suggests requesting clarification for minor issues.")

	default:
		feedback.HumanDecision = DecisionAutoApprove
		feedback.Notes = "Looks good. Approved by reviewer."
		state.logf(StageReview, "Reviewer approves invoice.")
	}

	state.Decision = feedback.HumanDecision
	state.Feedback = feedback
}
