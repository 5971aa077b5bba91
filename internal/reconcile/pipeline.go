package reconcile

import "github.com/pesio-ai/be-ap-reconciler/internal/errors"

// Pipeline runs the reconciliation stages in their fixed order:
// matching, discrepancy detection, resolution, then review when warranted.
// It holds no per-run state and is safe for concurrent use.
type Pipeline struct {
	catalog  *Catalog
	opts     Options
	matcher  *Matcher
	detector *Detector
	resolver *Resolver
	reviewer Reviewer
}

// NewPipeline creates a pipeline over a read-only catalog. A nil reviewer
// selects the automatic reviewer.
func NewPipeline(catalog *Catalog, opts Options, reviewer Reviewer) (*Pipeline, error) {
	if catalog == nil {
		return nil, errors.InvalidInput("catalog", "purchase order catalog is required")
	}
	if reviewer == nil {
		reviewer = NewAutoReviewer(opts)
	}
	return &Pipeline{
		catalog:  catalog,
		opts:     opts,
		matcher:  NewMatcher(opts),
		detector: NewDetector(opts),
		resolver: NewResolver(opts),
		reviewer: reviewer,
	}, nil
}

// Catalog returns the catalog the pipeline matches against
func (p *Pipeline) Catalog() *Catalog {
	return p.catalog
}

// Run reconciles one extracted invoice and returns the completed state
func (p *Pipeline) Run(extraction *Extraction) *State {
	state := NewState(extraction.Invoice)
	state.ExtractionConfidence = extraction.Confidence

	if extraction.Note != "" {
		state.logf(StageDocument, "%s", extraction.Note)
	} else {
		state.logf(StageDocument, "Extracted invoice. InvoiceNo=%s, PO=%s, Items=%d",
			StringValue(state.Invoice.InvoiceNo), StringValue(state.Invoice.PONumber), len(state.Invoice.Items))
	}

	p.matcher.Run(state, p.catalog)
	p.detector.Run(state)
	p.resolver.Run(state)

	if p.NeedsReview(state) {
		p.reviewer.Review(state)
	}
	return state
}

// NeedsReview is the routing predicate after resolution
func (p *Pipeline) NeedsReview(state *State) bool {
	return state.MatchConfidence < p.opts.LowConfidenceThreshold || state.HasIssue(IssuePriceMismatch)
}
