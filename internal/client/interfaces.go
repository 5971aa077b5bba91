package client

import (
	"context"

	"github.com/pesio-ai/be-ap-reconciler/internal/output"
	"github.com/pesio-ai/be-ap-reconciler/internal/reconcile"
)

// DocumentExtractor turns a source document into a structured invoice
type DocumentExtractor interface {
	Extract(ctx context.Context, documentPath string) (*reconcile.Extraction, error)
}

// Explainer produces a natural-language explanation of a decision
type Explainer interface {
	Explain(ctx context.Context, rec *output.Record) (string, error)
}

// EventPublisher announces completed reconciliations
type EventPublisher interface {
	PublishDecision(ctx context.Context, rec *output.Record)
}
