package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/pesio-ai/be-ap-reconciler/internal/client"
	"github.com/pesio-ai/be-ap-reconciler/internal/errors"
	"github.com/pesio-ai/be-ap-reconciler/internal/logger"
	"github.com/pesio-ai/be-ap-reconciler/internal/output"
	"github.com/pesio-ai/be-ap-reconciler/internal/reconcile"
	"github.com/pesio-ai/be-ap-reconciler/internal/repository"
)

// structuredExtractionConfidence is assigned to invoices supplied already structured
const structuredExtractionConfidence = 0.9

// RecordStore persists reconciliation records
type RecordStore interface {
	Create(ctx context.Context, rec *output.Record) error
	GetByID(ctx context.Context, runID string) (*output.Record, error)
}

// ReasoningAuditor keeps the append-only reasoning log
type ReasoningAuditor interface {
	Append(ctx context.Context, runID string, entries []reconcile.ReasoningEntry) error
	GetByRunID(ctx context.Context, runID string) ([]*repository.ReasoningAuditEntry, error)
}

// ReconciliationService handles reconciliation business logic
type ReconciliationService struct {
	pipeline  *reconcile.Pipeline
	extractor client.DocumentExtractor
	store     RecordStore
	audit     ReasoningAuditor
	explainer client.Explainer
	publisher client.EventPublisher
	log       *logger.Logger

	now   func() time.Time
	newID func() string
}

// NewReconciliationService creates a new reconciliation service. Everything
// except the pipeline and logger may be nil.
func NewReconciliationService(
	pipeline *reconcile.Pipeline,
	extractor client.DocumentExtractor,
	store RecordStore,
	audit ReasoningAuditor,
	explainer client.Explainer,
	publisher client.EventPublisher,
	log *logger.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		pipeline:  pipeline,
		extractor: extractor,
		store:     store,
		audit:     audit,
		explainer: explainer,
		publisher: publisher,
		log:       log,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// ReconcileRequest names one invoice to reconcile. Invoice, when set, skips
// document extraction.
type ReconcileRequest struct {
	FileName string             `json:"file_name"`
	FilePath string             `json:"file_path"`
	Invoice  *reconcile.Invoice `json:"invoice"`
}

func (r *ReconcileRequest) displayName() string {
	if r.FileName != "" {
		return r.FileName
	}
	if r.FilePath != "" {
		return filepath.Base(r.FilePath)
	}
	return ""
}

// Reconcile runs one invoice through the pipeline and records the outcome
func (s *ReconciliationService) Reconcile(ctx context.Context, req *ReconcileRequest) (*output.Record, error) {
	if req == nil || (req.Invoice == nil && req.FilePath == "") {
		return nil, errors.InvalidInput("file_path", "either file_path or invoice is required")
	}

	extraction := s.extract(ctx, req)
	state := s.pipeline.Run(extraction)

	rec := output.NewRecord(s.newID(), req.displayName(), state, s.now())

	if rec.NeedsHuman() && s.explainer != nil {
		explanation, err := s.explainer.Explain(ctx, rec)
		if err != nil {
			s.log.Warn().Err(err).Str("run_id", rec.RunID).Msg("Failed to generate explanation")
		} else {
			rec.HumanExplanation = &explanation
		}
	}

	if s.store != nil {
		if err := s.store.Create(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to store reconciliation: %w", err)
		}
	}

	if s.audit != nil {
		if err := s.audit.Append(ctx, rec.RunID, rec.Reasoning); err != nil {
			s.log.Warn().Err(err).Str("run_id", rec.RunID).Msg("Failed to append reasoning audit log")
		}
	}

	if s.publisher != nil {
		s.publisher.PublishDecision(ctx, rec)
	}

	event := s.log.Info().
		Str("run_id", rec.RunID).
		Str("file", rec.FileName).
		Str("decision", string(rec.Decision)).
		Float64("match_confidence", rec.MatchConfidence).
		Int("issues", len(rec.Issues))
	if rec.MatchedPO != nil {
		event = event.Str("matched_po", rec.MatchedPO.PONumber)
	}
	event.Msg("Invoice reconciled")

	return rec, nil
}

func (s *ReconciliationService) extract(ctx context.Context, req *ReconcileRequest) *reconcile.Extraction {
	if req.Invoice != nil {
		return &reconcile.Extraction{Invoice: *req.Invoice, Confidence: structuredExtractionConfidence}
	}
	if s.extractor == nil {
		return reconcile.FallbackExtraction(
			fmt.Sprintf("No document extraction service configured for '%s'. Using empty fallback invoice.", req.displayName()),
		)
	}

	extraction, err := s.extractor.Extract(ctx, req.FilePath)
	if err != nil {
		s.log.Warn().Err(err).Str("file", req.FilePath).Msg("Document extraction failed, using fallback invoice")
		return reconcile.FallbackExtraction(
			fmt.Sprintf("Document extraction failed for '%s'. Using empty fallback invoice.", req.displayName()),
		)
	}
	return extraction
}

// GetReconciliation returns a stored record
func (s *ReconciliationService) GetReconciliation(ctx context.Context, runID string) (*output.Record, error) {
	if runID == "" {
		return nil, errors.InvalidInput("id", "run id is required")
	}
	if s.store == nil {
		return nil, errors.NotFound("reconciliation", runID)
	}
	rec, err := s.store.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reconciliation: %w", err)
	}
	if len(rec.Reasoning) == 0 && s.audit != nil {
		if entries, err := s.audit.GetByRunID(ctx, runID); err == nil {
			rec.Reasoning = repository.ToReasoning(entries)
		}
	}
	return rec, nil
}

// GetReasoning returns the reasoning trail of a run
func (s *ReconciliationService) GetReasoning(ctx context.Context, runID string) ([]reconcile.ReasoningEntry, error) {
	if runID == "" {
		return nil, errors.InvalidInput("id", "run id is required")
	}

	rec, err := s.GetReconciliation(ctx, runID)
	if err != nil {
		return nil, err
	}
	return rec.Reasoning, nil
}
