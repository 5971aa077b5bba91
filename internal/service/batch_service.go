package service

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pesio-ai/be-ap-reconciler/internal/errors"
	"github.com/pesio-ai/be-ap-reconciler/internal/logger"
	"github.com/pesio-ai/be-ap-reconciler/internal/output"
	"github.com/pesio-ai/be-ap-reconciler/internal/reconcile"
)

// documentExtensions are the files picked up from an invoice directory
var documentExtensions = map[string]bool{
	".pdf":  true,
	".json": true,
}

// BatchService reconciles many invoices with bounded concurrency
type BatchService struct {
	reconciler  *ReconciliationService
	concurrency int
	log         *logger.Logger
}

// NewBatchService creates a new batch service
func NewBatchService(reconciler *ReconciliationService, concurrency int, log *logger.Logger) *BatchService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &BatchService{reconciler: reconciler, concurrency: concurrency, log: log}
}

// BatchSummary counts the outcomes of a batch
type BatchSummary struct {
	Total        int            `json:"total"`
	AutoApproved int            `json:"auto_approved"`
	NeedsReview  int            `json:"needs_review"`
	ByDecision   map[string]int `json:"by_decision"`
}

// BatchResult holds records in request order
type BatchResult struct {
	Records []*output.Record `json:"records"`
	Summary BatchSummary     `json:"summary"`
}

// Summarize counts records by decision
func Summarize(records []*output.Record) BatchSummary {
	summary := BatchSummary{ByDecision: make(map[string]int)}
	for _, rec := range records {
		if rec == nil {
			continue
		}
		summary.Total++
		summary.ByDecision[string(rec.Decision)]++
		if rec.Decision == reconcile.DecisionAutoApprove {
			summary.AutoApproved++
		} else {
			summary.NeedsReview++
		}
	}
	return summary
}

// ReconcileAll reconciles every request. Runs are independent; the first
// failure stops runs that have not started yet. Started runs always finish.
func (s *BatchService) ReconcileAll(ctx context.Context, reqs []*ReconcileRequest) (*BatchResult, error) {
	if len(reqs) == 0 {
		return nil, errors.InvalidInput("requests", "at least one invoice is required")
	}

	records := make([]*output.Record, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, req := range reqs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := s.reconciler.Reconcile(context.WithoutCancel(gctx), req)
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := Summarize(records)
	s.log.Info().
		Int("total", summary.Total).
		Int("auto_approved", summary.AutoApproved).
		Int("needs_review", summary.NeedsReview).
		Msg("Batch reconciled")

	return &BatchResult{Records: records, Summary: summary}, nil
}

// ListDocuments returns the invoice documents in dir, sorted by name
func ListDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeNotFound, "failed to read invoice directory")
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if documentExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// RequestsFor builds one request per document path
func RequestsFor(paths []string) []*ReconcileRequest {
	reqs := make([]*ReconcileRequest, 0, len(paths))
	for _, path := range paths {
		reqs = append(reqs, &ReconcileRequest{FileName: filepath.Base(path), FilePath: path})
	}
	return reqs
}
