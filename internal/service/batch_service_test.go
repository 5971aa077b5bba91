package service

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-ap-reconciler/internal/errors"
	"github.com/pesio-ai/be-ap-reconciler/internal/logger"
	"github.com/pesio-ai/be-ap-reconciler/internal/output"
	"github.com/pesio-ai/be-ap-reconciler/internal/reconcile"
)

func TestBatchService_ReconcileAll(t *testing.T) {
	f := newFixture(t, nil)
	batch := NewBatchService(f.svc, 3, logger.Nop())

	prices := []float64{5.0, 5.5, 5.0, 7.0, 5.0}
	reqs := make([]*ReconcileRequest, len(prices))
	for i, p := range prices {
		reqs[i] = &ReconcileRequest{FileName: string(rune('a'+i)) + ".json", Invoice: invoiceWithPrice(p)}
	}
	reqs = append(reqs, &ReconcileRequest{FileName: "noitems.json", Invoice: &reconcile.Invoice{PONumber: ptr("PO-1001")}})

	result, err := batch.ReconcileAll(context.Background(), reqs)

	require.NoError(t, err)
	require.Len(t, result.Records, len(reqs))
	for i, rec := range result.Records {
		assert.Equal(t, reqs[i].FileName, rec.FileName, "order preserved")
	}
	assert.Equal(t, 6, result.Summary.Total)
	assert.Equal(t, 3, result.Summary.AutoApproved)
	assert.Equal(t, 3, result.Summary.NeedsReview)
	assert.Equal(t, 3, result.Summary.ByDecision["ESCALATE_TO_HUMAN"])
}

func TestBatchService_FailureStopsBatch(t *testing.T) {
	f := newFixture(t, nil)
	batch := NewBatchService(f.svc, 2, logger.Nop())

	_, err := batch.ReconcileAll(context.Background(), []*ReconcileRequest{
		{Invoice: invoiceWithPrice(5.0)},
		{FileName: "nothing"},
	})

	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

// gatedExtractor holds the failing run until the slow run is in flight
type gatedExtractor struct {
	started   chan struct{}
	cancelled atomic.Bool
}

func (g *gatedExtractor) Extract(ctx context.Context, path string) (*reconcile.Extraction, error) {
	if path == "slow.pdf" {
		close(g.started)
		select {
		case <-ctx.Done():
			g.cancelled.Store(true)
		case <-time.After(100 * time.Millisecond):
		}
		return &reconcile.Extraction{Invoice: *invoiceWithPrice(5.0), Confidence: 0.9}, nil
	}
	<-g.started
	return &reconcile.Extraction{Invoice: *invoiceWithPrice(5.0), Confidence: 0.9}, nil
}

// rejectingStore fails writes for one file name
type rejectingStore struct {
	*memoryStore
	reject string
}

func (r *rejectingStore) Create(ctx context.Context, rec *output.Record) error {
	if rec.FileName == r.reject {
		return errors.New(errors.ErrCodeUnavailable, "disk full")
	}
	return r.memoryStore.Create(ctx, rec)
}

func TestBatchService_StartedRunsFinishWhenSiblingFails(t *testing.T) {
	extractor := &gatedExtractor{started: make(chan struct{})}
	store := &rejectingStore{memoryStore: newMemoryStore(), reject: "bad.pdf"}
	svc := NewReconciliationService(testPipeline(t), extractor, store, nil, nil, nil, logger.Nop())
	batch := NewBatchService(svc, 2, logger.Nop())

	_, err := batch.ReconcileAll(context.Background(), []*ReconcileRequest{
		{FilePath: "slow.pdf"},
		{FilePath: "bad.pdf"},
	})

	assert.True(t, errors.Is(err, errors.ErrCodeUnavailable))
	assert.False(t, extractor.cancelled.Load())
	require.Len(t, store.records, 1)
	for _, rec := range store.records {
		assert.Equal(t, "slow.pdf", rec.FileName)
		assert.Equal(t, reconcile.DecisionAutoApprove, rec.Decision)
	}
}

func TestBatchService_Empty(t *testing.T) {
	_, err := NewBatchService(newFixture(t, nil).svc, 0, logger.Nop()).ReconcileAll(context.Background(), nil)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestSummarize(t *testing.T) {
	summary := Summarize([]*output.Record{
		{Decision: reconcile.DecisionAutoApprove},
		{Decision: reconcile.DecisionRequestClarification},
		nil,
	})

	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.AutoApproved)
	assert.Equal(t, 1, summary.NeedsReview)
	assert.Equal(t, map[string]int{"AUTO_APPROVE": 1, "REQUEST_CLARIFICATION": 1}, summary.ByDecision)
}

func TestListDocuments(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.JSON", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.pdf"), 0o755))

	paths, err := ListDocuments(dir)

	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.JSON"), filepath.Join(dir, "b.pdf")}, paths)

	reqs := RequestsFor(paths)
	require.Len(t, reqs, 2)
	assert.Equal(t, "a.JSON", reqs[0].FileName)
	assert.Equal(t, paths[0], reqs[0].FilePath)

	_, err = ListDocuments(filepath.Join(dir, "missing"))
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestChainStore(t *testing.T) {
	first, second := newMemoryStore(), newMemoryStore()
	chain := ChainStore{first, second}
	rec := &output.Record{RunID: "run-1"}

	require.NoError(t, chain.Create(context.Background(), rec))
	assert.Contains(t, first.records, "run-1")
	assert.Contains(t, second.records, "run-1")

	delete(first.records, "run-1")
	got, err := chain.GetByID(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Same(t, rec, got)

	_, err = chain.GetByID(context.Background(), "run-2")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))

	second.err = errors.New(errors.ErrCodeUnavailable, "down")
	assert.Error(t, chain.Create(context.Background(), &output.Record{RunID: "run-3"}))
}
