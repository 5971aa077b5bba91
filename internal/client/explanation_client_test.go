package client

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-ap-reconciler/internal/errors"
	"github.com/pesio-ai/be-ap-reconciler/internal/output"
	"github.com/pesio-ai/be-ap-reconciler/internal/reconcile"
)

func ptr(s string) *string { return &s }

func reviewRecord() *output.Record {
	return &output.Record{
		RunID:     "run-1",
		FileName:  "inv.pdf",
		Decision:  reconcile.DecisionEscalateToHuman,
		Invoice:   reconcile.Invoice{InvoiceNo: ptr("INV-1"), PONumber: ptr("PO-1001")},
		MatchedPO: &reconcile.PurchaseOrder{PONumber: "PO-1001"},
		Issues:    []reconcile.Issue{reconcile.NewPriceMismatch("Widget A", 5.5, 5.0)},
		Reasoning: []reconcile.ReasoningEntry{
			{Stage: reconcile.StageResolution, Message: "Critical issue detected (PRICE_MISMATCH). Escalating to human."},
		},
		HumanFeedback: &reconcile.ReviewFeedback{HumanReviewed: true},
	}
}

func TestExplanationClient_Explain(t *testing.T) {
	var got chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Price differs from PO.  "}}]}`))
	}))
	defer srv.Close()

	c := NewExplanationClient(ExplanationConfig{
		BaseURL:     srv.URL,
		APIKey:      "secret",
		Model:       "test-model",
		Temperature: 0.1,
		MaxTokens:   128,
		Timeout:     5 * time.Second,
	})

	text, err := c.Explain(context.Background(), reviewRecord())

	require.NoError(t, err)
	assert.Equal(t, "Price differs from PO.", text)
	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, 128, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Contains(t, got.Messages[1].Content, "Invoice decision: ESCALATE_TO_HUMAN")
	assert.Contains(t, got.Messages[1].Content, "[ResolutionAgent] Critical issue detected")
}

func TestExplanationClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewExplanationClient(ExplanationConfig{BaseURL: srv.URL, Timeout: time.Second}).Explain(context.Background(), reviewRecord())
	assert.Error(t, err)

	_, err = NewExplanationClient(ExplanationConfig{BaseURL: srv.URL, APIKey: "k", Timeout: time.Second}).Explain(context.Background(), reviewRecord())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeUnavailable))
}

func TestExplanationClient_UnencodableIssues(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	rec := reviewRecord()
	rec.Issues = []reconcile.Issue{reconcile.NewPriceMismatch("Widget A", math.NaN(), 5.0)}

	_, err := NewExplanationClient(ExplanationConfig{BaseURL: srv.URL, Timeout: time.Second}).Explain(context.Background(), rec)

	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
	assert.Zero(t, calls)
}

func TestNewDecisionEvent(t *testing.T) {
	event := NewDecisionEvent(reviewRecord())

	assert.Equal(t, "invoice_reconciled", event.EventType)
	assert.Equal(t, "run-1", event.RunID)
	assert.Equal(t, "INV-1", event.InvoiceNo)
	assert.Equal(t, "PO-1001", event.MatchedPO)
	assert.Equal(t, []string{"PRICE_MISMATCH"}, event.IssueTypes)
	assert.True(t, event.Reviewed)
	assert.Equal(t, "warning", event.Severity)
}

func TestDecisionPublisher_NilSafe(t *testing.T) {
	var p *DecisionPublisher

	assert.NotPanics(t, func() {
		p.PublishDecision(context.Background(), reviewRecord())
		p.Close()
	})
	assert.Equal(t, "reconciliation.auto_approve", (&DecisionPublisher{prefix: "reconciliation"}).Subject("AUTO_APPROVE"))
}
