package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-ap-reconciler/internal/errors"
	"github.com/pesio-ai/be-ap-reconciler/internal/logger"
	"github.com/pesio-ai/be-ap-reconciler/internal/output"
	"github.com/pesio-ai/be-ap-reconciler/internal/reconcile"
	"github.com/pesio-ai/be-ap-reconciler/internal/service"
)

func newTestService(t *testing.T) *service.ReconciliationService {
	t.Helper()
	catalog := &reconcile.Catalog{PurchaseOrders: []reconcile.PurchaseOrder{{
		PONumber:  "PO-1001",
		LineItems: []reconcile.LineItem{{Description: "Widget A", Quantity: 10, UnitPrice: 5.0}},
	}}}
	pipeline, err := reconcile.NewPipeline(catalog, reconcile.DefaultOptions(), nil)
	require.NoError(t, err)

	store := output.NewFileStore(output.NewFileWriter(t.TempDir()))
	return service.NewReconciliationService(pipeline, nil, store, nil, nil, nil, logger.Nop())
}

func newTestMux(t *testing.T) *http.ServeMux {
	svc := newTestService(t)
	h := NewHTTPHandler(svc, service.NewBatchService(svc, 2, logger.Nop()), logger.Nop())
	mux := http.NewServeMux()
	h.Routes(mux)
	return mux
}

const cleanInvoice = `{"file_name": "inv-1.json", "invoice": {"po_number": "PO-1001", "items": [{"description": "Widget A", "quantity": 10, "unit_price": 5.0}]}}`

func do(mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, bytes.NewBufferString(body)))
	return rec
}

func TestHTTP_ReconcileAndGet(t *testing.T) {
	mux := newTestMux(t)

	resp := do(mux, http.MethodPost, "/api/v1/reconciliations", cleanInvoice)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var created output.Record
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	assert.Equal(t, reconcile.DecisionAutoApprove, created.Decision)
	assert.NotEmpty(t, created.RunID)

	resp = do(mux, http.MethodGet, "/api/v1/reconciliations/get?id="+created.RunID, "")
	require.Equal(t, http.StatusOK, resp.Code)
	var fetched output.Record
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &fetched))
	assert.Equal(t, created.RunID, fetched.RunID)

	resp = do(mux, http.MethodGet, "/api/v1/reconciliations/reasoning?id="+created.RunID, "")
	require.Equal(t, http.StatusOK, resp.Code)
	var trail struct {
		RunID     string                     `json:"run_id"`
		Reasoning []reconcile.ReasoningEntry `json:"reasoning"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &trail))
	assert.Equal(t, created.Reasoning, trail.Reasoning)
}

func TestHTTP_Errors(t *testing.T) {
	mux := newTestMux(t)

	assert.Equal(t, http.StatusMethodNotAllowed, do(mux, http.MethodGet, "/api/v1/reconciliations", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(mux, http.MethodPost, "/api/v1/reconciliations", "{").Code)
	assert.Equal(t, http.StatusBadRequest, do(mux, http.MethodPost, "/api/v1/reconciliations", `{"file_name": "x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(mux, http.MethodGet, "/api/v1/reconciliations/get", "").Code)
	assert.Equal(t, http.StatusNotFound, do(mux, http.MethodGet, "/api/v1/reconciliations/get?id=missing", "").Code)
	assert.Equal(t, http.StatusNotFound, do(mux, http.MethodGet, "/api/v1/reconciliations/reasoning?id=missing", "").Code)
}

func TestHTTP_Batch(t *testing.T) {
	mux := newTestMux(t)
	body := `{"invoices": [
		{"file_name": "a.json", "invoice": {"po_number": "PO-1001", "items": [{"description": "Widget A", "quantity": 10, "unit_price": 5.0}]}},
		{"file_name": "b.json", "invoice": {"po_number": "N/A", "items": []}}
	]}`

	resp := do(mux, http.MethodPost, "/api/v1/reconciliations/batch", body)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var result service.BatchResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	require.Len(t, result.Records, 2)
	assert.Equal(t, "a.json", result.Records[0].FileName)
	assert.Equal(t, reconcile.DecisionEscalateToHuman, result.Records[1].Decision)
	assert.Equal(t, 1, result.Summary.AutoApproved)
	assert.Equal(t, 1, result.Summary.NeedsReview)

	assert.Equal(t, http.StatusBadRequest, do(mux, http.MethodPost, "/api/v1/reconciliations/batch", `{"invoices": []}`).Code)
}

func TestHTTP_Health(t *testing.T) {
	resp := do(newTestMux(t), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, resp.Body.String())
}

func TestHTTPStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, httpStatusFor(errors.New(errors.ErrCodeConflict, "x")))
	assert.Equal(t, http.StatusServiceUnavailable, httpStatusFor(errors.New(errors.ErrCodeUnavailable, "x")))
	assert.Equal(t, http.StatusInternalServerError, httpStatusFor(assert.AnError))
}
