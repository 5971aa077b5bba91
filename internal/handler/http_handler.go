package handler

import (
	"encoding/json"
	"net/http"

	"github.com/pesio-ai/be-ap-reconciler/internal/errors"
	"github.com/pesio-ai/be-ap-reconciler/internal/logger"
	"github.com/pesio-ai/be-ap-reconciler/internal/service"
)

// maxBatchSize bounds one batch request
const maxBatchSize = 500

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	service *service.ReconciliationService
	batch   *service.BatchService
	log     *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(service *service.ReconciliationService, batch *service.BatchService, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		service: service,
		batch:   batch,
		log:     log,
	}
}

// Routes registers the API on mux
func (h *HTTPHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/api/v1/reconciliations", h.Reconcile)
	mux.HandleFunc("/api/v1/reconciliations/batch", h.ReconcileBatch)
	mux.HandleFunc("/api/v1/reconciliations/get", h.GetReconciliation)
	mux.HandleFunc("/api/v1/reconciliations/reasoning", h.GetReasoning)
}

// Health reports liveness
func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Reconcile handles single reconciliation requests
func (h *HTTPHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req service.ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.service.Reconcile(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

type batchRequest struct {
	Invoices []*service.ReconcileRequest `json:"invoices"`
}

// ReconcileBatch handles batch reconciliation requests
func (h *HTTPHandler) ReconcileBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Invoices) > maxBatchSize {
		http.Error(w, "Too many invoices in one batch", http.StatusBadRequest)
		return
	}

	result, err := h.batch.ReconcileAll(r.Context(), req.Invoices)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetReconciliation handles get reconciliation requests
func (h *HTTPHandler) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID := r.URL.Query().Get("id")
	if runID == "" {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	rec, err := h.service.GetReconciliation(r.Context(), runID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// GetReasoning returns the reasoning trail of a run
func (h *HTTPHandler) GetReasoning(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID := r.URL.Query().Get("id")
	if runID == "" {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	entries, err := h.service.GetReasoning(r.Context(), runID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":    runID,
		"reasoning": entries,
	})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := httpStatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("stack", errors.Stack(err)).Msg("Request failed")
	}
	http.Error(w, err.Error(), status)
}

func httpStatusFor(err error) int {
	switch errors.CodeOf(err) {
	case errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeConflict:
		return http.StatusConflict
	case errors.ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
