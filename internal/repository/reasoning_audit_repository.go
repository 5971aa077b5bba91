package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-ap-reconciler/internal/database"
	"github.com/pesio-ai/be-ap-reconciler/internal/errors"
	"github.com/pesio-ai/be-ap-reconciler/internal/reconcile"
)

// ReasoningAuditEntry is one immutable row of a run's reasoning trail
type ReasoningAuditEntry struct {
	ID         int64           `json:"id"`
	RunID      string          `json:"run_id"`
	Ordinal    int             `json:"ordinal"`
	Stage      reconcile.Stage `json:"stage"`
	Message    string          `json:"message"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// ReasoningAuditRepository appends and reads reasoning trails. The table has
// a delete-prevention trigger so Append is the only mutation exposed.
type ReasoningAuditRepository struct {
	db *database.DB
}

// NewReasoningAuditRepository creates a new ReasoningAuditRepository.
func NewReasoningAuditRepository(db *database.DB) *ReasoningAuditRepository {
	return &ReasoningAuditRepository{db: db}
}

// Append writes a run's trail in one batch, preserving order via ordinal.
func (r *ReasoningAuditRepository) Append(ctx context.Context, runID string, entries []reconcile.ReasoningEntry) error {
	if len(entries) == 0 {
		return nil
	}

	query := `
		INSERT INTO reconciliation_reasoning_log (run_id, ordinal, stage, message)
		VALUES ($1, $2, $3, $4)
	`

	batch := &pgx.Batch{}
	for i, entry := range entries {
		batch.Queue(query, runID, i+1, string(entry.Stage), entry.Message)
	}

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append reasoning trail")
	}
	return nil
}

// GetByRunID returns a run's trail in the order it was observed.
func (r *ReasoningAuditRepository) GetByRunID(ctx context.Context, runID string) ([]*ReasoningAuditEntry, error) {
	query := `
		SELECT id, run_id, ordinal, stage, message, recorded_at
		FROM reconciliation_reasoning_log
		WHERE run_id = $1
		ORDER BY ordinal ASC
	`

	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get reasoning trail")
	}
	defer rows.Close()

	var entries []*ReasoningAuditEntry
	for rows.Next() {
		entry := &ReasoningAuditEntry{}
		var stage string
		if err := rows.Scan(&entry.ID, &entry.RunID, &entry.Ordinal, &stage, &entry.Message, &entry.RecordedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan reasoning entry")
		}
		entry.Stage = reconcile.Stage(stage)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to iterate reasoning trail")
	}
	return entries, nil
}

// ToReasoning converts audit rows back into trail entries
func ToReasoning(entries []*ReasoningAuditEntry) []reconcile.ReasoningEntry {
	out := make([]reconcile.ReasoningEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, reconcile.ReasoningEntry{Stage: e.Stage, Message: e.Message})
	}
	return out
}
