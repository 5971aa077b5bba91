package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-ap-reconciler/internal/database"
	"github.com/pesio-ai/be-ap-reconciler/internal/errors"
	"github.com/pesio-ai/be-ap-reconciler/internal/output"
	"github.com/pesio-ai/be-ap-reconciler/internal/reconcile"
)

// ReconciliationRepository stores reconciliation output records
type ReconciliationRepository struct {
	db *database.DB
}

// NewReconciliationRepository creates a new reconciliation repository
func NewReconciliationRepository(db *database.DB) *ReconciliationRepository {
	return &ReconciliationRepository{db: db}
}

// Create inserts a record with its issues
func (r *ReconciliationRepository) Create(ctx context.Context, rec *output.Record) error {
	invoiceJSON, err := json.Marshal(rec.Invoice)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal invoice")
	}

	var matchedPOJSON []byte
	var matchedPONumber *string
	if rec.MatchedPO != nil {
		matchedPONumber = &rec.MatchedPO.PONumber
		if matchedPOJSON, err = json.Marshal(rec.MatchedPO); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal matched purchase order")
		}
	}

	var feedbackJSON []byte
	if rec.HumanFeedback != nil {
		if feedbackJSON, err = json.Marshal(rec.HumanFeedback); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal review feedback")
		}
	}

	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO reconciliation_runs (id, file_name, decision,
			                                 invoice_no, supplier, po_number, invoice,
			                                 matched_po_number, matched_po,
			                                 match_confidence, extraction_confidence,
			                                 human_feedback, human_explanation, processed_at)
			VALUES ($1, $2, $3::reconciliation_decision, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`

		_, err := tx.Exec(ctx, query,
			rec.RunID,
			rec.FileName,
			string(rec.Decision),
			rec.Invoice.InvoiceNo,
			rec.Invoice.Supplier,
			rec.Invoice.PONumber,
			invoiceJSON,
			matchedPONumber,
			matchedPOJSON,
			rec.MatchConfidence,
			rec.ExtractionConfidence,
			feedbackJSON,
			rec.HumanExplanation,
			rec.ProcessedAt,
		)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to create reconciliation run")
		}

		// Insert issues in the order they were raised
		for i, issue := range rec.Issues {
			payload, err := json.Marshal(issue)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal issue")
			}

			issueQuery := `
				INSERT INTO reconciliation_issues (run_id, ordinal, issue_type, stage,
				                                   confidence, severity, item, payload)
				VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)
			`
			if _, err := tx.Exec(ctx, issueQuery,
				rec.RunID,
				i+1,
				string(issue.Type),
				string(issue.Stage),
				issue.Confidence,
				string(issue.Severity),
				issue.Item,
				payload,
			); err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to create reconciliation issue")
			}
		}

		return nil
	})
}

// GetByID retrieves a record with its issues. Reasoning is loaded separately
// from the audit repository.
func (r *ReconciliationRepository) GetByID(ctx context.Context, runID string) (*output.Record, error) {
	rec := &output.Record{}
	var decision string
	var invoiceJSON, matchedPOJSON, feedbackJSON []byte

	query := `
		SELECT id, file_name, decision, invoice, matched_po,
		       match_confidence, extraction_confidence,
		       human_feedback, human_explanation, processed_at
		FROM reconciliation_runs
		WHERE id = $1
	`

	err := r.db.QueryRow(ctx, query, runID).Scan(
		&rec.RunID,
		&rec.FileName,
		&decision,
		&invoiceJSON,
		&matchedPOJSON,
		&rec.MatchConfidence,
		&rec.ExtractionConfidence,
		&feedbackJSON,
		&rec.HumanExplanation,
		&rec.ProcessedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("reconciliation_run", runID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get reconciliation run")
	}
	rec.Decision = reconcile.Decision(decision)

	if err := json.Unmarshal(invoiceJSON, &rec.Invoice); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal invoice")
	}
	if matchedPOJSON != nil {
		rec.MatchedPO = &reconcile.PurchaseOrder{}
		if err := json.Unmarshal(matchedPOJSON, rec.MatchedPO); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal matched purchase order")
		}
	}
	if feedbackJSON != nil {
		rec.HumanFeedback = &reconcile.ReviewFeedback{}
		if err := json.Unmarshal(feedbackJSON, rec.HumanFeedback); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal review feedback")
		}
	}

	rec.Issues, err = r.getIssues(ctx, runID)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// getIssues loads issues for a run in ordinal order
func (r *ReconciliationRepository) getIssues(ctx context.Context, runID string) ([]reconcile.Issue, error) {
	query := `
		SELECT payload
		FROM reconciliation_issues
		WHERE run_id = $1
		ORDER BY ordinal ASC
	`

	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get reconciliation issues")
	}
	defer rows.Close()

	issues := []reconcile.Issue{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan issue")
		}
		var issue reconcile.Issue
		if err := json.Unmarshal(payload, &issue); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal issue")
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to iterate issues")
	}
	return issues, nil
}

// CountByDecision returns how many runs ended in each decision
func (r *ReconciliationRepository) CountByDecision(ctx context.Context) (map[reconcile.Decision]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT decision, COUNT(*) FROM reconciliation_runs GROUP BY decision`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to count reconciliation runs")
	}
	defer rows.Close()

	counts := make(map[reconcile.Decision]int64)
	for rows.Next() {
		var decision string
		var n int64
		if err := rows.Scan(&decision, &n); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan decision count")
		}
		counts[reconcile.Decision(decision)] = n
	}
	return counts, rows.Err()
}
