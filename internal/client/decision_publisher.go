package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/pesio-ai/be-ap-reconciler/internal/output"
)

// DecisionPublisher publishes reconciliation outcomes to NATS for downstream
// AP workflows (approval routing, vendor follow-up).
//
// Subject convention: <prefix>.<decision>, e.g. reconciliation.escalate_to_human
//
// Publishing is non-fatal: errors are logged and never returned, so a broker
// outage never affects a reconciliation.
type DecisionPublisher struct {
	conn   *nats.Conn
	prefix string
	log    zerolog.Logger
}

// DecisionEvent is the JSON schema published to NATS.
type DecisionEvent struct {
	EventType       string   `json:"event_type"`
	RunID           string   `json:"run_id"`
	FileName        string   `json:"file_name,omitempty"`
	InvoiceNo       string   `json:"invoice_no,omitempty"`
	PONumber        string   `json:"po_number,omitempty"`
	MatchedPO       string   `json:"matched_po,omitempty"`
	Decision        string   `json:"decision"`
	MatchConfidence float64  `json:"match_confidence"`
	IssueTypes      []string `json:"issue_types"`
	Reviewed        bool     `json:"reviewed"`
	Severity        string   `json:"severity"`
}

// NewDecisionPublisher connects to NATS at url
func NewDecisionPublisher(url, prefix string, log zerolog.Logger) (*DecisionPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("be-ap-reconciler"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &DecisionPublisher{conn: conn, prefix: prefix, log: log}, nil
}

// Close drains the connection
func (p *DecisionPublisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.log.Warn().Err(err).Msg("notification: NATS drain failed")
	}
}

// Subject returns the subject a decision is published on
func (p *DecisionPublisher) Subject(decision string) string {
	return fmt.Sprintf("%s.%s", p.prefix, strings.ToLower(decision))
}

// NewDecisionEvent builds the event for a record
func NewDecisionEvent(rec *output.Record) *DecisionEvent {
	event := &DecisionEvent{
		EventType:       "invoice_reconciled",
		RunID:           rec.RunID,
		FileName:        rec.FileName,
		Decision:        string(rec.Decision),
		MatchConfidence: rec.MatchConfidence,
		IssueTypes:      make([]string, 0, len(rec.Issues)),
		Reviewed:        rec.HumanFeedback != nil,
		Severity:        "info",
	}
	if rec.Invoice.InvoiceNo != nil {
		event.InvoiceNo = *rec.Invoice.InvoiceNo
	}
	if rec.Invoice.PONumber != nil {
		event.PONumber = *rec.Invoice.PONumber
	}
	if rec.MatchedPO != nil {
		event.MatchedPO = rec.MatchedPO.PONumber
	}
	for _, issue := range rec.Issues {
		event.IssueTypes = append(event.IssueTypes, string(issue.Type))
	}
	if rec.NeedsHuman() {
		event.Severity = "warning"
	}
	return event
}

// PublishDecision implements EventPublisher
func (p *DecisionPublisher) PublishDecision(ctx context.Context, rec *output.Record) {
	if p == nil || p.conn == nil {
		return
	}

	data, err := json.Marshal(NewDecisionEvent(rec))
	if err != nil {
		p.log.Warn().Err(err).Str("run_id", rec.RunID).Msg("notification: failed to marshal event")
		return
	}

	subject := p.Subject(string(rec.Decision))
	msg := &nats.Msg{Subject: subject, Data: data, Header: nats.Header{}}
	msg.Header.Set("Nats-Msg-Id", rec.RunID)

	if err := p.conn.PublishMsg(msg); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("run_id", rec.RunID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("run_id", rec.RunID).
		Msg("notification: event published")
}
