package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Reconciliation event types published to the event feed.
const (
	EventPageAccepted = "page.accepted"
	EventPageRejected = "page.rejected"
	EventVerdictSet   = "verdict.set"
)

// ReconcileEvent describes one state change in a student's page ledger.
type ReconcileEvent struct {
	Type       string    `json:"type"`
	WorkbookID uint      `json:"workbook_id"`
	StudentID  uint      `json:"student_id"`
	PageNumber int       `json:"page_number"`
	Passed     bool      `json:"passed"`
	Similarity *float64  `json:"similarity,omitempty"`
	ReviewerID *uint     `json:"reviewer_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher emits reconciliation events for downstream consumers
// (notifications, analytics). Publishing is fire and forget; a failed
// publish never fails the originating operation.
type EventPublisher interface {
	Publish(ctx context.Context, event ReconcileEvent)
}

type natsEventPublisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewNATSEventPublisher builds a publisher on top of a NATS connection. A nil
// connection yields a publisher that drops every event, so callers do not
// need to special-case deployments without a broker.
func NewNATSEventPublisher(conn *nats.Conn, subject string, logger zerolog.Logger) EventPublisher {
	if subject == "" {
		subject = "workbook.reconcile"
	}

	return &natsEventPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *natsEventPublisher) Publish(_ context.Context, event ReconcileEvent) {
	if p.conn == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn().Err(err).Str("type", event.Type).Msg("failed to encode reconcile event")
		return
	}

	if err := p.conn.Publish(p.subject, payload); err != nil {
		p.logger.Warn().Err(err).Str("type", event.Type).Msg("failed to publish reconcile event")
	}
}
