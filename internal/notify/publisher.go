// Package notify publishes approval domain events to NATS for consumption by
// downstream notification and reporting services.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Publisher publishes approval subsystem events to NATS.
//
// Subject convention: notifications.approvals.<event_type>
// Event types: approval_requested, approval_first_approved, approval_approved,
//
//	approval_rejected, variation_created, variation_track_approved,
//	variation_rejected, variation_implemented, variation_communication,
//	credit_check_completed
//
// A nil connection is valid and turns every publish into a no-op, so the
// service degrades cleanly when NATS is not configured.
type Publisher struct {
	conn *nats.Conn
	log  zerolog.Logger
}

// NewPublisher creates a publisher backed by the given NATS connection.
// conn may be nil.
func NewPublisher(conn *nats.Conn, log zerolog.Logger) *Publisher {
	return &Publisher{conn: conn, log: log}
}

// Publish sends one event. The payload is marshalled to JSON; the returned
// error reports marshal or transport failure so callers can record the
// delivery outcome, but callers are expected never to fail business
// operations on it.
func (p *Publisher) Publish(_ context.Context, eventType string, payload any) error {
	if p == nil || p.conn == nil {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	subject := fmt.Sprintf("notifications.approvals.%s", eventType)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	p.log.Debug().
		Str("subject", subject).
		Msg("notification: event published")
	return nil
}
