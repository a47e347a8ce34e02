// Package service holds the business logic: the generic approval workflow
// engine, the variation lifecycle controller and the credit check service.
//
// Services mutate state through the repository layer's atomic transition
// primitives and fan events out to the audit log and notification publisher
// strictly after commit. Event dispatch is best-effort: a failed audit write
// or notification never fails, retries or rolls back the business operation.
package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/sfg-nexus/be-approvals/internal/repository"
)

// Notifier publishes domain events to the notification fabric. Implementations
// must be non-blocking relative to business transactions and report failure
// via the returned error only.
type Notifier interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// AuditLog appends and reads immutable audit entries.
type AuditLog interface {
	Append(ctx context.Context, entry *repository.AuditEntry) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]*repository.AuditEntry, error)
}

// Event is one committed state transition, dispatched to audit + notification.
type Event struct {
	Type         string         `json:"type"`
	EntityType   string         `json:"entity_type"`
	EntityID     string         `json:"entity_id"`
	Actor        string         `json:"actor"`
	StatusBefore string         `json:"status_before,omitempty"`
	StatusAfter  string         `json:"status_after,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// dispatchEvent records the event in the audit log and publishes it. Both are
// best-effort; failures are logged and swallowed.
func dispatchEvent(ctx context.Context, log zerolog.Logger, audit AuditLog, notifier Notifier, ev Event) {
	var before, after *string
	if ev.StatusBefore != "" {
		before = &ev.StatusBefore
	}
	if ev.StatusAfter != "" {
		after = &ev.StatusAfter
	}

	if audit != nil {
		entry := &repository.AuditEntry{
			EntityType:   ev.EntityType,
			EntityID:     ev.EntityID,
			Action:       ev.Type,
			PerformedBy:  ev.Actor,
			StatusBefore: before,
			StatusAfter:  after,
			Metadata:     ev.Metadata,
		}
		if err := audit.Append(ctx, entry); err != nil {
			log.Warn().Err(err).
				Str("entity_id", ev.EntityID).
				Str("action", ev.Type).
				Msg("Failed to write audit log entry")
		}
	}

	if notifier != nil {
		if err := notifier.Publish(ctx, ev.Type, ev); err != nil {
			log.Warn().Err(err).
				Str("entity_id", ev.EntityID).
				Str("event_type", ev.Type).
				Msg("Failed to publish notification (non-fatal)")
		}
	}
}
