package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sfg-nexus/be-approvals/internal/apperrors"
	"github.com/sfg-nexus/be-approvals/internal/credit"
	"github.com/sfg-nexus/be-approvals/internal/repository"
)

// CreditCheckStore persists classification runs.
type CreditCheckStore interface {
	Insert(ctx context.Context, c *repository.CreditCheck) error
	Latest(ctx context.Context, customerID string) (*repository.CreditCheck, error)
}

// CreditService validates snapshots, runs the tier classifier and persists
// the result. Classification itself is pure; this layer owns persistence and
// staleness.
type CreditService struct {
	store    CreditCheckStore
	audit    AuditLog
	notifier Notifier
	log      zerolog.Logger
}

// NewCreditService creates a new CreditService.
func NewCreditService(store CreditCheckStore, audit AuditLog, notifier Notifier, log zerolog.Logger) *CreditService {
	return &CreditService{
		store:    store,
		audit:    audit,
		notifier: notifier,
		log:      log,
	}
}

// CheckInput is one credit check request: the customer plus the snapshot
// assembled from the external feed and our ledger aggregates.
type CheckInput struct {
	CustomerID string          `json:"customer_id"`
	Provider   string          `json:"provider"`
	Snapshot   credit.Snapshot `json:"snapshot"`
	CheckedBy  string          `json:"checked_by"`
}

// LatestResult is the most recent stored check plus its staleness verdict.
type LatestResult struct {
	Check *repository.CreditCheck `json:"check"`
	Stale bool                    `json:"stale"`
}

// Check classifies the snapshot and stores the run. The stored snapshot is
// immutable; a later check supersedes it rather than updating it.
func (s *CreditService) Check(ctx context.Context, in CheckInput) (*repository.CreditCheck, error) {
	if in.CustomerID == "" {
		return nil, apperrors.InvalidInput("customer_id", "is required")
	}
	if in.Provider == "" {
		in.Provider = "EXPERIAN"
	}
	if !in.Snapshot.RiskLevel.Valid() {
		return nil, apperrors.InvalidInput("risk_level", "must be LOW, MEDIUM, HIGH, LEGAL or INSOLVENCY")
	}
	if !in.Snapshot.PaymentTerms.Valid() {
		return nil, apperrors.InvalidInput("payment_terms", "must be NET_TERMS, PROFORMA or CASH_ON_DELIVERY")
	}
	if in.Snapshot.OnTimePaymentRatio < 0 || in.Snapshot.OnTimePaymentRatio > 1 {
		return nil, apperrors.InvalidInput("on_time_payment_ratio", "must be between 0 and 1")
	}
	if in.Snapshot.CreditLimit < 0 {
		return nil, apperrors.InvalidInput("credit_limit", "must not be negative")
	}
	if in.Snapshot.CurrentDebt < 0 {
		return nil, apperrors.InvalidInput("current_debt", "must not be negative")
	}
	if in.Snapshot.AgedReceivables45 < 0 || in.Snapshot.AgedReceivables60 < 0 {
		return nil, apperrors.InvalidInput("aged_receivables", "must not be negative")
	}
	if in.Snapshot.AvgMonthlyBilled6M < 0 || in.Snapshot.AnnualBilled < 0 || in.Snapshot.OrdersPerYear < 0 {
		return nil, apperrors.InvalidInput("billing_aggregates", "must not be negative")
	}

	assignment := credit.Classify(in.Snapshot)

	check := &repository.CreditCheck{
		CustomerID: in.CustomerID,
		Provider:   in.Provider,
		Snapshot:   in.Snapshot,
		Assignment: assignment,
	}
	if err := s.store.Insert(ctx, check); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("customer_id", in.CustomerID).
		Str("tier", string(assignment.Tier)).
		Int("level", assignment.Level).
		Str("reason", assignment.Reason).
		Msg("Credit check completed")

	dispatchEvent(ctx, s.log, s.audit, s.notifier, Event{
		Type:        "credit_check_completed",
		EntityType:  "customer",
		EntityID:    in.CustomerID,
		Actor:       in.CheckedBy,
		StatusAfter: string(assignment.Tier),
		Metadata: map[string]any{
			"check_id": check.ID,
			"tier":     assignment.Tier,
			"level":    assignment.Level,
			"reason":   assignment.Reason,
		},
	})

	return check, nil
}

// Latest returns the most recent check for a customer together with whether
// it has aged out of the validity window.
func (s *CreditService) Latest(ctx context.Context, customerID string) (*LatestResult, error) {
	if customerID == "" {
		return nil, apperrors.InvalidInput("customer_id", "is required")
	}

	check, err := s.store.Latest(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if check == nil {
		return nil, apperrors.NotFound("credit check for customer", customerID)
	}

	return &LatestResult{
		Check: check,
		Stale: time.Since(check.CheckedAt) > credit.SnapshotValidity,
	}, nil
}
