package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sfg-nexus/be-approvals/internal/apperrors"
)

// CreditCheckRepository persists classification runs. Snapshots are stored as
// JSONB exactly as classified; a new check supersedes, never updates.
type CreditCheckRepository struct {
	db DB
}

// NewCreditCheckRepository creates a new CreditCheckRepository.
func NewCreditCheckRepository(db DB) *CreditCheckRepository {
	return &CreditCheckRepository{db: db}
}

// Insert stores one completed credit check.
func (r *CreditCheckRepository) Insert(ctx context.Context, c *CreditCheck) error {
	c.ID = uuid.NewString()

	snapshotJSON, err := json.Marshal(c.Snapshot)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "marshal credit snapshot")
	}
	actionsJSON, err := json.Marshal(c.Assignment.RequiredActions)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "marshal required actions")
	}

	query := `
		INSERT INTO credit_checks
		    (id, customer_id, provider, snapshot, tier, tier_level, reason, required_actions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING checked_at
	`

	err = r.db.QueryRow(ctx, query,
		c.ID,
		c.CustomerID,
		c.Provider,
		snapshotJSON,
		c.Assignment.Tier,
		c.Assignment.Level,
		c.Assignment.Reason,
		actionsJSON,
	).Scan(&c.CheckedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "insert credit check")
	}
	return nil
}

// Latest returns the most recent check for a customer, or nil when the
// customer has never been checked.
func (r *CreditCheckRepository) Latest(ctx context.Context, customerID string) (*CreditCheck, error) {
	query := `
		SELECT id, customer_id, provider, snapshot, tier, tier_level, reason, required_actions, checked_at
		FROM credit_checks
		WHERE customer_id = $1
		ORDER BY checked_at DESC
		LIMIT 1
	`

	c := &CreditCheck{}
	var snapshotJSON, actionsJSON []byte
	err := r.db.QueryRow(ctx, query, customerID).Scan(
		&c.ID,
		&c.CustomerID,
		&c.Provider,
		&snapshotJSON,
		&c.Assignment.Tier,
		&c.Assignment.Level,
		&c.Assignment.Reason,
		&actionsJSON,
		&c.CheckedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "get latest credit check")
	}

	if err := json.Unmarshal(snapshotJSON, &c.Snapshot); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "unmarshal credit snapshot")
	}
	if err := json.Unmarshal(actionsJSON, &c.Assignment.RequiredActions); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "unmarshal required actions")
	}
	return c, nil
}
