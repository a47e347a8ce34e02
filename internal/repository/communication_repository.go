package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/sfg-nexus/be-approvals/internal/apperrors"
)

// CommunicationRepository records outbound variation communications together
// with their delivery status.
type CommunicationRepository struct {
	db DB
}

// NewCommunicationRepository creates a new CommunicationRepository.
func NewCommunicationRepository(db DB) *CommunicationRepository {
	return &CommunicationRepository{db: db}
}

// Record inserts one communication with its observed delivery outcome.
func (r *CommunicationRepository) Record(ctx context.Context, c *CommunicationRecord) error {
	c.ID = uuid.NewString()

	query := `
		INSERT INTO variation_communications
		    (id, variation_id, communication_type, channel, subject, message, status, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		c.ID,
		c.VariationID,
		c.CommunicationType,
		c.Channel,
		c.Subject,
		c.Message,
		c.Status,
		c.FailureReason,
	).Scan(&c.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "record communication")
	}
	return nil
}

// ListByVariation returns all communications for a variation, newest first.
func (r *CommunicationRepository) ListByVariation(ctx context.Context, variationID string) ([]*CommunicationRecord, error) {
	query := `
		SELECT id, variation_id, communication_type, channel, subject, message,
		       status, failure_reason, created_at
		FROM variation_communications
		WHERE variation_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, variationID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "list communications")
	}
	defer rows.Close()

	var out []*CommunicationRecord
	for rows.Next() {
		c := &CommunicationRecord{}
		err := rows.Scan(
			&c.ID,
			&c.VariationID,
			&c.CommunicationType,
			&c.Channel,
			&c.Subject,
			&c.Message,
			&c.Status,
			&c.FailureReason,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "scan communication")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
