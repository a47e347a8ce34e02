package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sfg-nexus/be-approvals/internal/apperrors"
)

const quoteColumns = `id, quote_number, customer_id, project_name,
       value, revised_price, revision,
       has_variations, variations_value, variation_seq, variation_approval_status,
       created_at, updated_at`

// QuoteRepository persists the parent quotes variations are raised against.
// Value revision happens inside the variation transaction (see
// VariationRepository.Transition); this repository only creates and reads.
type QuoteRepository struct {
	db DB
}

// NewQuoteRepository creates a new QuoteRepository.
func NewQuoteRepository(db DB) *QuoteRepository {
	return &QuoteRepository{db: db}
}

// Create inserts a quote with a zeroed variation sequence.
func (r *QuoteRepository) Create(ctx context.Context, q *Quote) error {
	q.ID = uuid.NewString()

	query := `
		INSERT INTO quotes (id, quote_number, customer_id, project_name, value)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING revision, variation_seq, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		q.ID,
		q.QuoteNumber,
		q.CustomerID,
		q.ProjectName,
		q.Value,
	).Scan(&q.Revision, &q.VariationSeq, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "create quote")
	}
	return nil
}

// GetByID retrieves a quote by its primary key.
func (r *QuoteRepository) GetByID(ctx context.Context, id string) (*Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE id = $1`

	q := &Quote{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&q.ID,
		&q.QuoteNumber,
		&q.CustomerID,
		&q.ProjectName,
		&q.Value,
		&q.RevisedPrice,
		&q.Revision,
		&q.HasVariations,
		&q.VariationsValue,
		&q.VariationSeq,
		&q.VariationApprovalStatus,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("quote", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "get quote")
	}
	return q, nil
}
