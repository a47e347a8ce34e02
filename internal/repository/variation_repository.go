package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sfg-nexus/be-approvals/internal/apperrors"
)

const variationColumns = `id, variation_number, quote_id, job_id, customer_id,
       variation_type, description, reason,
       original_value, variation_value, total_new_value,
       approval_status, requires_customer_approval, requires_internal_approval,
       customer_approved, customer_approved_at, customer_approved_by, customer_notes,
       internal_approved, internal_approved_at, internal_approved_by, internal_notes,
       rejected_track, rejected_by, rejected_at, rejection_reason,
       implemented, implemented_at, implemented_by,
       revised_quote_generated, initial_notes,
       created_at, updated_at`

// VariationRepository persists variations and applies their quote-side
// effects. Creation and every transition run in a single transaction.
type VariationRepository struct {
	db DB
}

// NewVariationRepository creates a new VariationRepository.
func NewVariationRepository(db DB) *VariationRepository {
	return &VariationRepository{db: db}
}

// Create allocates the variation number from the parent quote's sequence and
// inserts the variation, all in one transaction. The sequence bump is a
// database-side compare-and-increment (UPDATE ... RETURNING), so two
// concurrent creations against the same quote can never collide on a number.
func (r *VariationRepository) Create(ctx context.Context, v *Variation) error {
	return inTransaction(ctx, r.db, func(tx pgx.Tx) error {
		seqQuery := `
			UPDATE quotes
			SET variation_seq             = variation_seq + 1,
			    has_variations            = TRUE,
			    variations_value          = variations_value + $2,
			    variation_approval_status = $3,
			    updated_at                = NOW()
			WHERE id = $1
			RETURNING quote_number, variation_seq
		`

		var (
			quoteNumber string
			seq         int
		)
		err := tx.QueryRow(ctx, seqQuery, v.QuoteID, v.VariationValue, string(VariationPending)).
			Scan(&quoteNumber, &seq)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("quote", v.QuoteID)
		}
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "allocate variation number")
		}

		v.ID = uuid.NewString()
		v.VariationNumber = fmt.Sprintf("%s-VAR%03d", quoteNumber, seq)

		insert := `
			INSERT INTO variations
			    (id, variation_number, quote_id, job_id, customer_id,
			     variation_type, description, reason,
			     original_value, variation_value, total_new_value,
			     approval_status, requires_customer_approval, requires_internal_approval,
			     initial_notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING created_at, updated_at
		`
		err = tx.QueryRow(ctx, insert,
			v.ID,
			v.VariationNumber,
			v.QuoteID,
			v.JobID,
			v.CustomerID,
			v.VariationType,
			v.Description,
			v.Reason,
			v.OriginalValue,
			v.VariationValue,
			v.TotalNewValue,
			v.ApprovalStatus,
			v.RequiresCustomerApproval,
			v.RequiresInternalApproval,
			v.InitialNotes,
		).Scan(&v.CreatedAt, &v.UpdatedAt)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "create variation")
		}
		return nil
	})
}

// GetByID retrieves a variation by its primary key.
func (r *VariationRepository) GetByID(ctx context.Context, id string) (*Variation, error) {
	query := `SELECT ` + variationColumns + ` FROM variations WHERE id = $1`

	v, err := scanVariation(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("variation", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "get variation")
	}
	return v, nil
}

// List returns variations matching the filter, newest first.
func (r *VariationRepository) List(ctx context.Context, f VariationFilter) ([]*Variation, error) {
	var (
		conds []string
		args  []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if f.QuoteID != nil {
		add("quote_id", *f.QuoteID)
	}
	if f.CustomerID != nil {
		add("customer_id", *f.CustomerID)
	}
	if f.Status != nil {
		add("approval_status", *f.Status)
	}

	query := `SELECT ` + variationColumns + ` FROM variations`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "list variations")
	}
	defer rows.Close()

	var out []*Variation
	for rows.Next() {
		v, err := scanVariation(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "scan variation")
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Transition applies mutate to the variation under a row lock and writes it
// back in the same transaction. When mutate reports propagate=true the parent
// quote's live value is revised inside that transaction as well, so the
// revised-quote flag claim and the value write commit or roll back together.
// The quote mirrors the variation approval status on every transition.
func (r *VariationRepository) Transition(ctx context.Context, id string, mutate func(*Variation) (propagate bool, err error)) (*Variation, error) {
	var v *Variation

	err := inTransaction(ctx, r.db, func(tx pgx.Tx) error {
		query := `SELECT ` + variationColumns + ` FROM variations WHERE id = $1 FOR UPDATE`

		var err error
		v, err = scanVariation(tx.QueryRow(ctx, query, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("variation", id)
		}
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "lock variation")
		}

		propagate, err := mutate(v)
		if err != nil {
			return err
		}

		update := `
			UPDATE variations
			SET approval_status         = $2,
			    customer_approved       = $3,
			    customer_approved_at    = $4,
			    customer_approved_by    = $5,
			    customer_notes          = $6,
			    internal_approved       = $7,
			    internal_approved_at    = $8,
			    internal_approved_by    = $9,
			    internal_notes          = $10,
			    rejected_track          = $11,
			    rejected_by             = $12,
			    rejected_at             = $13,
			    rejection_reason        = $14,
			    implemented             = $15,
			    implemented_at          = $16,
			    implemented_by          = $17,
			    revised_quote_generated = $18,
			    updated_at              = NOW()
			WHERE id = $1
			RETURNING updated_at
		`
		err = tx.QueryRow(ctx, update,
			v.ID,
			v.ApprovalStatus,
			v.CustomerApproved,
			v.CustomerApprovedAt,
			v.CustomerApprovedBy,
			v.CustomerNotes,
			v.InternalApproved,
			v.InternalApprovedAt,
			v.InternalApprovedBy,
			v.InternalNotes,
			v.RejectedTrack,
			v.RejectedBy,
			v.RejectedAt,
			v.RejectionReason,
			v.Implemented,
			v.ImplementedAt,
			v.ImplementedBy,
			v.RevisedQuoteGenerated,
		).Scan(&v.UpdatedAt)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "update variation")
		}

		mirror := `
			UPDATE quotes
			SET variation_approval_status = $2,
			    updated_at                = NOW()
			WHERE id = $1
		`
		if _, err := tx.Exec(ctx, mirror, v.QuoteID, string(v.ApprovalStatus)); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "mirror variation status to quote")
		}

		if propagate {
			revise := `
				UPDATE quotes
				SET value         = $2,
				    revised_price = $2,
				    revision      = revision + 1,
				    updated_at    = NOW()
				WHERE id = $1
			`
			if _, err := tx.Exec(ctx, revise, v.QuoteID, v.TotalNewValue); err != nil {
				return apperrors.Wrap(err, apperrors.CodeInternal, "apply revised quote value")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ── scan helper ───────────────────────────────────────────────────────────────

func scanVariation(row rowScanner) (*Variation, error) {
	v := &Variation{}
	err := row.Scan(
		&v.ID,
		&v.VariationNumber,
		&v.QuoteID,
		&v.JobID,
		&v.CustomerID,
		&v.VariationType,
		&v.Description,
		&v.Reason,
		&v.OriginalValue,
		&v.VariationValue,
		&v.TotalNewValue,
		&v.ApprovalStatus,
		&v.RequiresCustomerApproval,
		&v.RequiresInternalApproval,
		&v.CustomerApproved,
		&v.CustomerApprovedAt,
		&v.CustomerApprovedBy,
		&v.CustomerNotes,
		&v.InternalApproved,
		&v.InternalApprovedAt,
		&v.InternalApprovedBy,
		&v.InternalNotes,
		&v.RejectedTrack,
		&v.RejectedBy,
		&v.RejectedAt,
		&v.RejectionReason,
		&v.Implemented,
		&v.ImplementedAt,
		&v.ImplementedBy,
		&v.RevisedQuoteGenerated,
		&v.InitialNotes,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}
