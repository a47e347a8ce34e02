package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sfg-nexus/be-approvals/internal/apperrors"
)

const approvalColumns = `id, approval_type, entity_type, entity_id, stage, status, priority,
       requires_second_approval, can_self_approve, mandatory_approval,
       requested_by, requested_at, request_notes,
       first_approved_by, first_approved_at, first_approval_notes,
       approved_by, approved_at, approval_notes,
       rejected_by, rejected_at, rejection_reason,
       created_at, updated_at`

// ApprovalRepository persists generic approval requests.
type ApprovalRepository struct {
	db DB
}

// NewApprovalRepository creates a new ApprovalRepository.
func NewApprovalRepository(db DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// Create inserts a new approval request. The ID is allocated here; timestamps
// come back from the database.
func (r *ApprovalRepository) Create(ctx context.Context, a *ApprovalRequest) error {
	a.ID = uuid.NewString()

	query := `
		INSERT INTO approval_requests
		    (id, approval_type, entity_type, entity_id, stage, status, priority,
		     requires_second_approval, can_self_approve, mandatory_approval,
		     requested_by, request_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING requested_at, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		a.ID,
		a.ApprovalType,
		a.EntityType,
		a.EntityID,
		a.Stage,
		a.Status,
		a.Priority,
		a.RequiresSecondApproval,
		a.CanSelfApprove,
		a.MandatoryApproval,
		a.RequestedBy,
		a.RequestNotes,
	).Scan(&a.RequestedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		// The partial unique index on open requests catches the race the
		// service-level FindOpen guard cannot.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.Newf(apperrors.CodeInvalidState,
				"an open %s request already exists for %s %s",
				a.ApprovalType, a.EntityType, a.EntityID)
		}
		return apperrors.Wrap(err, apperrors.CodeInternal, "create approval request")
	}
	return nil
}

// GetByID retrieves an approval request by its primary key.
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_requests WHERE id = $1`

	a, err := scanApproval(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("approval request", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "get approval request")
	}
	return a, nil
}

// FindOpen returns the most recent non-terminal request for an entity and
// approval type, or nil when none exists.
func (r *ApprovalRepository) FindOpen(ctx context.Context, entityType, entityID, approvalType string) (*ApprovalRequest, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM approval_requests
		WHERE entity_type = $1 AND entity_id = $2 AND approval_type = $3
		  AND status IN ('PENDING', 'REQUIRES_SECOND_APPROVAL')
		ORDER BY requested_at DESC
		LIMIT 1
	`

	a, err := scanApproval(r.db.QueryRow(ctx, query, entityType, entityID, approvalType))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "find open approval request")
	}
	return a, nil
}

// List returns approval requests matching the filter, newest first.
func (r *ApprovalRepository) List(ctx context.Context, f ApprovalFilter) ([]*ApprovalRequest, error) {
	var (
		conds []string
		args  []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if f.EntityType != nil {
		add("entity_type", *f.EntityType)
	}
	if f.EntityID != nil {
		add("entity_id", *f.EntityID)
	}
	if f.ApprovalType != nil {
		add("approval_type", *f.ApprovalType)
	}
	if f.Status != nil {
		add("status", *f.Status)
	}

	query := `SELECT ` + approvalColumns + ` FROM approval_requests`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY requested_at DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "list approval requests")
	}
	defer rows.Close()

	var out []*ApprovalRequest
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "scan approval request")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Decide applies mutate to the request under a row lock and writes the result
// back in the same transaction. mutate sees the current committed state; any
// error it returns aborts the transaction untouched, so a transition either
// fully happens or not at all.
func (r *ApprovalRepository) Decide(ctx context.Context, id string, mutate func(*ApprovalRequest) error) (*ApprovalRequest, error) {
	var a *ApprovalRequest

	err := inTransaction(ctx, r.db, func(tx pgx.Tx) error {
		query := `SELECT ` + approvalColumns + ` FROM approval_requests WHERE id = $1 FOR UPDATE`

		var err error
		a, err = scanApproval(tx.QueryRow(ctx, query, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("approval request", id)
		}
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "lock approval request")
		}

		if err := mutate(a); err != nil {
			return err
		}

		update := `
			UPDATE approval_requests
			SET status               = $2,
			    stage                = $3,
			    first_approved_by    = $4,
			    first_approved_at    = $5,
			    first_approval_notes = $6,
			    approved_by          = $7,
			    approved_at          = $8,
			    approval_notes       = $9,
			    rejected_by          = $10,
			    rejected_at          = $11,
			    rejection_reason     = $12,
			    updated_at           = NOW()
			WHERE id = $1
			RETURNING updated_at
		`
		err = tx.QueryRow(ctx, update,
			a.ID,
			a.Status,
			a.Stage,
			a.FirstApprovedBy,
			a.FirstApprovedAt,
			a.FirstApprovalNotes,
			a.ApprovedBy,
			a.ApprovedAt,
			a.ApprovalNotes,
			a.RejectedBy,
			a.RejectedAt,
			a.RejectionReason,
		).Scan(&a.UpdatedAt)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "update approval request")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ── scan helper ───────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApproval(row rowScanner) (*ApprovalRequest, error) {
	a := &ApprovalRequest{}
	err := row.Scan(
		&a.ID,
		&a.ApprovalType,
		&a.EntityType,
		&a.EntityID,
		&a.Stage,
		&a.Status,
		&a.Priority,
		&a.RequiresSecondApproval,
		&a.CanSelfApprove,
		&a.MandatoryApproval,
		&a.RequestedBy,
		&a.RequestedAt,
		&a.RequestNotes,
		&a.FirstApprovedBy,
		&a.FirstApprovedAt,
		&a.FirstApprovalNotes,
		&a.ApprovedBy,
		&a.ApprovedAt,
		&a.ApprovalNotes,
		&a.RejectedBy,
		&a.RejectedAt,
		&a.RejectionReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}
