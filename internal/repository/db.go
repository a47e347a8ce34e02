// Package repository implements pgx-backed persistence for approval requests,
// variations, quotes, credit checks, audit entries and communications.
//
// All state transitions run as a single atomic read-modify-write: the row is
// locked (SELECT ... FOR UPDATE), policy is applied to the in-memory struct,
// and the full row is written back before commit. Concurrent transitions on
// the same entity therefore serialize; the loser observes the committed state.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sfg-nexus/be-approvals/internal/apperrors"
)

// DB is the subset of pgxpool.Pool the repositories need. pgxmock satisfies
// it, which is what the repository tests run against.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// inTransaction runs fn inside a transaction, committing on success and
// rolling back on error.
func inTransaction(ctx context.Context, db DB, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "begin transaction")
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "commit transaction")
	}
	return nil
}
