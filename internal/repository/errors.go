package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrConditionFailed is returned when a guarded UPDATE matched no row
	// (insufficient energy/points, claim no longer pending).
	ErrConditionFailed = errors.New("update condition not met")
	// ErrConflict is returned on a unique-constraint violation.
	ErrConflict = errors.New("unique constraint violated")
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so methods can run
// standalone or inside the caller's transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func noRows(err error, mapped error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return mapped
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
