package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/misbot/backend/internal/models"
)

const accountColumns = `telegram_id, display_name, points, energy, last_tap_at, created_at, updated_at`

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

func (r *AccountRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *AccountRepo) q(tx pgx.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.pool
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	if err := row.Scan(&a.ID, &a.DisplayName, &a.Points, &a.Energy, &a.LastTapAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE telegram_id = $1
	`, id))
	if err != nil {
		return nil, noRows(err, ErrNotFound)
	}
	return a, nil
}

// InsertIfAbsent creates the account unless a row with the same telegram_id
// already exists. Concurrent first contacts collapse onto one row.
func (r *AccountRepo) InsertIfAbsent(ctx context.Context, a *models.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (telegram_id, display_name, points, energy)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (telegram_id) DO NOTHING
	`, a.ID, a.DisplayName, a.Points, a.Energy)
	return err
}

// ApplyTapDelta atomically adds count to points and removes it from energy
// when energy >= count. Returns ErrConditionFailed when the guard rejects it.
func (r *AccountRepo) ApplyTapDelta(ctx context.Context, id int64, count int, at time.Time) (*models.Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx, `
		UPDATE accounts
		SET points = points + $1, energy = energy - $1, last_tap_at = $3, updated_at = now()
		WHERE telegram_id = $2 AND energy >= $1
		RETURNING `+accountColumns+`
	`, count, id, at))
	if err != nil {
		return nil, noRows(err, ErrConditionFailed)
	}
	return a, nil
}

// DebitPoints atomically deducts amount if points >= amount. Runs inside tx
// when one is given.
func (r *AccountRepo) DebitPoints(ctx context.Context, tx pgx.Tx, id int64, amount int64) (*models.Account, error) {
	a, err := scanAccount(r.q(tx).QueryRow(ctx, `
		UPDATE accounts
		SET points = points - $1, updated_at = now()
		WHERE telegram_id = $2 AND points >= $1
		RETURNING `+accountColumns+`
	`, amount, id))
	if err != nil {
		return nil, noRows(err, ErrConditionFailed)
	}
	return a, nil
}

func (r *AccountRepo) UpdateDisplayName(ctx context.Context, id int64, name string) (*models.Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx, `
		UPDATE accounts SET display_name = $1, updated_at = now()
		WHERE telegram_id = $2
		RETURNING `+accountColumns+`
	`, name, id))
	if err != nil {
		return nil, noRows(err, ErrNotFound)
	}
	return a, nil
}

// TopByPoints returns the highest balances, ties broken by account age.
func (r *AccountRepo) TopByPoints(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT display_name, points FROM accounts
		ORDER BY points DESC, created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]models.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.DisplayName, &e.Points); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// CountWithMorePoints counts accounts strictly ahead of the given balance.
func (r *AccountRepo) CountWithMorePoints(ctx context.Context, points int64) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE points > $1`, points).Scan(&n)
	return n, err
}
