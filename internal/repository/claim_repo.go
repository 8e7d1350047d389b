package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/misbot/backend/internal/models"
)

const claimColumns = `id, telegram_id, reward_kind, chain, payout_address, points_spent, reward_amount::text,
	status, tx_ref, error_detail, created_at, resolved_at`

type ClaimRepo struct {
	pool *pgxpool.Pool
}

func NewClaimRepo(pool *pgxpool.Pool) *ClaimRepo {
	return &ClaimRepo{pool: pool}
}

func (r *ClaimRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *ClaimRepo) q(tx pgx.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.pool
}

func scanClaim(row pgx.Row) (*models.RewardClaim, error) {
	var c models.RewardClaim
	err := row.Scan(&c.ID, &c.AccountID, &c.Kind, &c.Chain, &c.PayoutAddress, &c.PointsSpent, &c.RewardAmount,
		&c.Status, &c.TxRef, &c.ErrorDetail, &c.CreatedAt, &c.ResolvedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func collectClaims(rows pgx.Rows) ([]*models.RewardClaim, error) {
	defer rows.Close()
	var list []*models.RewardClaim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// CreatePending records the durable intent before any payout is attempted.
// Returns ErrConflict when the account already has a pending claim.
func (r *ClaimRepo) CreatePending(ctx context.Context, c *models.RewardClaim) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO reward_claims (id, telegram_id, reward_kind, chain, payout_address, points_spent, reward_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, 'pending')
		RETURNING status, created_at
	`, c.ID, c.AccountID, c.Kind, c.Chain, c.PayoutAddress, c.PointsSpent, c.RewardAmount.String()).Scan(&c.Status, &c.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// Complete moves a pending claim to completed. Runs inside tx when given.
func (r *ClaimRepo) Complete(ctx context.Context, tx pgx.Tx, id uuid.UUID, txRef string, at time.Time) error {
	tag, err := r.q(tx).Exec(ctx, `
		UPDATE reward_claims SET status = 'completed', tx_ref = $1, resolved_at = $2
		WHERE id = $3 AND status = 'pending'
	`, txRef, at, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConditionFailed
	}
	return nil
}

// Fail moves a pending claim to failed with the error detail.
func (r *ClaimRepo) Fail(ctx context.Context, id uuid.UUID, detail string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reward_claims SET status = 'failed', error_detail = $1, resolved_at = $2
		WHERE id = $3 AND status = 'pending'
	`, detail, at, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConditionFailed
	}
	return nil
}

func (r *ClaimRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.RewardClaim, error) {
	c, err := scanClaim(r.pool.QueryRow(ctx, `SELECT `+claimColumns+` FROM reward_claims WHERE id = $1`, id))
	if err != nil {
		return nil, noRows(err, ErrNotFound)
	}
	return c, nil
}

// LastCompletedSince returns the newest completed claim of the kind created
// at or after since, or ErrNotFound.
func (r *ClaimRepo) LastCompletedSince(ctx context.Context, accountID int64, kind models.RewardKind, since time.Time) (*models.RewardClaim, error) {
	c, err := scanClaim(r.pool.QueryRow(ctx, `
		SELECT `+claimColumns+` FROM reward_claims
		WHERE telegram_id = $1 AND reward_kind = $2 AND status = 'completed' AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT 1
	`, accountID, kind, since))
	if err != nil {
		return nil, noRows(err, ErrNotFound)
	}
	return c, nil
}

func (r *ClaimRepo) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*models.RewardClaim, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+claimColumns+` FROM reward_claims
		WHERE telegram_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	return collectClaims(rows)
}

// ListPendingBefore returns pending claims created before the cutoff, oldest first.
func (r *ClaimRepo) ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]*models.RewardClaim, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+claimColumns+` FROM reward_claims
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, err
	}
	return collectClaims(rows)
}
