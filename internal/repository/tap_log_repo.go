package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/misbot/backend/internal/models"
)

type TapLogRepo struct {
	pool *pgxpool.Pool
}

func NewTapLogRepo(pool *pgxpool.Pool) *TapLogRepo {
	return &TapLogRepo{pool: pool}
}

func (r *TapLogRepo) Append(ctx context.Context, e *models.TapAuditEntry) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO tap_audit_log (telegram_id, tap_count, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, e.AccountID, e.TapCount, e.CreatedAt).Scan(&e.ID)
}
