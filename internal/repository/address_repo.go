package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/misbot/backend/internal/models"
)

type AddressRepo struct {
	pool *pgxpool.Pool
}

func NewAddressRepo(pool *pgxpool.Pool) *AddressRepo {
	return &AddressRepo{pool: pool}
}

// Upsert links address to (account, chain); re-linking overwrites.
func (r *AddressRepo) Upsert(ctx context.Context, a *models.LinkedAddress) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO linked_addresses (telegram_id, chain, address)
		VALUES ($1, $2, $3)
		ON CONFLICT (telegram_id, chain) DO UPDATE SET address = EXCLUDED.address, updated_at = now()
		RETURNING updated_at
	`, a.AccountID, a.Chain, a.Address).Scan(&a.UpdatedAt)
}

func (r *AddressRepo) Get(ctx context.Context, accountID int64, chain models.Chain) (*models.LinkedAddress, error) {
	a := models.LinkedAddress{AccountID: accountID}
	err := r.pool.QueryRow(ctx, `
		SELECT chain, address, updated_at FROM linked_addresses
		WHERE telegram_id = $1 AND chain = $2
	`, accountID, chain).Scan(&a.Chain, &a.Address, &a.UpdatedAt)
	if err != nil {
		return nil, noRows(err, ErrNotFound)
	}
	return &a, nil
}

func (r *AddressRepo) ListByAccount(ctx context.Context, accountID int64) ([]*models.LinkedAddress, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT chain, address, updated_at FROM linked_addresses
		WHERE telegram_id = $1 ORDER BY chain
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.LinkedAddress
	for rows.Next() {
		a := models.LinkedAddress{AccountID: accountID}
		if err := rows.Scan(&a.Chain, &a.Address, &a.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &a)
	}
	return list, rows.Err()
}
