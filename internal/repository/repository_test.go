package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/misbot/backend/internal/models"
	"github.com/misbot/backend/internal/store"
)

// testPool connects to TEST_DATABASE_URL and skips when it is unset or
// unreachable.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("postgres not available: %v", err)
	}
	require.NoError(t, store.Migrate(ctx, pool))
	t.Cleanup(pool.Close)
	return pool
}

func seedAccount(t *testing.T, pool *pgxpool.Pool, points int64, energy int) int64 {
	t.Helper()
	id := time.Now().UnixNano()
	repo := NewAccountRepo(pool)
	require.NoError(t, repo.InsertIfAbsent(context.Background(), &models.Account{ID: id, DisplayName: "it", Points: points, Energy: energy}))
	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = pool.Exec(ctx, `DELETE FROM reward_claims WHERE telegram_id = $1`, id)
		_, _ = pool.Exec(ctx, `DELETE FROM linked_addresses WHERE telegram_id = $1`, id)
		_, _ = pool.Exec(ctx, `DELETE FROM accounts WHERE telegram_id = $1`, id)
	})
	return id
}

func TestAccountRepo_ConcurrentTapsNeverOverdraw(t *testing.T) {
	pool := testPool(t)
	repo := NewAccountRepo(pool)
	id := seedAccount(t, pool, 0, 1000)

	var ok, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.ApplyTapDelta(context.Background(), id, 100, time.Now())
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrConditionFailed):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 10, ok.Load())
	assert.EqualValues(t, 10, rejected.Load())
	acc, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, acc.Points)
	assert.Zero(t, acc.Energy)
}

func TestAccountRepo_InsertIfAbsentKeepsFirstRow(t *testing.T) {
	pool := testPool(t)
	repo := NewAccountRepo(pool)
	id := seedAccount(t, pool, 7, 1000)

	require.NoError(t, repo.InsertIfAbsent(context.Background(), &models.Account{ID: id, DisplayName: "other", Energy: 1}))
	acc, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "it", acc.DisplayName)
	assert.EqualValues(t, 7, acc.Points)
}

func TestAccountRepo_DebitGuard(t *testing.T) {
	pool := testPool(t)
	repo := NewAccountRepo(pool)
	id := seedAccount(t, pool, 500, 1000)

	_, err := repo.DebitPoints(context.Background(), nil, id, 501)
	assert.ErrorIs(t, err, ErrConditionFailed)

	acc, err := repo.DebitPoints(context.Background(), nil, id, 500)
	require.NoError(t, err)
	assert.Zero(t, acc.Points)
}

func TestClaimRepo_OnePendingPerAccount(t *testing.T) {
	pool := testPool(t)
	claims := NewClaimRepo(pool)
	id := seedAccount(t, pool, 5000, 1000)
	ctx := context.Background()

	newClaim := func() *models.RewardClaim {
		return &models.RewardClaim{
			ID:            uuid.New(),
			AccountID:     id,
			Kind:          models.RewardKindToken,
			Chain:         models.ChainTON,
			PayoutAddress: "EQit",
			PointsSpent:   1000,
			RewardAmount:  decimal.RequireFromString("1.000000001"),
		}
	}

	first := newClaim()
	require.NoError(t, claims.CreatePending(ctx, first))
	assert.Equal(t, models.ClaimStatusPending, first.Status)
	assert.ErrorIs(t, claims.CreatePending(ctx, newClaim()), ErrConflict)

	require.NoError(t, claims.Complete(ctx, nil, first.ID, "tx-it", time.Now()))
	assert.ErrorIs(t, claims.Complete(ctx, nil, first.ID, "tx-again", time.Now()), ErrConditionFailed)
	assert.ErrorIs(t, claims.Fail(ctx, first.ID, "late", time.Now()), ErrConditionFailed)

	got, err := claims.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusCompleted, got.Status)
	assert.True(t, got.RewardAmount.Equal(decimal.RequireFromString("1.000000001")))

	require.NoError(t, claims.CreatePending(ctx, newClaim()))
}

func TestAddressRepo_UpsertReplaces(t *testing.T) {
	pool := testPool(t)
	addrs := NewAddressRepo(pool)
	id := seedAccount(t, pool, 0, 1000)
	ctx := context.Background()

	require.NoError(t, addrs.Upsert(ctx, &models.LinkedAddress{AccountID: id, Chain: models.ChainTON, Address: "EQold"}))
	require.NoError(t, addrs.Upsert(ctx, &models.LinkedAddress{AccountID: id, Chain: models.ChainTON, Address: "EQnew"}))

	got, err := addrs.Get(ctx, id, models.ChainTON)
	require.NoError(t, err)
	assert.Equal(t, "EQnew", got.Address)

	list, err := addrs.ListByAccount(ctx, id)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
