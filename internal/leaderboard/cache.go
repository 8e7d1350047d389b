// Package leaderboard serves a short-lived snapshot of the top accounts and
// a live rank for the caller.
package leaderboard

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/misbot/backend/internal/apperr"
	"github.com/misbot/backend/internal/models"
	"github.com/misbot/backend/internal/repository"
)

// RefreshFunc loads the top limit accounts by points, highest first.
type RefreshFunc func(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)

type snapshot struct {
	entries []models.LeaderboardEntry
	takenAt time.Time
}

// Cache holds one snapshot behind an atomic pointer. Concurrent refreshes may
// race; the last one stored wins, and all of them ran the same query.
type Cache struct {
	size    int
	ttl     time.Duration
	refresh RefreshFunc
	now     func() time.Time
	logger  *slog.Logger
	snap    atomic.Pointer[snapshot]
}

func NewCache(size int, ttl time.Duration, refresh RefreshFunc, now func() time.Time, logger *slog.Logger) *Cache {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{size: size, ttl: ttl, refresh: refresh, now: now, logger: logger}
}

// TopN returns the first n entries of the snapshot, refreshing it when older
// than the TTL. n outside 1..size means size. A failed refresh falls back to
// the previous snapshot when there is one.
func (c *Cache) TopN(ctx context.Context, n int) ([]models.LeaderboardEntry, error) {
	if n <= 0 || n > c.size {
		n = c.size
	}
	cur := c.snap.Load()
	now := c.now()
	if cur == nil || now.Sub(cur.takenAt) > c.ttl {
		entries, err := c.refresh(ctx, c.size)
		if err != nil {
			if cur == nil {
				return nil, apperr.Store(err, "load leaderboard")
			}
			c.logger.Warn("leaderboard refresh failed, serving stale snapshot", "age", now.Sub(cur.takenAt), "error", err)
		} else {
			cur = &snapshot{entries: entries, takenAt: now}
			c.snap.Store(cur)
		}
	}
	if n > len(cur.entries) {
		n = len(cur.entries)
	}
	out := make([]models.LeaderboardEntry, n)
	copy(out, cur.entries[:n])
	return out, nil
}

// RankStore reads live balances.
type RankStore interface {
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	CountWithMorePoints(ctx context.Context, points int64) (int64, error)
}

type Standing struct {
	Rank   int64 `json:"rank"`
	Points int64 `json:"points"`
}

// Ranker computes uncached ranks so a player sees their own progress at once.
type Ranker struct {
	store RankStore
}

func NewRanker(store RankStore) *Ranker {
	return &Ranker{store: store}
}

// Rank is 1 + the number of accounts with strictly more points. Accounts with
// equal points share a rank.
func (r *Ranker) Rank(ctx context.Context, accountID int64) (Standing, error) {
	acc, err := r.store.GetByID(ctx, accountID)
	if errors.Is(err, repository.ErrNotFound) {
		return Standing{}, apperr.New(apperr.CodeNotFound, "account not found")
	}
	if err != nil {
		return Standing{}, apperr.Store(err, "get account")
	}
	ahead, err := r.store.CountWithMorePoints(ctx, acc.Points)
	if err != nil {
		return Standing{}, apperr.Store(err, "count ranks")
	}
	return Standing{Rank: ahead + 1, Points: acc.Points}, nil
}
