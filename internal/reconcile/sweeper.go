// Package reconcile resolves reward claims left pending, e.g. when the
// process died between the payout call and settlement.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/misbot/backend/internal/models"
	"github.com/misbot/backend/internal/payout"
	"github.com/misbot/backend/internal/rewards"
)

const (
	DefaultBatchSize = 100
	DeadlineDetail   = "payout not confirmed before deadline"
)

// ClaimStore is the subset of the claim repository the sweep needs.
type ClaimStore interface {
	rewards.Completer
	ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]*models.RewardClaim, error)
	Fail(ctx context.Context, id uuid.UUID, detail string, at time.Time) error
}

type Result struct {
	Completed int
	Failed    int
	Skipped   int
}

type Sweeper struct {
	pool       rewards.TxBeginner
	ledger     rewards.Debiter
	claims     ClaimStore
	lookup     payout.Lookuper
	staleAfter time.Duration
	batchSize  int
	logger     *slog.Logger
	now        func() time.Time
}

// NewSweeper builds a sweeper. lookup may be nil, in which case every stale
// claim is failed.
func NewSweeper(pool rewards.TxBeginner, ledger rewards.Debiter, claims ClaimStore, lookup payout.Lookuper, staleAfter time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		pool:       pool,
		ledger:     ledger,
		claims:     claims,
		lookup:     lookup,
		staleAfter: staleAfter,
		batchSize:  DefaultBatchSize,
		logger:     logger,
		now:        time.Now,
	}
}

// Sweep handles one batch of claims pending for longer than staleAfter.
// A confirmed payout is settled; an unknown or rejected one is failed; a
// claim the gateway still reports in flight, or that could not be looked up,
// is left for the next run.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	var res Result
	cutoff := s.now().Add(-s.staleAfter)
	stale, err := s.claims.ListPendingBefore(ctx, cutoff, s.batchSize)
	if err != nil {
		return res, fmt.Errorf("list stale claims: %w", err)
	}
	for _, c := range stale {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		switch s.resolve(ctx, c) {
		case models.ClaimStatusCompleted:
			res.Completed++
		case models.ClaimStatusFailed:
			res.Failed++
		default:
			res.Skipped++
		}
	}
	if len(stale) > 0 {
		s.logger.Info("claim sweep finished", "completed", res.Completed, "failed", res.Failed, "skipped", res.Skipped)
	}
	return res, nil
}

func (s *Sweeper) resolve(ctx context.Context, c *models.RewardClaim) string {
	log := s.logger.With("claim_id", c.ID, "account_id", c.AccountID)
	if s.lookup == nil {
		return s.fail(ctx, log, c, DeadlineDetail)
	}

	receipt, err := s.lookup.Lookup(ctx, c.ID)
	switch {
	case errors.Is(err, payout.ErrUnknownReference):
		return s.fail(ctx, log, c, DeadlineDetail)
	case err != nil:
		log.Warn("payout lookup failed, will retry", "error", err)
		return models.ClaimStatusPending
	}

	switch receipt.Status {
	case payout.StatusConfirmed:
		if err := rewards.Settle(ctx, s.pool, s.ledger, s.claims, c, receipt.TxRef, s.now().UTC()); err != nil {
			log.Error("confirmed payout could not be settled", "tx_ref", receipt.TxRef, "error", err)
			return models.ClaimStatusPending
		}
		log.Info("stale claim settled", "tx_ref", receipt.TxRef)
		return models.ClaimStatusCompleted
	case payout.StatusFailed:
		detail := receipt.Error
		if detail == "" {
			detail = "payout rejected by gateway"
		}
		return s.fail(ctx, log, c, detail)
	default:
		return models.ClaimStatusPending
	}
}

func (s *Sweeper) fail(ctx context.Context, log *slog.Logger, c *models.RewardClaim, detail string) string {
	if err := s.claims.Fail(ctx, c.ID, detail, s.now().UTC()); err != nil {
		log.Error("failed to mark stale claim failed", "error", err)
		return models.ClaimStatusPending
	}
	log.Warn("stale claim failed", "detail", detail)
	return models.ClaimStatusFailed
}
