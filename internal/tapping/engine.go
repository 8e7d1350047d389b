// Package tapping folds client-reported tap batches into the ledger.
package tapping

import (
	"context"
	"log/slog"
	"time"

	"github.com/misbot/backend/internal/apperr"
	"github.com/misbot/backend/internal/models"
)

// Ledger is the part of ledger.Service the engine uses.
type Ledger interface {
	ApplyTapDelta(ctx context.Context, id int64, count int) (*models.Account, error)
}

// AuditLog receives one entry per accepted batch.
type AuditLog interface {
	Append(ctx context.Context, e *models.TapAuditEntry) error
}

type TapResult struct {
	Points int64 `json:"points"`
	Energy int   `json:"energy"`
}

type Engine struct {
	ledger   Ledger
	audit    AuditLog
	maxBatch int
	logger   *slog.Logger
}

func NewEngine(ledger Ledger, audit AuditLog, maxBatch int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{ledger: ledger, audit: audit, maxBatch: maxBatch, logger: logger}
}

// RecordTaps applies claimedCount taps. The count must be in 1..maxBatch.
// Energy is the authoritative bound; the audit append is best-effort.
func (e *Engine) RecordTaps(ctx context.Context, accountID int64, claimedCount int) (TapResult, error) {
	if claimedCount < 1 || claimedCount > e.maxBatch {
		return TapResult{}, apperr.New(apperr.CodeInvalidInput,
			"tap count must be between 1 and %d", e.maxBatch)
	}
	acc, err := e.ledger.ApplyTapDelta(ctx, accountID, claimedCount)
	if err != nil {
		return TapResult{}, err
	}

	at := time.Now().UTC()
	if acc.LastTapAt != nil {
		at = acc.LastTapAt.UTC()
	}
	entry := &models.TapAuditEntry{AccountID: accountID, TapCount: claimedCount, CreatedAt: at}
	if e.audit != nil {
		if err := e.audit.Append(ctx, entry); err != nil {
			e.logger.Warn("tap audit append failed", "account_id", accountID, "tap_count", claimedCount, "error", err)
		}
	}
	return TapResult{Points: acc.Points, Energy: acc.Energy}, nil
}
