// Package rewards exchanges points for external payouts. Every claim is
// persisted as pending before the payout call and resolved exactly once.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/misbot/backend/internal/apperr"
	"github.com/misbot/backend/internal/models"
	"github.com/misbot/backend/internal/payout"
	"github.com/misbot/backend/internal/repository"
)

const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 50
)

// Ledger is the part of ledger.Service the engine uses.
type Ledger interface {
	Get(ctx context.Context, id int64) (*models.Account, error)
	DebitPointsTx(ctx context.Context, tx pgx.Tx, id int64, amount int64) (*models.Account, error)
}

// ClaimStore persists reward claims.
type ClaimStore interface {
	CreatePending(ctx context.Context, c *models.RewardClaim) error
	Complete(ctx context.Context, tx pgx.Tx, id uuid.UUID, txRef string, at time.Time) error
	Fail(ctx context.Context, id uuid.UUID, detail string, at time.Time) error
	LastCompletedSince(ctx context.Context, accountID int64, kind models.RewardKind, since time.Time) (*models.RewardClaim, error)
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]*models.RewardClaim, error)
}

// AddressBook resolves an account's linked payout address.
type AddressBook interface {
	Get(ctx context.Context, accountID int64, chain models.Chain) (*models.LinkedAddress, error)
}

// TxBeginner starts the transaction that debits and completes together.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type ClaimRequest struct {
	AccountID     int64
	Kind          models.RewardKind
	Chain         models.Chain // empty means the program's chain
	PayoutAddress string       // empty means the linked address
	PointAmount   int64
}

type ClaimResult struct {
	ClaimID      uuid.UUID       `json:"claim_id"`
	Status       string          `json:"status"`
	RewardAmount decimal.Decimal `json:"reward_amount"`
	TxRef        string          `json:"tx_ref"`
}

type Eligibility struct {
	Kind              models.RewardKind `json:"reward_kind"`
	CanClaim          bool              `json:"can_claim"`
	Reason            string            `json:"reason,omitempty"`
	PointsNeeded      int64             `json:"points_needed,omitempty"`
	RetryAfterSeconds int64             `json:"retry_after_seconds,omitempty"`
}

type Engine struct {
	pool      TxBeginner
	ledger    Ledger
	claims    ClaimStore
	addresses AddressBook
	client    payout.Client
	programs  map[models.RewardKind]Program
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewEngine(pool TxBeginner, ledger Ledger, claims ClaimStore, addresses AddressBook, client payout.Client, timeout time.Duration, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		pool:      pool,
		ledger:    ledger,
		claims:    claims,
		addresses: addresses,
		client:    client,
		programs:  DefaultPrograms(),
		timeout:   timeout,
		logger:    logger,
		now:       time.Now,
	}
}

func (e *Engine) Program(kind models.RewardKind) (Program, bool) {
	p, ok := e.programs[kind]
	return p, ok
}

// Claim runs one redemption: validate, reserve a pending claim, pay out,
// then debit and complete in one transaction. A failed payout leaves the
// points untouched and the claim failed. A payout whose settlement fails is
// reported with status pending and settled later by the reconcile sweep.
func (e *Engine) Claim(ctx context.Context, req ClaimRequest) (*ClaimResult, error) {
	prog, ok := e.programs[req.Kind]
	if !ok {
		return nil, apperr.New(apperr.CodeInvalidInput, "unknown reward kind %q", req.Kind)
	}
	if req.Chain == "" {
		req.Chain = prog.Chain
	}
	if req.Chain != prog.Chain {
		return nil, apperr.New(apperr.CodeInvalidInput, "%s rewards are paid on %s only", prog.Kind, prog.Chain)
	}
	if req.PointAmount <= 0 || req.PointAmount%prog.Unit != 0 {
		return nil, apperr.New(apperr.CodeInvalidAmount, "point amount must be a positive multiple of %d", prog.Unit)
	}
	address, err := e.resolveAddress(ctx, req)
	if err != nil {
		return nil, err
	}

	acc, err := e.ledger.Get(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if acc.Points < req.PointAmount {
		return nil, apperr.New(apperr.CodeInsufficientBalance,
			"insufficient points: have %d, need %d", acc.Points, req.PointAmount)
	}
	reward := prog.RewardFor(req.PointAmount)

	if remaining, err := e.cooldownRemaining(ctx, req.AccountID, prog); err != nil {
		return nil, err
	} else if remaining > 0 {
		return nil, apperr.New(apperr.CodeCooldownActive,
			"%s reward already claimed, try again in %s", prog.Kind, formatWait(remaining))
	}

	claim := &models.RewardClaim{
		ID:            uuid.New(),
		AccountID:     req.AccountID,
		Kind:          prog.Kind,
		Chain:         prog.Chain,
		PayoutAddress: address,
		PointsSpent:   req.PointAmount,
		RewardAmount:  reward,
	}
	if err := e.claims.CreatePending(ctx, claim); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.New(apperr.CodeClaimInProgress, "another claim is still being processed")
		}
		return nil, apperr.Store(err, "create claim")
	}
	// A claim of the same kind may have completed between the first check
	// and the insert.
	if remaining, err := e.cooldownRemaining(ctx, req.AccountID, prog); err != nil || remaining > 0 {
		detail := "cooldown active"
		if err != nil {
			detail = err.Error()
		}
		if ferr := e.claims.Fail(context.WithoutCancel(ctx), claim.ID, detail, e.now().UTC()); ferr != nil {
			e.logger.Error("failed to release claim", "claim_id", claim.ID, "error", ferr)
		}
		if err != nil {
			return nil, err
		}
		return nil, apperr.New(apperr.CodeCooldownActive,
			"%s reward already claimed, try again in %s", prog.Kind, formatWait(remaining))
	}
	log := e.logger.With("claim_id", claim.ID, "account_id", req.AccountID, "reward_kind", prog.Kind)
	log.Info("claim pending", "points", req.PointAmount, "reward_amount", reward.String())

	payCtx, cancel := context.WithTimeout(ctx, e.timeout)
	txRef, payErr := prog.pay(payCtx, e.client, payout.Request{
		Reference: claim.ID,
		Chain:     prog.Chain,
		Address:   address,
		Amount:    reward,
	})
	cancel()

	// The payout outcome must be recorded even if the caller went away.
	ctx = context.WithoutCancel(ctx)

	if payErr != nil {
		if err := e.claims.Fail(ctx, claim.ID, payErr.Error(), e.now().UTC()); err != nil {
			log.Error("failed to mark claim failed", "error", err)
		}
		log.Warn("payout failed", "error", payErr)
		return nil, apperr.Wrap(apperr.CodeExternalPayoutFailed, payErr, "payout failed, no points were deducted")
	}

	status := models.ClaimStatusCompleted
	if err := e.settle(ctx, claim, txRef); err != nil {
		// The payout went out. The claim stays pending so the sweep can
		// settle it once the gateway confirms the reference.
		status = models.ClaimStatusPending
		log.Error("payout sent but settlement failed, left for reconciliation", "tx_ref", txRef, "error", err)
	} else {
		log.Info("claim completed", "tx_ref", txRef)
	}
	return &ClaimResult{
		ClaimID:      claim.ID,
		Status:       status,
		RewardAmount: reward,
		TxRef:        txRef,
	}, nil
}

func (e *Engine) settle(ctx context.Context, claim *models.RewardClaim, txRef string) error {
	return Settle(ctx, e.pool, e.ledger, e.claims, claim, txRef, e.now().UTC())
}

// Debiter removes points inside a transaction.
type Debiter interface {
	DebitPointsTx(ctx context.Context, tx pgx.Tx, id int64, amount int64) (*models.Account, error)
}

// Completer marks a pending claim completed inside a transaction.
type Completer interface {
	Complete(ctx context.Context, tx pgx.Tx, id uuid.UUID, txRef string, at time.Time) error
}

// Settle debits claim.PointsSpent and completes the claim atomically. The
// reconciliation sweep uses it for payouts confirmed after the fact.
func Settle(ctx context.Context, pool TxBeginner, ledger Debiter, claims Completer, claim *models.RewardClaim, txRef string, at time.Time) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin settle: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := ledger.DebitPointsTx(ctx, tx, claim.AccountID, claim.PointsSpent); err != nil {
		return fmt.Errorf("debit points: %w", err)
	}
	if err := claims.Complete(ctx, tx, claim.ID, txRef, at); err != nil {
		return fmt.Errorf("complete claim: %w", err)
	}
	return tx.Commit(ctx)
}

func (e *Engine) resolveAddress(ctx context.Context, req ClaimRequest) (string, error) {
	if addr := strings.TrimSpace(req.PayoutAddress); addr != "" {
		return addr, nil
	}
	linked, err := e.addresses.Get(ctx, req.AccountID, req.Chain)
	if errors.Is(err, repository.ErrNotFound) {
		return "", apperr.New(apperr.CodeInvalidInput, "no payout address given and no %s wallet linked", req.Chain)
	}
	if err != nil {
		return "", apperr.Store(err, "get linked address")
	}
	return linked.Address, nil
}

func (e *Engine) cooldownRemaining(ctx context.Context, accountID int64, prog Program) (time.Duration, error) {
	if prog.Cooldown <= 0 {
		return 0, nil
	}
	now := e.now()
	last, err := e.claims.LastCompletedSince(ctx, accountID, prog.Kind, now.Add(-prog.Cooldown))
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, apperr.Store(err, "check cooldown")
	}
	return last.CreatedAt.Add(prog.Cooldown).Sub(now), nil
}

// History returns the caller's claims, newest first.
func (e *Engine) History(ctx context.Context, accountID int64, limit int) ([]*models.RewardClaim, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	list, err := e.claims.ListByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, apperr.Store(err, "list claims")
	}
	if list == nil {
		list = []*models.RewardClaim{}
	}
	return list, nil
}

// Eligibility reports whether a one-unit claim of kind would pass the
// balance and cooldown checks right now.
func (e *Engine) Eligibility(ctx context.Context, accountID int64, kind models.RewardKind) (*Eligibility, error) {
	prog, ok := e.programs[kind]
	if !ok {
		return nil, apperr.New(apperr.CodeInvalidInput, "unknown reward kind %q", kind)
	}
	acc, err := e.ledger.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out := &Eligibility{Kind: kind}
	if acc.Points < prog.Unit {
		out.Reason = "not enough points"
		out.PointsNeeded = prog.Unit - acc.Points
		return out, nil
	}
	remaining, err := e.cooldownRemaining(ctx, accountID, prog)
	if err != nil {
		return nil, err
	}
	if remaining > 0 {
		out.Reason = fmt.Sprintf("already claimed in the last %s", formatWait(prog.Cooldown))
		out.RetryAfterSeconds = int64((remaining + time.Second - 1) / time.Second)
		return out, nil
	}
	out.CanClaim = true
	return out, nil
}

func formatWait(d time.Duration) string {
	d = d.Round(time.Minute)
	if d < time.Minute {
		return "less than a minute"
	}
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh%dm", h, m)
	}
}
