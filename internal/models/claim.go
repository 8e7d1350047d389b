package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Claim status enums. pending is the only non-terminal state.
const (
	ClaimStatusPending   = "pending"
	ClaimStatusCompleted = "completed"
	ClaimStatusFailed    = "failed"
)

// RewardKind selects a reward program (payout method, chain, rate, cooldown).
type RewardKind string

const (
	RewardKindToken  RewardKind = "token"
	RewardKindNative RewardKind = "native"
)

type RewardClaim struct {
	ID            uuid.UUID       `json:"id"`
	AccountID     int64           `json:"telegram_id"`
	Kind          RewardKind      `json:"reward_kind"`
	Chain         Chain           `json:"chain"`
	PayoutAddress string          `json:"payout_address"`
	PointsSpent   int64           `json:"points_spent"`
	RewardAmount  decimal.Decimal `json:"reward_amount"`
	Status        string          `json:"status"`
	TxRef         *string         `json:"tx_ref,omitempty"`
	ErrorDetail   *string         `json:"error_detail,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
}

// IsTerminal reports whether the claim can no longer change.
func (c *RewardClaim) IsTerminal() bool {
	return c.Status == ClaimStatusCompleted || c.Status == ClaimStatusFailed
}
