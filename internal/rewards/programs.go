package rewards

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/misbot/backend/internal/models"
	"github.com/misbot/backend/internal/payout"
)

// Method selects which payout call a program makes.
type Method string

const (
	MethodMint     Method = "mint"
	MethodTransfer Method = "transfer"
)

// Program describes one reward kind: where it pays out and at what price.
type Program struct {
	Kind   models.RewardKind
	Chain  models.Chain
	Method Method
	// Unit is the smallest redeemable point amount; claims are multiples of it.
	Unit int64
	// PointsPerReward is how many points buy one whole reward unit.
	PointsPerReward decimal.Decimal
	// Cooldown is the trailing window in which a completed claim of the same
	// kind blocks a new one. Zero disables it.
	Cooldown time.Duration
}

// RewardFor converts points into the reward amount.
func (p Program) RewardFor(points int64) decimal.Decimal {
	return decimal.NewFromInt(points).Div(p.PointsPerReward)
}

func (p Program) pay(ctx context.Context, client payout.Client, req payout.Request) (string, error) {
	if p.Method == MethodTransfer {
		return client.Transfer(ctx, req)
	}
	return client.Mint(ctx, req)
}

// DefaultPrograms: 1000 points buy one jetton, or 0.02 TON once a day.
func DefaultPrograms() map[models.RewardKind]Program {
	return map[models.RewardKind]Program{
		models.RewardKindToken: {
			Kind:            models.RewardKindToken,
			Chain:           models.ChainTON,
			Method:          MethodMint,
			Unit:            1000,
			PointsPerReward: decimal.NewFromInt(1000),
		},
		models.RewardKindNative: {
			Kind:            models.RewardKindNative,
			Chain:           models.ChainTON,
			Method:          MethodTransfer,
			Unit:            1000,
			PointsPerReward: decimal.NewFromInt(50000),
			Cooldown:        24 * time.Hour,
		},
	}
}
