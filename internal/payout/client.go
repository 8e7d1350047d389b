// Package payout talks to the external signer that mints jettons and sends
// native TON. Address parsing and signing happen on the other side.
package payout

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/misbot/backend/internal/models"
)

var (
	// ErrNotConfigured is returned by Disabled for every call.
	ErrNotConfigured = errors.New("payout gateway not configured")
	// ErrUnknownReference is returned by Lookup when the gateway never saw the reference.
	ErrUnknownReference = errors.New("payout reference unknown")
)

type Request struct {
	// Reference is the claim id; the gateway uses it as an idempotency key.
	Reference uuid.UUID
	Chain     models.Chain
	Address   string
	Amount    decimal.Decimal
}

type Client interface {
	Mint(ctx context.Context, req Request) (txRef string, err error)
	Transfer(ctx context.Context, req Request) (txRef string, err error)
}

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
	StatusPending   Status = "pending"
)

type Receipt struct {
	Reference uuid.UUID `json:"reference"`
	Status    Status    `json:"status"`
	TxRef     string    `json:"tx_ref"`
	Error     string    `json:"error,omitempty"`
}

// Lookuper is implemented by clients that can report the outcome of an
// earlier request. The reconciliation sweep uses it for stuck claims.
type Lookuper interface {
	Lookup(ctx context.Context, reference uuid.UUID) (*Receipt, error)
}

// Disabled rejects every payout. Used when no gateway URL is configured.
type Disabled struct{}

func (Disabled) Mint(context.Context, Request) (string, error)     { return "", ErrNotConfigured }
func (Disabled) Transfer(context.Context, Request) (string, error) { return "", ErrNotConfigured }

var _ Client = Disabled{}
