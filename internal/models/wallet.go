package models

import "time"

// Chain identifies the ledger a payout address lives on.
type Chain string

const (
	ChainTON Chain = "TON"
)

// SupportedChains is the fixed enum accepted by connect-wallet.
var SupportedChains = map[Chain]bool{
	ChainTON: true,
}

type LinkedAddress struct {
	AccountID int64     `json:"-"`
	Chain     Chain     `json:"chain"`
	Address   string    `json:"address"`
	UpdatedAt time.Time `json:"updated_at"`
}
