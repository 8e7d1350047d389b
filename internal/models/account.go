package models

import (
	"time"
)

// DevAccountID is the identity granted to the "dev_data" bypass outside production.
const DevAccountID int64 = 123456789

type Account struct {
	ID          int64      `json:"telegram_id"`
	DisplayName string     `json:"display_name"`
	Points      int64      `json:"points"`
	Energy      int        `json:"energy"`
	LastTapAt   *time.Time `json:"last_tap_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TapAuditEntry is one append-only row of tap_audit_log.
type TapAuditEntry struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"telegram_id"`
	TapCount  int       `json:"tap_count"`
	CreatedAt time.Time `json:"created_at"`
}

// LeaderboardEntry is one row of the ranked snapshot.
type LeaderboardEntry struct {
	DisplayName string `json:"display_name"`
	Points      int64  `json:"points"`
}
