package domain

import (
	"time"

	"github.com/google/uuid"
)

// CoinTxStatus is the unlock state of a coin grant.
type CoinTxStatus string

const (
	CoinTxLocked    CoinTxStatus = "LOCKED"
	CoinTxCompleted CoinTxStatus = "COMPLETED"
)

// CoinTransaction is the coin-economy counterpart of a LedgerEntry.
// A LOCKED entry is a grant still in its unlock cooldown; it becomes
// spendable (COMPLETED) once now >= UnlocksAt.
type CoinTransaction struct {
	ID        uuid.UUID     `json:"id"`
	WalletID  uuid.UUID     `json:"wallet_id"`
	UserID    uuid.UUID     `json:"user_id"`
	Coins     int64         `json:"coins"` // signed
	Kind      EntryKind     `json:"kind"`
	Status    CoinTxStatus  `json:"status"`
	UnlocksAt *time.Time    `json:"unlocks_at,omitempty"`
	Metadata  EntryMetadata `json:"metadata"`
	CreatedAt time.Time     `json:"created_at"`
}

// Matured reports whether a LOCKED grant has passed its unlock time.
func (c *CoinTransaction) Matured(now time.Time) bool {
	return c.Status == CoinTxLocked && c.UnlocksAt != nil && !now.Before(*c.UnlocksAt)
}
