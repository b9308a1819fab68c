package domain

import (
	"time"

	"github.com/google/uuid"
)

// Bucket names the wallet field a debit or hold operates on.
type Bucket string

const (
	BucketWithdrawable Bucket = "withdrawable"
	BucketCoins        Bucket = "coins"
)

// Wallet holds a single user's balances. Currency fields are in the
// smallest currency unit (paise); coin fields are whole coins.
// Invariants: balance >= withdrawable + pending_amount, no bucket ever
// negative, balance only decreases via ADMIN_DEBIT.
type Wallet struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	Balance       int64     `json:"balance"`
	Withdrawable  int64     `json:"withdrawable"`
	PendingAmount int64     `json:"pending_amount"`
	LockedAmount  int64     `json:"locked_amount"`
	Coins         int64     `json:"coins"`
	LockedCoins   int64     `json:"locked_coins"`
	TotalEarned   int64     `json:"total_earned"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CanDebit reports whether the named bucket covers amount.
func (w *Wallet) CanDebit(bucket Bucket, amount int64) bool {
	switch bucket {
	case BucketWithdrawable:
		return w.Withdrawable >= amount
	case BucketCoins:
		return w.Coins >= amount
	}
	return false
}
