package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WithdrawalStatus is the lifecycle state of a payout.
// PENDING -> PROCESSING -> COMPLETED, or PENDING/PROCESSING -> FAILED.
// COMPLETED and FAILED are terminal.
type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "PENDING"
	WithdrawalProcessing WithdrawalStatus = "PROCESSING"
	WithdrawalCompleted  WithdrawalStatus = "COMPLETED"
	WithdrawalFailed     WithdrawalStatus = "FAILED"
)

// payoutRefPrefix is embedded in the reference id sent to payout
// providers so webhook events can be mapped back to a withdrawal.
const payoutRefPrefix = "WD-"

// Withdrawal is a request to pay out withdrawable balance. Rows are
// never deleted; the amount is held in the wallet's pending bucket
// until a terminal state resolves it.
type Withdrawal struct {
	ID          uuid.UUID        `json:"id"`
	UserID      uuid.UUID        `json:"user_id"`
	Amount      int64            `json:"amount"`
	Status      WithdrawalStatus `json:"status"`
	UpiID       string           `json:"upi_id"`
	PayoutRef   string           `json:"payout_ref"`
	TxID        *string          `json:"tx_id,omitempty"` // provider UTR
	RequestedAt time.Time        `json:"requested_at"`
	ProcessedAt *time.Time       `json:"processed_at,omitempty"`
}

// IsTerminal returns true once the withdrawal can no longer change.
func (w *Withdrawal) IsTerminal() bool {
	return w.Status == WithdrawalCompleted || w.Status == WithdrawalFailed
}

// BuildPayoutRef formats the reference id sent to payout providers.
func BuildPayoutRef(withdrawalID uuid.UUID) string {
	return payoutRefPrefix + withdrawalID.String()
}

// ParsePayoutRef recovers the withdrawal id from a provider reference.
func ParsePayoutRef(ref string) (uuid.UUID, error) {
	if !strings.HasPrefix(ref, payoutRefPrefix) {
		return uuid.Nil, fmt.Errorf("malformed payout reference: %q", ref)
	}
	id, err := uuid.Parse(strings.TrimPrefix(ref, payoutRefPrefix))
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed payout reference %q: %w", ref, err)
	}
	return id, nil
}
