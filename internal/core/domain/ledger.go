package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntryKind enumerates the causes of a ledger entry.
type EntryKind string

const (
	KindTaskReward         EntryKind = "TASK_REWARD"
	KindReferralCommission EntryKind = "REFERRAL_COMMISSION"
	KindWithdrawalRequest  EntryKind = "WITHDRAWAL_REQUEST"
	KindWithdrawalRefund   EntryKind = "WITHDRAWAL_REFUND"
	KindAdminCredit        EntryKind = "ADMIN_CREDIT"
	KindAdminDebit         EntryKind = "ADMIN_DEBIT"
	KindConversion         EntryKind = "CONVERSION"
	KindSpend              EntryKind = "SPEND"
)

// Informational reports whether entries of this kind record a bucket
// move rather than a balance change. Replaying the non-informational
// entries of a wallet in commit order reproduces its balance.
func (k EntryKind) Informational() bool {
	return k == KindWithdrawalRequest || k == KindWithdrawalRefund
}

// Earning reports whether entries of this kind count toward a wallet's
// lifetime totalEarned. Conversions move value the user already earned
// as coins, and admin credits are corrections, so neither counts.
func (k EntryKind) Earning() bool {
	return k == KindTaskReward || k == KindReferralCommission
}

// LedgerEntry is an immutable, append-only record of a single signed
// balance change. Corrections are new reversing entries, never edits.
type LedgerEntry struct {
	ID        uuid.UUID     `json:"id"`
	WalletID  uuid.UUID     `json:"wallet_id"`
	UserID    uuid.UUID     `json:"user_id"`
	Amount    int64         `json:"amount"` // signed
	Kind      EntryKind     `json:"kind"`
	Metadata  EntryMetadata `json:"metadata"`
	CreatedAt time.Time     `json:"created_at"`
}

// EntryMetadata carries the audit attributes relevant to an entry's
// kind. Only the fields matching the kind are populated; Notes is a
// free-form escape hatch for manual reconciliation remarks.
type EntryMetadata struct {
	TaskID        *uuid.UUID        `json:"task_id,omitempty"`
	SubmissionID  *uuid.UUID        `json:"submission_id,omitempty"`
	ReferralID    *uuid.UUID        `json:"referral_id,omitempty"`
	ReferralLevel *int              `json:"referral_level,omitempty"`
	SourceUserID  *uuid.UUID        `json:"source_user_id,omitempty"`
	WithdrawalID  *uuid.UUID        `json:"withdrawal_id,omitempty"`
	CoinsSpent    *int64            `json:"coins_spent,omitempty"`
	AdminID       *uuid.UUID        `json:"admin_id,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	Notes         map[string]string `json:"notes,omitempty"`
}
