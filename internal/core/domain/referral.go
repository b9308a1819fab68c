package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReferralStatus is the lifecycle state of one referral level.
type ReferralStatus string

const (
	ReferralPending  ReferralStatus = "pending"
	ReferralVerified ReferralStatus = "verified"
	ReferralRejected ReferralStatus = "rejected"
)

// MaxReferralLevels caps the upward commission chain.
const MaxReferralLevels = 3

// Referral links a referred user to one ancestor in their referral
// chain. Level 1 is the direct referrer, level 2 that referrer's
// referrer, and so on. Chain rows are created at signup; each row's
// status transitions pending -> verified at most once, which is the
// per-level idempotency guard for commission credit.
type Referral struct {
	ID               uuid.UUID      `json:"id"`
	ReferrerID       uuid.UUID      `json:"referrer_id"`
	ReferredUserID   uuid.UUID      `json:"referred_user_id"`
	Level            int            `json:"level"`
	Status           ReferralStatus `json:"status"`
	CommissionAmount int64          `json:"commission_amount"` // 0 = compute from config
	VerifiedAt       *time.Time     `json:"verified_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}
