package ports

import (
	"context"
	"time"

	"rewards-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// --- Infrastructure ports ---

// SignatureService handles HMAC-SHA256 signing and verification for
// payout provider webhooks.
type SignatureService interface {
	Sign(secretKey string, payload []byte) string
	Verify(secretKey string, payload []byte, signature string) bool
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, isAdmin bool) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// EventDedup short-circuits replayed webhook deliveries (fast path;
// the withdrawal row's terminal state is the durable guard). Callers
// record an event id only after its effects are durably committed, so
// a delivery that fails mid-flight stays retryable.
type EventDedup interface {
	// Seen reports whether the event id was already recorded.
	Seen(ctx context.Context, provider, eventID string) (bool, error)
	// MarkSeen records the event id for ttl.
	MarkSeen(ctx context.Context, provider, eventID string, ttl time.Duration) error
}

// Notifier delivers user/ops notifications. Delivery failures are
// logged, never propagated into money movement.
type Notifier interface {
	WithdrawalFailed(ctx context.Context, userID uuid.UUID, w *domain.Withdrawal)
	WithdrawalCompleted(ctx context.Context, userID uuid.UUID, w *domain.Withdrawal)
}

// --- Service ports (business logic) ---

// CreditRequest holds validated input for a wallet credit.
type CreditRequest struct {
	UserID   uuid.UUID
	Amount   int64
	Kind     domain.EntryKind
	Metadata domain.EntryMetadata
}

// DebitRequest holds validated input for a wallet debit. Bucket names
// the balance field being drawn down.
type DebitRequest struct {
	UserID   uuid.UUID
	Amount   int64
	Bucket   domain.Bucket
	Kind     domain.EntryKind
	Metadata domain.EntryMetadata
}

// WalletService is the single owner of wallet balance mutation. Every
// numeric field update is paired with a ledger entry in the same
// database transaction. The *InTx variants join a caller-managed
// transaction so composite operations (task approval, conversion,
// withdrawal) stay atomic end to end.
type WalletService interface {
	Credit(ctx context.Context, req CreditRequest) (*domain.LedgerEntry, error)
	CreditInTx(ctx context.Context, tx pgx.Tx, req CreditRequest) (*domain.LedgerEntry, error)
	Debit(ctx context.Context, req DebitRequest) (*domain.LedgerEntry, error)
	DebitInTx(ctx context.Context, tx pgx.Tx, req DebitRequest) (*domain.LedgerEntry, error)

	// AdjustCoinsInTx applies guarded deltas to the coin buckets. The
	// coin-economy ledger (coin_transactions) is written by the caller
	// in the same transaction.
	AdjustCoinsInTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, deltaCoins, deltaLockedCoins int64) (*domain.Wallet, error)

	// Reserve moves withdrawable into the pending bucket and records a
	// WITHDRAWAL_REQUEST entry. Release is its refund inverse; Settle
	// drops the pending hold after funds have left the system.
	Reserve(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, meta domain.EntryMetadata) (*domain.LedgerEntry, error)
	Release(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, meta domain.EntryMetadata) (*domain.LedgerEntry, error)
	Settle(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) error

	Get(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	ListEntries(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.LedgerEntry, int64, error)
}

// CoinService manages the locked/spendable coin economy.
type CoinService interface {
	// GrantLockedInTx creates a LOCKED grant unlocking after the
	// policy cooldown and moves the coins into lockedCoins.
	GrantLockedInTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, coins int64, meta domain.EntryMetadata) (*domain.CoinTransaction, error)
	// UnlockMatured lazily completes matured grants for one user.
	UnlockMatured(ctx context.Context, userID uuid.UUID) (int64, error)
	// Convert exchanges spendable coins for currency at the policy
	// rate, atomically debiting coins and crediting the wallet.
	Convert(ctx context.Context, userID uuid.UUID, coins int64) (*domain.Wallet, error)
	// SweepLocked runs UnlockMatured across wallets with locked coins.
	SweepLocked(ctx context.Context) error
}

// ReferralService walks the referral chain and credits commissions.
type ReferralService interface {
	// Verify credits each pending chain level exactly once. Calling it
	// again retries levels that previously failed and no-ops when the
	// whole chain is verified.
	Verify(ctx context.Context, referralID uuid.UUID, commissionOverride *int64) ([]domain.LedgerEntry, error)
	Reject(ctx context.Context, referralID uuid.UUID) error
}

// TaskRewardService settles approved task submissions.
type TaskRewardService interface {
	Approve(ctx context.Context, submissionID uuid.UUID) (*domain.TaskSubmission, error)
	Reject(ctx context.Context, submissionID uuid.UUID, reason string) (*domain.TaskSubmission, error)
}

// PayoutEvent is a normalized payout provider webhook payload.
type PayoutEvent struct {
	Provider    string
	EventID     string
	ReferenceID string
	Status      string // accepted | processed | rejected | reversed
	UTR         *string
}

// WithdrawalService owns the withdrawal lifecycle.
type WithdrawalService interface {
	Request(ctx context.Context, userID uuid.UUID, amount int64, upiID string) (*domain.Withdrawal, error)
	// Reconcile applies one provider webhook event. Replays of events
	// for terminal withdrawals are treated as success no-ops.
	Reconcile(ctx context.Context, event PayoutEvent) (*domain.Withdrawal, error)
	// AutoProcess promotes small PENDING withdrawals to PROCESSING
	// without human review (policy layer on the same state machine).
	AutoProcess(ctx context.Context) (int, error)
}

// AuthService defines registration and login.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error)
}

// RegisterRequest holds input for user registration.
type RegisterRequest struct {
	Username     string
	Password     string
	ReferralCode *string // referrer's code, builds the chain rows
}

// AdminWalletService exposes manual balance corrections.
type AdminWalletService interface {
	Adjust(ctx context.Context, adminID, userID uuid.UUID, amount int64, reason string) (*domain.LedgerEntry, error)
}
