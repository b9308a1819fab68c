package ports

import (
	"context"
	"time"

	"rewards-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByReferralCode(ctx context.Context, code string) (*domain.User, error)
}

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for
// pessimistic per-wallet locking.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error)
	UpdateBalances(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error
	// ListUserIDsWithLockedCoins feeds the periodic unlock sweep.
	ListUserIDsWithLockedCoins(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// LedgerRepository defines persistence for the append-only ledger.
// Entries are only ever inserted; corrections are reversing entries.
type LedgerRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	ListByWallet(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.LedgerEntry, int64, error)
	// SumByWallet returns the signed sum of non-informational entries,
	// used to verify the ledger-matches-balance invariant.
	SumByWallet(ctx context.Context, walletID uuid.UUID) (int64, error)
}

// CoinRepository defines persistence for coin transactions.
type CoinRepository interface {
	Create(ctx context.Context, tx pgx.Tx, ct *domain.CoinTransaction) error
	ListMaturedLocked(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, now time.Time) ([]domain.CoinTransaction, error)
	MarkCompleted(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) error
	ListByWallet(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.CoinTransaction, int64, error)
}

// ReferralRepository defines persistence for referral chain rows.
type ReferralRepository interface {
	Create(ctx context.Context, tx pgx.Tx, ref *domain.Referral) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Referral, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Referral, error)
	// GetChainForUpdate returns all chain rows for a referred user
	// ordered by level ascending, locked for the duration of the tx.
	GetChainForUpdate(ctx context.Context, tx pgx.Tx, referredUserID uuid.UUID) ([]domain.Referral, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.ReferralStatus, commissionAmount int64) error
}

// SubmissionRepository defines persistence for task submissions.
type SubmissionRepository interface {
	Create(ctx context.Context, sub *domain.TaskSubmission) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.TaskSubmission, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.TaskSubmission, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.SubmissionStatus, reason *string) error
	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)
}

// WithdrawalRepository defines persistence for withdrawals.
// Rows are never deleted; terminal rows are retained for audit.
type WithdrawalRepository interface {
	Create(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Withdrawal, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.WithdrawalStatus, txID *string, processedAt *time.Time) error
	// ListPendingBelow feeds auto-processing of small withdrawals.
	ListPendingBelow(ctx context.Context, maxAmount int64, limit int) ([]domain.Withdrawal, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
