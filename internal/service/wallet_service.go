package service

import (
	"context"
	"fmt"
	"time"

	"rewards-ledger/internal/core/domain"
	"rewards-ledger/internal/core/ports"
	"rewards-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// WalletServiceImpl implements ports.WalletService. It is the only
// component that mutates wallet balance fields; every mutation pairs
// the numeric update with a ledger insert inside one transaction held
// under a FOR UPDATE lock on the wallet row.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	ledgerRepo ports.LedgerRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	ledgerRepo ports.LedgerRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
		transactor: transactor,
		log:        log,
	}
}

// Credit adds currency to a wallet in its own transaction.
func (s *WalletServiceImpl) Credit(ctx context.Context, req ports.CreditRequest) (*domain.LedgerEntry, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	entry, err := s.CreditInTx(ctx, dbTx, req)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return entry, nil
}

// CreditInTx adds currency to a wallet within the caller's transaction.
// balance and withdrawable move together, totalEarned only for earning
// kinds; the ledger entry is inserted before commit so a crash leaves
// both or neither.
func (s *WalletServiceImpl) CreditInTx(ctx context.Context, tx pgx.Tx, req ports.CreditRequest) (*domain.LedgerEntry, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	wallet, err := s.lockWallet(ctx, tx, req.UserID)
	if err != nil {
		return nil, err
	}

	wallet.Balance += req.Amount
	wallet.Withdrawable += req.Amount
	if req.Kind.Earning() {
		wallet.TotalEarned += req.Amount
	}

	entry, err := s.applyAndRecord(ctx, tx, wallet, req.Amount, req.Kind, req.Metadata)
	if err != nil {
		s.log.Error().Err(err).
			Str("user_id", req.UserID.String()).
			Int64("amount", req.Amount).
			Str("kind", string(req.Kind)).
			Msg("credit failed")
		return nil, err
	}

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("user_id", req.UserID.String()).
		Int64("amount", req.Amount).
		Str("kind", string(req.Kind)).
		Msg("wallet credited")
	return entry, nil
}

// Debit removes currency from a wallet in its own transaction.
func (s *WalletServiceImpl) Debit(ctx context.Context, req ports.DebitRequest) (*domain.LedgerEntry, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	entry, err := s.DebitInTx(ctx, dbTx, req)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return entry, nil
}

// DebitInTx removes currency from the named bucket within the caller's
// transaction. Fails with InsufficientFunds if the bucket would go
// negative; nothing partial is ever applied.
func (s *WalletServiceImpl) DebitInTx(ctx context.Context, tx pgx.Tx, req ports.DebitRequest) (*domain.LedgerEntry, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.Bucket != domain.BucketWithdrawable {
		return nil, apperror.Validation(fmt.Sprintf("bucket %s is not debitable as currency", req.Bucket))
	}

	wallet, err := s.lockWallet(ctx, tx, req.UserID)
	if err != nil {
		return nil, err
	}

	if !wallet.CanDebit(req.Bucket, req.Amount) {
		s.log.Warn().
			Str("user_id", req.UserID.String()).
			Int64("available", wallet.Withdrawable).
			Int64("requested", req.Amount).
			Str("kind", string(req.Kind)).
			Msg("debit rejected: insufficient funds")
		return nil, apperror.ErrInsufficientFunds(wallet.Withdrawable, req.Amount)
	}

	wallet.Balance -= req.Amount
	wallet.Withdrawable -= req.Amount

	entry, err := s.applyAndRecord(ctx, tx, wallet, -req.Amount, req.Kind, req.Metadata)
	if err != nil {
		s.log.Error().Err(err).
			Str("user_id", req.UserID.String()).
			Int64("amount", req.Amount).
			Str("kind", string(req.Kind)).
			Msg("debit failed")
		return nil, err
	}

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("user_id", req.UserID.String()).
		Int64("amount", req.Amount).
		Str("kind", string(req.Kind)).
		Msg("wallet debited")
	return entry, nil
}

// AdjustCoinsInTx applies guarded deltas to the coin buckets. Callers
// (the coin engine) write the matching coin_transactions rows in the
// same transaction.
func (s *WalletServiceImpl) AdjustCoinsInTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, deltaCoins, deltaLockedCoins int64) (*domain.Wallet, error) {
	wallet, err := s.lockWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	if wallet.Coins+deltaCoins < 0 {
		return nil, apperror.ErrInsufficientCoins(wallet.Coins, -deltaCoins)
	}
	if wallet.LockedCoins+deltaLockedCoins < 0 {
		return nil, apperror.InternalError(fmt.Errorf("adjust coins: locked coins would go negative: have %d, delta %d", wallet.LockedCoins, deltaLockedCoins))
	}

	wallet.Coins += deltaCoins
	wallet.LockedCoins += deltaLockedCoins

	if err := s.walletRepo.UpdateBalances(ctx, tx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balances: %w", err))
	}
	return wallet, nil
}

// Reserve moves withdrawable into the pending bucket and records an
// informational WITHDRAWAL_REQUEST entry. withdrawable + pendingAmount
// is conserved.
func (s *WalletServiceImpl) Reserve(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, meta domain.EntryMetadata) (*domain.LedgerEntry, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	wallet, err := s.lockWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if wallet.Withdrawable < amount {
		return nil, apperror.ErrInsufficientFunds(wallet.Withdrawable, amount)
	}

	wallet.Withdrawable -= amount
	wallet.PendingAmount += amount

	return s.applyAndRecord(ctx, tx, wallet, -amount, domain.KindWithdrawalRequest, meta)
}

// Release refunds a pending hold back to withdrawable with a
// WITHDRAWAL_REFUND entry.
func (s *WalletServiceImpl) Release(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, meta domain.EntryMetadata) (*domain.LedgerEntry, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	wallet, err := s.lockWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if wallet.PendingAmount < amount {
		return nil, apperror.InternalError(fmt.Errorf("release hold: pending %d smaller than release %d", wallet.PendingAmount, amount))
	}

	wallet.PendingAmount -= amount
	wallet.Withdrawable += amount

	return s.applyAndRecord(ctx, tx, wallet, amount, domain.KindWithdrawalRefund, meta)
}

// Settle drops a pending hold after the funds have left the system.
// The WITHDRAWAL_REQUEST entry already recorded the move; completion
// does not touch balance.
func (s *WalletServiceImpl) Settle(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return apperror.ErrInvalidAmount()
	}

	wallet, err := s.lockWallet(ctx, tx, userID)
	if err != nil {
		return err
	}
	if wallet.PendingAmount < amount {
		return apperror.InternalError(fmt.Errorf("settle hold: pending %d smaller than settlement %d", wallet.PendingAmount, amount))
	}

	wallet.PendingAmount -= amount

	if err := s.walletRepo.UpdateBalances(ctx, tx, wallet); err != nil {
		return apperror.InternalError(fmt.Errorf("update balances: %w", err))
	}
	return nil
}

// Get fetches a wallet without locking.
func (s *WalletServiceImpl) Get(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

// ListEntries pages through a wallet's ledger, newest first.
func (s *WalletServiceImpl) ListEntries(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.LedgerEntry, int64, error) {
	wallet, err := s.Get(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	entries, total, err := s.ledgerRepo.ListByWallet(ctx, wallet.ID, page, pageSize)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list ledger entries: %w", err))
	}
	return entries, total, nil
}

// Adjust applies a manual admin correction: positive amounts credit,
// negative amounts debit the withdrawable bucket.
func (s *WalletServiceImpl) Adjust(ctx context.Context, adminID, userID uuid.UUID, amount int64, reason string) (*domain.LedgerEntry, error) {
	meta := domain.EntryMetadata{AdminID: &adminID, Reason: reason}
	switch {
	case amount > 0:
		return s.Credit(ctx, ports.CreditRequest{
			UserID: userID, Amount: amount, Kind: domain.KindAdminCredit, Metadata: meta,
		})
	case amount < 0:
		return s.Debit(ctx, ports.DebitRequest{
			UserID: userID, Amount: -amount, Bucket: domain.BucketWithdrawable,
			Kind: domain.KindAdminDebit, Metadata: meta,
		})
	default:
		return nil, apperror.ErrInvalidAmount()
	}
}

// lockWallet fetches the user's wallet under FOR UPDATE.
func (s *WalletServiceImpl) lockWallet(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByUserIDForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

// applyAndRecord persists the mutated wallet and appends the matching
// ledger entry within the same transaction.
func (s *WalletServiceImpl) applyAndRecord(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, amount int64, kind domain.EntryKind, meta domain.EntryMetadata) (*domain.LedgerEntry, error) {
	if err := s.walletRepo.UpdateBalances(ctx, tx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balances: %w", err))
	}

	entry := &domain.LedgerEntry{
		ID:        uuid.New(),
		WalletID:  wallet.ID,
		UserID:    wallet.UserID,
		Amount:    amount,
		Kind:      kind,
		Metadata:  meta,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.ledgerRepo.Create(ctx, tx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("insert ledger entry: %w", err))
	}
	return entry, nil
}
