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

// sweepBatchSize caps how many wallets one sweep pass touches.
const sweepBatchSize = 200

// CoinServiceImpl implements ports.CoinService. Unlocking is lazy at
// read/convert time, backed by an idempotent periodic sweep so grants
// are eventually unlocked without manual intervention.
type CoinServiceImpl struct {
	coinRepo   ports.CoinRepository
	walletRepo ports.WalletRepository
	walletSvc  ports.WalletService
	transactor ports.DBTransactor
	policy     domain.RewardsPolicy
	log        zerolog.Logger
}

// NewCoinService creates a new CoinServiceImpl.
func NewCoinService(
	coinRepo ports.CoinRepository,
	walletRepo ports.WalletRepository,
	walletSvc ports.WalletService,
	transactor ports.DBTransactor,
	policy domain.RewardsPolicy,
	log zerolog.Logger,
) *CoinServiceImpl {
	return &CoinServiceImpl{
		coinRepo:   coinRepo,
		walletRepo: walletRepo,
		walletSvc:  walletSvc,
		transactor: transactor,
		policy:     policy,
		log:        log,
	}
}

// GrantLockedInTx creates a LOCKED coin grant inside the caller's
// transaction. The grant unlocks after the policy cooldown.
func (s *CoinServiceImpl) GrantLockedInTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, coins int64, meta domain.EntryMetadata) (*domain.CoinTransaction, error) {
	if coins <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	wallet, err := s.walletSvc.AdjustCoinsInTx(ctx, tx, userID, 0, coins)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	unlocksAt := now.Add(s.policy.CoinLockDuration)
	ct := &domain.CoinTransaction{
		ID:        uuid.New(),
		WalletID:  wallet.ID,
		UserID:    userID,
		Coins:     coins,
		Kind:      domain.KindTaskReward,
		Status:    domain.CoinTxLocked,
		UnlocksAt: &unlocksAt,
		Metadata:  meta,
		CreatedAt: now,
	}
	if err := s.coinRepo.Create(ctx, tx, ct); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("insert coin grant: %w", err))
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Int64("coins", coins).
		Time("unlocks_at", unlocksAt).
		Msg("locked coins granted")
	return ct, nil
}

// UnlockMatured completes matured grants for one user, moving their
// coins from lockedCoins to the spendable bucket. Returns the number
// of coins unlocked. Safe to call repeatedly.
func (s *CoinServiceImpl) UnlockMatured(ctx context.Context, userID uuid.UUID) (int64, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	unlocked, err := s.unlockMaturedInTx(ctx, dbTx, userID)
	if err != nil {
		return 0, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return 0, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return unlocked, nil
}

// Convert exchanges spendable coins for currency at the policy rate.
// Matured grants are unlocked first so a user is never told they have
// fewer coins than their timers say.
func (s *CoinServiceImpl) Convert(ctx context.Context, userID uuid.UUID, coins int64) (*domain.Wallet, error) {
	if coins < s.policy.MinConvertCoins {
		return nil, apperror.ErrBelowMinimumConversion(s.policy.MinConvertCoins)
	}
	if s.policy.Rate.Coins <= 0 || coins%s.policy.Rate.Coins != 0 {
		return nil, apperror.Validation(fmt.Sprintf("coins must be a multiple of %d", s.policy.Rate.Coins))
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if _, err := s.unlockMaturedInTx(ctx, dbTx, userID); err != nil {
		return nil, err
	}

	// Debit the coin bucket; AdjustCoinsInTx rejects overdraws.
	wallet, err := s.walletSvc.AdjustCoinsInTx(ctx, dbTx, userID, -coins, 0)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	spent := coins
	ct := &domain.CoinTransaction{
		ID:        uuid.New(),
		WalletID:  wallet.ID,
		UserID:    userID,
		Coins:     -coins,
		Kind:      domain.KindConversion,
		Status:    domain.CoinTxCompleted,
		Metadata:  domain.EntryMetadata{CoinsSpent: &spent},
		CreatedAt: now,
	}
	if err := s.coinRepo.Create(ctx, dbTx, ct); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("insert coin conversion: %w", err))
	}

	amount := s.policy.Rate.Currency(coins)
	if _, err := s.walletSvc.CreditInTx(ctx, dbTx, ports.CreditRequest{
		UserID:   userID,
		Amount:   amount,
		Kind:     domain.KindConversion,
		Metadata: domain.EntryMetadata{CoinsSpent: &spent},
	}); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Int64("coins", coins).
		Int64("amount", amount).
		Msg("coins converted")

	updated, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("reload wallet: %w", err))
	}
	return updated, nil
}

// SweepLocked runs the unlock pass over every wallet holding locked
// coins. Each wallet is its own transaction; a failure on one wallet
// does not stall the rest.
func (s *CoinServiceImpl) SweepLocked(ctx context.Context) error {
	userIDs, err := s.walletRepo.ListUserIDsWithLockedCoins(ctx, sweepBatchSize)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("list wallets with locked coins: %w", err))
	}

	for _, userID := range userIDs {
		unlocked, err := s.UnlockMatured(ctx, userID)
		if err != nil {
			s.log.Error().Err(err).Str("user_id", userID.String()).Msg("unlock sweep failed for wallet")
			continue
		}
		if unlocked > 0 {
			s.log.Info().Str("user_id", userID.String()).Int64("coins", unlocked).Msg("sweep unlocked coins")
		}
	}
	return nil
}

// unlockMaturedInTx moves matured grants to COMPLETED within a
// transaction that already serializes on the wallet.
func (s *CoinServiceImpl) unlockMaturedInTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int64, error) {
	wallet, err := s.walletRepo.GetByUserIDForUpdate(ctx, tx, userID)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return 0, apperror.ErrNotFound("wallet")
	}

	matured, err := s.coinRepo.ListMaturedLocked(ctx, tx, wallet.ID, time.Now().UTC())
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list matured grants: %w", err))
	}
	if len(matured) == 0 {
		return 0, nil
	}

	var total int64
	ids := make([]uuid.UUID, 0, len(matured))
	for _, ct := range matured {
		total += ct.Coins
		ids = append(ids, ct.ID)
	}

	if err := s.coinRepo.MarkCompleted(ctx, tx, ids); err != nil {
		return 0, apperror.InternalError(fmt.Errorf("complete matured grants: %w", err))
	}
	if _, err := s.walletSvc.AdjustCoinsInTx(ctx, tx, userID, total, -total); err != nil {
		return 0, err
	}
	return total, nil
}
