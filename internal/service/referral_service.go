package service

import (
	"context"
	"fmt"

	"rewards-ledger/internal/core/domain"
	"rewards-ledger/internal/core/ports"
	"rewards-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReferralServiceImpl implements ports.ReferralService. Each level of
// the commission chain is an independent unit of work: the credit and
// the row's pending->verified transition commit in one transaction per
// level, so a replayed Verify retries failed levels without ever
// double-paying a verified one.
type ReferralServiceImpl struct {
	referralRepo ports.ReferralRepository
	walletSvc    ports.WalletService
	transactor   ports.DBTransactor
	policy       domain.RewardsPolicy
	log          zerolog.Logger
}

// NewReferralService creates a new ReferralServiceImpl.
func NewReferralService(
	referralRepo ports.ReferralRepository,
	walletSvc ports.WalletService,
	transactor ports.DBTransactor,
	policy domain.RewardsPolicy,
	log zerolog.Logger,
) *ReferralServiceImpl {
	return &ReferralServiceImpl{
		referralRepo: referralRepo,
		walletSvc:    walletSvc,
		transactor:   transactor,
		policy:       policy,
		log:          log,
	}
}

// Verify credits the commission chain rooted at the referred user.
// Verifying an already fully-verified chain is a no-op; a rejected
// referral can never be verified.
func (s *ReferralServiceImpl) Verify(ctx context.Context, referralID uuid.UUID, commissionOverride *int64) ([]domain.LedgerEntry, error) {
	referral, err := s.referralRepo.GetByID(ctx, referralID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get referral: %w", err))
	}
	if referral == nil {
		return nil, apperror.ErrNotFound("referral")
	}
	if referral.Status == domain.ReferralRejected {
		return nil, apperror.ErrReferralRejected()
	}

	chain, err := s.loadChain(ctx, referral.ReferredUserID)
	if err != nil {
		return nil, err
	}

	pending := 0
	for _, row := range chain {
		if row.Status == domain.ReferralPending {
			pending++
		}
	}
	if pending == 0 {
		s.log.Info().
			Str("referral_id", referralID.String()).
			Msg("referral chain already verified, skipping")
		return nil, nil
	}

	var entries []domain.LedgerEntry
	for _, row := range chain {
		if row.Status != domain.ReferralPending {
			continue
		}

		amount := s.commissionFor(&row, referralID, commissionOverride)
		if amount <= 0 {
			// Level not configured: mark verified with zero payout so
			// the chain still converges.
			if err := s.markVerified(ctx, row.ID, 0); err != nil {
				return entries, err
			}
			continue
		}

		entry, err := s.creditLevel(ctx, &row, amount)
		if err != nil {
			// Already-applied levels stay applied; the next Verify
			// call retries the remaining pending rows.
			s.log.Error().Err(err).
				Str("referral_id", row.ID.String()).
				Int("level", row.Level).
				Str("referrer_id", row.ReferrerID.String()).
				Int64("amount", amount).
				Msg("commission credit failed, level left pending")
			return entries, err
		}
		entries = append(entries, *entry)
	}

	s.log.Info().
		Str("referral_id", referralID.String()).
		Int("levels_paid", len(entries)).
		Msg("referral verified")
	return entries, nil
}

// Reject marks a pending referral rejected. Verified referrals are
// never rejected.
func (s *ReferralServiceImpl) Reject(ctx context.Context, referralID uuid.UUID) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	referral, err := s.referralRepo.GetByIDForUpdate(ctx, dbTx, referralID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock referral: %w", err))
	}
	if referral == nil {
		return apperror.ErrNotFound("referral")
	}
	if referral.Status == domain.ReferralVerified {
		return apperror.ErrReferralAlreadyVerified()
	}
	if referral.Status == domain.ReferralRejected {
		return nil
	}

	if err := s.referralRepo.UpdateStatus(ctx, dbTx, referralID, domain.ReferralRejected, 0); err != nil {
		return apperror.InternalError(fmt.Errorf("reject referral: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().Str("referral_id", referralID.String()).Msg("referral rejected")
	return nil
}

// creditLevel pays one chain row in its own transaction: commission
// credit plus the pending->verified flip commit together.
func (s *ReferralServiceImpl) creditLevel(ctx context.Context, row *domain.Referral, amount int64) (*domain.LedgerEntry, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Re-check under lock: another worker may have verified this row.
	locked, err := s.referralRepo.GetByIDForUpdate(ctx, dbTx, row.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock referral: %w", err))
	}
	if locked == nil || locked.Status != domain.ReferralPending {
		return nil, apperror.ErrReferralAlreadyVerified()
	}

	level := row.Level
	entry, err := s.walletSvc.CreditInTx(ctx, dbTx, ports.CreditRequest{
		UserID: row.ReferrerID,
		Amount: amount,
		Kind:   domain.KindReferralCommission,
		Metadata: domain.EntryMetadata{
			ReferralID:    &row.ID,
			ReferralLevel: &level,
			SourceUserID:  &row.ReferredUserID,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := s.referralRepo.UpdateStatus(ctx, dbTx, row.ID, domain.ReferralVerified, amount); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark referral verified: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("referral_id", row.ID.String()).
		Int("level", row.Level).
		Str("referrer_id", row.ReferrerID.String()).
		Int64("amount", amount).
		Msg("referral commission credited")
	return entry, nil
}

// markVerified flips a zero-payout row without touching any wallet.
func (s *ReferralServiceImpl) markVerified(ctx context.Context, id uuid.UUID, amount int64) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.referralRepo.UpdateStatus(ctx, dbTx, id, domain.ReferralVerified, amount); err != nil {
		return apperror.InternalError(fmt.Errorf("mark referral verified: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// loadChain fetches the referral chain rows, level ascending.
func (s *ReferralServiceImpl) loadChain(ctx context.Context, referredUserID uuid.UUID) ([]domain.Referral, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	chain, err := s.referralRepo.GetChainForUpdate(ctx, dbTx, referredUserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get referral chain: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return chain, nil
}

// commissionFor resolves a level's payout: the row's precomputed
// amount wins, then an admin override for the targeted row, then the
// policy level table applied to the configured base.
func (s *ReferralServiceImpl) commissionFor(row *domain.Referral, targetID uuid.UUID, override *int64) int64 {
	if row.CommissionAmount > 0 {
		return row.CommissionAmount
	}
	if override != nil && row.ID == targetID {
		return *override
	}
	if cfg, ok := s.policy.LevelConfig(row.Level); ok {
		return cfg.Amount(s.policy.CommissionBase)
	}
	return 0
}
