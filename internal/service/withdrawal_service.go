package service

import (
	"context"
	"fmt"
	"time"

	"rewards-ledger/internal/core/domain"
	"rewards-ledger/internal/core/ports"
	"rewards-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// dedupTTL bounds how long replayed webhook event ids are remembered.
	// The withdrawal row's terminal state is the durable guard; the cache
	// only saves a round trip for hot replays.
	dedupTTL = 48 * time.Hour

	// autoProcessBatchSize caps one auto-processing pass.
	autoProcessBatchSize = 100
)

// WithdrawalServiceImpl implements ports.WithdrawalService.
type WithdrawalServiceImpl struct {
	withdrawalRepo ports.WithdrawalRepository
	walletSvc      ports.WalletService
	transactor     ports.DBTransactor
	dedup          ports.EventDedup
	notifier       ports.Notifier
	policy         domain.RewardsPolicy
	log            zerolog.Logger
}

// NewWithdrawalService creates a new WithdrawalServiceImpl.
func NewWithdrawalService(
	withdrawalRepo ports.WithdrawalRepository,
	walletSvc ports.WalletService,
	transactor ports.DBTransactor,
	dedup ports.EventDedup,
	notifier ports.Notifier,
	policy domain.RewardsPolicy,
	log zerolog.Logger,
) *WithdrawalServiceImpl {
	return &WithdrawalServiceImpl{
		withdrawalRepo: withdrawalRepo,
		walletSvc:      walletSvc,
		transactor:     transactor,
		dedup:          dedup,
		notifier:       notifier,
		policy:         policy,
		log:            log,
	}
}

// Request creates a PENDING withdrawal and moves the amount from
// withdrawable into the pending hold in one transaction. The returned
// row carries the payout reference that provider webhooks echo back.
func (s *WithdrawalServiceImpl) Request(ctx context.Context, userID uuid.UUID, amount int64, upiID string) (*domain.Withdrawal, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if amount < s.policy.MinWithdrawal {
		return nil, apperror.ErrBelowMinimumWithdrawal(s.policy.MinWithdrawal)
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	w := &domain.Withdrawal{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      amount,
		Status:      domain.WithdrawalPending,
		UpiID:       upiID,
		RequestedAt: time.Now().UTC(),
	}
	w.PayoutRef = domain.BuildPayoutRef(w.ID)

	// Reserve fails with WAL_001 if withdrawable is short, which rolls
	// back the row insert below as well.
	if _, err := s.walletSvc.Reserve(ctx, dbTx, userID, amount, domain.EntryMetadata{
		WithdrawalID: &w.ID,
	}); err != nil {
		return nil, err
	}

	if err := s.withdrawalRepo.Create(ctx, dbTx, w); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("insert withdrawal: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("user_id", userID.String()).
		Int64("amount", amount).
		Msg("withdrawal requested")
	return w, nil
}

// Reconcile applies one payout provider event to its withdrawal.
// Replays, out-of-order deliveries for terminal rows, and duplicate
// event ids all resolve to a success no-op so providers stop retrying.
func (s *WithdrawalServiceImpl) Reconcile(ctx context.Context, event ports.PayoutEvent) (*domain.Withdrawal, error) {
	withdrawalID, err := domain.ParsePayoutRef(event.ReferenceID)
	if err != nil {
		return nil, apperror.ErrMalformedPayoutReference(err)
	}

	if event.EventID != "" {
		seen, err := s.dedup.Seen(ctx, event.Provider, event.EventID)
		if err != nil {
			// Cache trouble must not block reconciliation; the row-level
			// terminal check below still prevents double settlement.
			s.log.Warn().Err(err).Str("event_id", event.EventID).Msg("event dedup unavailable, continuing")
		} else if seen {
			s.log.Info().
				Str("provider", event.Provider).
				Str("event_id", event.EventID).
				Msg("duplicate webhook event ignored")
			w, err := s.withdrawalRepo.GetByID(ctx, withdrawalID)
			if err != nil {
				return nil, apperror.InternalError(fmt.Errorf("get withdrawal: %w", err))
			}
			if w == nil {
				return nil, apperror.ErrNotFound("withdrawal")
			}
			return w, nil
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	w, err := s.withdrawalRepo.GetByIDForUpdate(ctx, dbTx, withdrawalID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock withdrawal: %w", err))
	}
	if w == nil {
		return nil, apperror.ErrNotFound("withdrawal")
	}
	if w.IsTerminal() {
		s.log.Info().
			Str("withdrawal_id", w.ID.String()).
			Str("status", string(w.Status)).
			Str("event_status", event.Status).
			Msg("webhook for terminal withdrawal ignored")
		s.markSeen(ctx, event)
		return w, nil
	}

	switch event.Status {
	case "accepted":
		if err := s.withdrawalRepo.UpdateStatus(ctx, dbTx, w.ID, domain.WithdrawalProcessing, event.UTR, nil); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("mark withdrawal processing: %w", err))
		}
		w.Status = domain.WithdrawalProcessing
		if event.UTR != nil {
			w.TxID = event.UTR
		}

	case "processed":
		if err := s.walletSvc.Settle(ctx, dbTx, w.UserID, w.Amount); err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		if err := s.withdrawalRepo.UpdateStatus(ctx, dbTx, w.ID, domain.WithdrawalCompleted, event.UTR, &now); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("complete withdrawal: %w", err))
		}
		w.Status = domain.WithdrawalCompleted
		w.ProcessedAt = &now
		if event.UTR != nil {
			w.TxID = event.UTR
		}

	case "rejected", "reversed":
		if _, err := s.walletSvc.Release(ctx, dbTx, w.UserID, w.Amount, domain.EntryMetadata{
			WithdrawalID: &w.ID,
		}); err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		if err := s.withdrawalRepo.UpdateStatus(ctx, dbTx, w.ID, domain.WithdrawalFailed, event.UTR, &now); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("fail withdrawal: %w", err))
		}
		w.Status = domain.WithdrawalFailed
		w.ProcessedAt = &now

	default:
		// Unknown statuses are acknowledged but change nothing, so a
		// provider adding event types does not break settlements.
		s.log.Warn().
			Str("withdrawal_id", w.ID.String()).
			Str("event_status", event.Status).
			Msg("unrecognized payout event status ignored")
		return w, nil
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	s.markSeen(ctx, event)

	s.log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("provider", event.Provider).
		Str("event_status", event.Status).
		Str("status", string(w.Status)).
		Msg("withdrawal reconciled")

	s.notify(ctx, w)
	return w, nil
}

// AutoProcess promotes PENDING withdrawals under the auto-approve
// threshold to PROCESSING. Larger amounts wait for manual review.
// Returns the number of withdrawals promoted.
func (s *WithdrawalServiceImpl) AutoProcess(ctx context.Context) (int, error) {
	if s.policy.AutoApproveThreshold <= 0 {
		return 0, nil
	}

	pending, err := s.withdrawalRepo.ListPendingBelow(ctx, s.policy.AutoApproveThreshold, autoProcessBatchSize)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list pending withdrawals: %w", err))
	}

	processed := 0
	for i := range pending {
		if err := s.promote(ctx, pending[i].ID); err != nil {
			s.log.Error().Err(err).
				Str("withdrawal_id", pending[i].ID.String()).
				Msg("auto-process failed for withdrawal")
			continue
		}
		processed++
	}

	if processed > 0 {
		s.log.Info().Int("count", processed).Msg("withdrawals auto-processed")
	}
	return processed, nil
}

// promote flips one withdrawal PENDING -> PROCESSING under row lock.
func (s *WithdrawalServiceImpl) promote(ctx context.Context, id uuid.UUID) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	w, err := s.withdrawalRepo.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock withdrawal: %w", err))
	}
	if w == nil || w.Status != domain.WithdrawalPending {
		return nil
	}

	if err := s.withdrawalRepo.UpdateStatus(ctx, dbTx, id, domain.WithdrawalProcessing, nil, nil); err != nil {
		return apperror.InternalError(fmt.Errorf("mark withdrawal processing: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// markSeen records the event id once its effects are durable. It must
// never run before the commit: a key written for a failed delivery
// would suppress the provider's retry for the TTL. A failed write only
// costs the fast path; the terminal-state check still guards replays.
func (s *WithdrawalServiceImpl) markSeen(ctx context.Context, event ports.PayoutEvent) {
	if event.EventID == "" {
		return
	}
	if err := s.dedup.MarkSeen(ctx, event.Provider, event.EventID, dedupTTL); err != nil {
		s.log.Warn().Err(err).
			Str("provider", event.Provider).
			Str("event_id", event.EventID).
			Msg("event dedup record failed")
	}
}

// notify fires terminal-state notifications outside the transaction.
func (s *WithdrawalServiceImpl) notify(ctx context.Context, w *domain.Withdrawal) {
	if s.notifier == nil {
		return
	}
	switch w.Status {
	case domain.WithdrawalCompleted:
		s.notifier.WithdrawalCompleted(ctx, w.UserID, w)
	case domain.WithdrawalFailed:
		s.notifier.WithdrawalFailed(ctx, w.UserID, w)
	}
}
