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

// TaskRewardServiceImpl implements ports.TaskRewardService. Approval
// settles the submission's currency and coin rewards atomically with
// the status flip, so a crashed approval never half-pays.
type TaskRewardServiceImpl struct {
	submissionRepo ports.SubmissionRepository
	walletSvc      ports.WalletService
	coinSvc        ports.CoinService
	transactor     ports.DBTransactor
	log            zerolog.Logger
}

// NewTaskRewardService creates a new TaskRewardServiceImpl.
func NewTaskRewardService(
	submissionRepo ports.SubmissionRepository,
	walletSvc ports.WalletService,
	coinSvc ports.CoinService,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *TaskRewardServiceImpl {
	return &TaskRewardServiceImpl{
		submissionRepo: submissionRepo,
		walletSvc:      walletSvc,
		coinSvc:        coinSvc,
		transactor:     transactor,
		log:            log,
	}
}

// Approve marks a submission APPROVED and pays its task's rewards.
// The status transition happens under row lock, so concurrent reviews
// of the same submission settle exactly once.
func (s *TaskRewardServiceImpl) Approve(ctx context.Context, submissionID uuid.UUID) (*domain.TaskSubmission, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	sub, err := s.submissionRepo.GetByIDForUpdate(ctx, dbTx, submissionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock submission: %w", err))
	}
	if sub == nil {
		return nil, apperror.ErrNotFound("submission")
	}
	if !sub.Reviewable() {
		return nil, apperror.ErrSubmissionNotReviewable(string(sub.Status))
	}

	task, err := s.submissionRepo.GetTask(ctx, sub.TaskID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get task: %w", err))
	}
	if task == nil {
		return nil, apperror.ErrNotFound("task")
	}

	meta := domain.EntryMetadata{
		TaskID:       &sub.TaskID,
		SubmissionID: &sub.ID,
	}

	if task.RewardAmount > 0 {
		if _, err := s.walletSvc.CreditInTx(ctx, dbTx, ports.CreditRequest{
			UserID:   sub.UserID,
			Amount:   task.RewardAmount,
			Kind:     domain.KindTaskReward,
			Metadata: meta,
		}); err != nil {
			return nil, err
		}
	}

	if task.RewardCoins > 0 {
		if _, err := s.coinSvc.GrantLockedInTx(ctx, dbTx, sub.UserID, task.RewardCoins, meta); err != nil {
			return nil, err
		}
	}

	if err := s.submissionRepo.UpdateStatus(ctx, dbTx, sub.ID, domain.SubmissionApproved, nil); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("approve submission: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	now := time.Now().UTC()
	sub.Status = domain.SubmissionApproved
	sub.ReviewedAt = &now

	s.log.Info().
		Str("submission_id", sub.ID.String()).
		Str("user_id", sub.UserID.String()).
		Int64("reward_amount", task.RewardAmount).
		Int64("reward_coins", task.RewardCoins).
		Msg("task submission approved")
	return sub, nil
}

// Reject marks a submission REJECTED with a reason. No wallet is
// touched. Rejecting an already-reviewed submission is a conflict.
func (s *TaskRewardServiceImpl) Reject(ctx context.Context, submissionID uuid.UUID, reason string) (*domain.TaskSubmission, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	sub, err := s.submissionRepo.GetByIDForUpdate(ctx, dbTx, submissionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock submission: %w", err))
	}
	if sub == nil {
		return nil, apperror.ErrNotFound("submission")
	}
	if !sub.Reviewable() {
		return nil, apperror.ErrSubmissionNotReviewable(string(sub.Status))
	}

	if err := s.submissionRepo.UpdateStatus(ctx, dbTx, sub.ID, domain.SubmissionRejected, &reason); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("reject submission: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	now := time.Now().UTC()
	sub.Status = domain.SubmissionRejected
	sub.RejectReason = &reason
	sub.ReviewedAt = &now

	s.log.Info().
		Str("submission_id", sub.ID.String()).
		Str("reason", reason).
		Msg("task submission rejected")
	return sub, nil
}
