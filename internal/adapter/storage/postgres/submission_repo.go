package postgres

import (
	"context"
	"errors"
	"fmt"

	"rewards-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SubmissionRepo implements ports.SubmissionRepository. It also reads
// the tasks table since a submission is only reviewable against its
// task's reward configuration.
type SubmissionRepo struct {
	pool Pool
}

// NewSubmissionRepo creates a new SubmissionRepo.
func NewSubmissionRepo(pool Pool) *SubmissionRepo {
	return &SubmissionRepo{pool: pool}
}

const submissionColumns = `id, task_id, user_id, status, reject_reason, submitted_at, reviewed_at`

func scanSubmission(row pgx.Row) (*domain.TaskSubmission, error) {
	s := &domain.TaskSubmission{}
	var status string
	err := row.Scan(
		&s.ID, &s.TaskID, &s.UserID, &status,
		&s.RejectReason, &s.SubmittedAt, &s.ReviewedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.Status = domain.SubmissionStatus(status)
	return s, nil
}

// Create inserts a new task submission.
func (r *SubmissionRepo) Create(ctx context.Context, sub *domain.TaskSubmission) error {
	query := `INSERT INTO task_submissions (id, task_id, user_id, status, reject_reason, submitted_at, reviewed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		sub.ID, sub.TaskID, sub.UserID, string(sub.Status),
		sub.RejectReason, sub.SubmittedAt, sub.ReviewedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// GetByID fetches a submission (non-locking read).
func (r *SubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TaskSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM task_submissions WHERE id = $1`

	sub, err := scanSubmission(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get submission by id: %w", err)
	}
	return sub, nil
}

// GetByIDForUpdate fetches a submission with pessimistic locking.
// This MUST be called within a transaction.
func (r *SubmissionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.TaskSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM task_submissions WHERE id = $1 FOR UPDATE`

	sub, err := scanSubmission(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get submission for update: %w", err)
	}
	return sub, nil
}

// UpdateStatus transitions a submission and stamps the review time.
func (r *SubmissionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.SubmissionStatus, reason *string) error {
	query := `UPDATE task_submissions SET status = $1, reject_reason = $2, reviewed_at = NOW() WHERE id = $3`

	tag, err := tx.Exec(ctx, query, string(status), reason, id)
	if err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("submission not found: %s", id)
	}
	return nil
}

// GetTask fetches a task's reward configuration.
func (r *SubmissionRepo) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT id, title, reward_amount, reward_coins, active, created_at FROM tasks WHERE id = $1`

	task := &domain.Task{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&task.ID, &task.Title, &task.RewardAmount, &task.RewardCoins,
		&task.Active, &task.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get task by id: %w", err)
	}
	return task, nil
}
