package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rewards-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WithdrawalRepo implements ports.WithdrawalRepository. Rows are never
// deleted; terminal rows stay for reconciliation and audit.
type WithdrawalRepo struct {
	pool Pool
}

// NewWithdrawalRepo creates a new WithdrawalRepo.
func NewWithdrawalRepo(pool Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

const withdrawalColumns = `id, user_id, amount, status, upi_id, payout_ref, tx_id, requested_at, processed_at`

func scanWithdrawal(row pgx.Row) (*domain.Withdrawal, error) {
	w := &domain.Withdrawal{}
	var status string
	err := row.Scan(
		&w.ID, &w.UserID, &w.Amount, &status, &w.UpiID,
		&w.PayoutRef, &w.TxID, &w.RequestedAt, &w.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	w.Status = domain.WithdrawalStatus(status)
	return w, nil
}

// Create inserts a withdrawal within the caller's transaction so the
// row and its wallet hold commit together.
func (r *WithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal) error {
	query := `INSERT INTO withdrawals (id, user_id, amount, status, upi_id, payout_ref, tx_id, requested_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		w.ID, w.UserID, w.Amount, string(w.Status), w.UpiID,
		w.PayoutRef, w.TxID, w.RequestedAt, w.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	return nil
}

// GetByID fetches a withdrawal (non-locking read).
func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`

	w, err := scanWithdrawal(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get withdrawal by id: %w", err)
	}
	return w, nil
}

// GetByIDForUpdate fetches a withdrawal with pessimistic locking.
// This MUST be called within a transaction; it is the durable guard
// against concurrent webhook replays settling twice.
func (r *WithdrawalRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1 FOR UPDATE`

	w, err := scanWithdrawal(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get withdrawal for update: %w", err)
	}
	return w, nil
}

// UpdateStatus transitions a withdrawal. txID and processedAt are set
// only when the event carries them.
func (r *WithdrawalRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.WithdrawalStatus, txID *string, processedAt *time.Time) error {
	query := `UPDATE withdrawals SET status = $1,
		tx_id = COALESCE($2, tx_id),
		processed_at = COALESCE($3, processed_at)
		WHERE id = $4`

	tag, err := tx.Exec(ctx, query, string(status), txID, processedAt, id)
	if err != nil {
		return fmt.Errorf("update withdrawal status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("withdrawal not found: %s", id)
	}
	return nil
}

// ListPendingBelow returns PENDING withdrawals under maxAmount, oldest
// first, feeding the auto-processing pass.
func (r *WithdrawalRepo) ListPendingBelow(ctx context.Context, maxAmount int64, limit int) ([]domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals
		WHERE status = $1 AND amount <= $2
		ORDER BY requested_at ASC LIMIT $3`

	rows, err := r.pool.Query(ctx, query, string(domain.WithdrawalPending), maxAmount, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending withdrawals: %w", err)
	}
	defer rows.Close()

	var ws []domain.Withdrawal
	for rows.Next() {
		var w domain.Withdrawal
		var status string
		if err := rows.Scan(&w.ID, &w.UserID, &w.Amount, &status, &w.UpiID,
			&w.PayoutRef, &w.TxID, &w.RequestedAt, &w.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		w.Status = domain.WithdrawalStatus(status)
		ws = append(ws, w)
	}
	return ws, rows.Err()
}
