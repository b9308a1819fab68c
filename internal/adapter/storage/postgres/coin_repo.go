package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rewards-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CoinRepo implements ports.CoinRepository.
type CoinRepo struct {
	pool Pool
}

// NewCoinRepo creates a new CoinRepo.
func NewCoinRepo(pool Pool) *CoinRepo {
	return &CoinRepo{pool: pool}
}

// Create inserts a coin transaction within the caller's transaction.
func (r *CoinRepo) Create(ctx context.Context, tx pgx.Tx, ct *domain.CoinTransaction) error {
	meta, err := json.Marshal(ct.Metadata)
	if err != nil {
		return fmt.Errorf("marshal coin metadata: %w", err)
	}

	query := `INSERT INTO coin_transactions (id, wallet_id, user_id, coins, kind, status, unlocks_at, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = tx.Exec(ctx, query,
		ct.ID, ct.WalletID, ct.UserID, ct.Coins,
		string(ct.Kind), string(ct.Status), ct.UnlocksAt, meta, ct.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert coin transaction: %w", err)
	}
	return nil
}

// ListMaturedLocked returns LOCKED grants whose unlock time has passed.
// Runs inside the wallet-locking transaction so concurrent unlockers
// serialize on the wallet row.
func (r *CoinRepo) ListMaturedLocked(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, now time.Time) ([]domain.CoinTransaction, error) {
	query := `SELECT id, wallet_id, user_id, coins, kind, status, unlocks_at, metadata, created_at
		FROM coin_transactions
		WHERE wallet_id = $1 AND status = $2 AND unlocks_at <= $3
		ORDER BY unlocks_at ASC`

	rows, err := tx.Query(ctx, query, walletID, string(domain.CoinTxLocked), now)
	if err != nil {
		return nil, fmt.Errorf("list matured grants: %w", err)
	}
	defer rows.Close()

	return scanCoinTransactions(rows)
}

// MarkCompleted flips the given grants to COMPLETED.
func (r *CoinRepo) MarkCompleted(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	query := `UPDATE coin_transactions SET status = $1 WHERE id = ANY($2)`

	tag, err := tx.Exec(ctx, query, string(domain.CoinTxCompleted), ids)
	if err != nil {
		return fmt.Errorf("complete coin transactions: %w", err)
	}
	if int(tag.RowsAffected()) != len(ids) {
		return fmt.Errorf("complete coin transactions: updated %d of %d", tag.RowsAffected(), len(ids))
	}
	return nil
}

// ListByWallet pages through a wallet's coin history, newest first.
func (r *CoinRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.CoinTransaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	var total int64
	countQuery := `SELECT COUNT(*) FROM coin_transactions WHERE wallet_id = $1`
	if err := r.pool.QueryRow(ctx, countQuery, walletID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count coin transactions: %w", err)
	}

	query := `SELECT id, wallet_id, user_id, coins, kind, status, unlocks_at, metadata, created_at
		FROM coin_transactions WHERE wallet_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, walletID, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list coin transactions: %w", err)
	}
	defer rows.Close()

	cts, err := scanCoinTransactions(rows)
	if err != nil {
		return nil, 0, err
	}
	return cts, total, nil
}

func scanCoinTransactions(rows pgx.Rows) ([]domain.CoinTransaction, error) {
	var cts []domain.CoinTransaction
	for rows.Next() {
		var ct domain.CoinTransaction
		var kind, status string
		var meta []byte
		if err := rows.Scan(&ct.ID, &ct.WalletID, &ct.UserID, &ct.Coins,
			&kind, &status, &ct.UnlocksAt, &meta, &ct.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan coin transaction: %w", err)
		}
		ct.Kind = domain.EntryKind(kind)
		ct.Status = domain.CoinTxStatus(status)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &ct.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal coin metadata: %w", err)
			}
		}
		cts = append(cts, ct)
	}
	return cts, rows.Err()
}
