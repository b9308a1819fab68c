package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"rewards-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository. The table is
// append-only: there is no update or delete path.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Create appends one ledger entry within the caller's transaction.
func (r *LedgerRepo) Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error {
	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal entry metadata: %w", err)
	}

	query := `INSERT INTO ledger_entries (id, wallet_id, user_id, amount, kind, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = tx.Exec(ctx, query,
		entry.ID, entry.WalletID, entry.UserID, entry.Amount,
		string(entry.Kind), meta, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// ListByWallet pages through a wallet's entries, newest first.
func (r *LedgerRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.LedgerEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	var total int64
	countQuery := `SELECT COUNT(*) FROM ledger_entries WHERE wallet_id = $1`
	if err := r.pool.QueryRow(ctx, countQuery, walletID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	query := `SELECT id, wallet_id, user_id, amount, kind, metadata, created_at
		FROM ledger_entries WHERE wallet_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, walletID, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var kind string
		var meta []byte
		if err := rows.Scan(&e.ID, &e.WalletID, &e.UserID, &e.Amount, &kind, &meta, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.Kind = domain.EntryKind(kind)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, 0, fmt.Errorf("unmarshal entry metadata: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// SumByWallet returns the signed sum of non-informational entries.
// WITHDRAWAL_REQUEST and WITHDRAWAL_REFUND record bucket moves, not
// balance changes, so they are excluded from the replay.
func (r *LedgerRepo) SumByWallet(ctx context.Context, walletID uuid.UUID) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries
		WHERE wallet_id = $1 AND kind NOT IN ($2, $3)`

	var sum int64
	err := r.pool.QueryRow(ctx, query, walletID,
		string(domain.KindWithdrawalRequest), string(domain.KindWithdrawalRefund),
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum ledger entries: %w", err)
	}
	return sum, nil
}
