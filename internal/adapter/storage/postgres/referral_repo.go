package postgres

import (
	"context"
	"errors"
	"fmt"

	"rewards-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ReferralRepo implements ports.ReferralRepository.
type ReferralRepo struct {
	pool Pool
}

// NewReferralRepo creates a new ReferralRepo.
func NewReferralRepo(pool Pool) *ReferralRepo {
	return &ReferralRepo{pool: pool}
}

const referralColumns = `id, referrer_id, referred_user_id, level, status, commission_amount, verified_at, created_at`

func scanReferral(row pgx.Row) (*domain.Referral, error) {
	ref := &domain.Referral{}
	var status string
	err := row.Scan(
		&ref.ID, &ref.ReferrerID, &ref.ReferredUserID, &ref.Level,
		&status, &ref.CommissionAmount, &ref.VerifiedAt, &ref.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	ref.Status = domain.ReferralStatus(status)
	return ref, nil
}

// Create inserts a referral chain row within the caller's transaction.
func (r *ReferralRepo) Create(ctx context.Context, tx pgx.Tx, ref *domain.Referral) error {
	query := `INSERT INTO referrals (id, referrer_id, referred_user_id, level, status, commission_amount, verified_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		ref.ID, ref.ReferrerID, ref.ReferredUserID, ref.Level,
		string(ref.Status), ref.CommissionAmount, ref.VerifiedAt, ref.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert referral: %w", err)
	}
	return nil
}

// GetByID fetches a referral row (non-locking read).
func (r *ReferralRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Referral, error) {
	query := `SELECT ` + referralColumns + ` FROM referrals WHERE id = $1`

	ref, err := scanReferral(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get referral by id: %w", err)
	}
	return ref, nil
}

// GetByIDForUpdate fetches a referral row with pessimistic locking.
// This MUST be called within a transaction.
func (r *ReferralRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Referral, error) {
	query := `SELECT ` + referralColumns + ` FROM referrals WHERE id = $1 FOR UPDATE`

	ref, err := scanReferral(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get referral for update: %w", err)
	}
	return ref, nil
}

// GetChainForUpdate returns every chain row for a referred user, level
// ascending, locked for the duration of the transaction.
func (r *ReferralRepo) GetChainForUpdate(ctx context.Context, tx pgx.Tx, referredUserID uuid.UUID) ([]domain.Referral, error) {
	query := `SELECT ` + referralColumns + ` FROM referrals
		WHERE referred_user_id = $1 ORDER BY level ASC FOR UPDATE`

	rows, err := tx.Query(ctx, query, referredUserID)
	if err != nil {
		return nil, fmt.Errorf("get referral chain: %w", err)
	}
	defer rows.Close()

	var chain []domain.Referral
	for rows.Next() {
		var ref domain.Referral
		var status string
		if err := rows.Scan(&ref.ID, &ref.ReferrerID, &ref.ReferredUserID, &ref.Level,
			&status, &ref.CommissionAmount, &ref.VerifiedAt, &ref.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan referral: %w", err)
		}
		ref.Status = domain.ReferralStatus(status)
		chain = append(chain, ref)
	}
	return chain, rows.Err()
}

// UpdateStatus transitions a referral row and records the paid
// commission. verified_at is stamped on the verified transition.
func (r *ReferralRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.ReferralStatus, commissionAmount int64) error {
	query := `UPDATE referrals SET status = $1, commission_amount = $2,
		verified_at = CASE WHEN $1 = 'verified' THEN NOW() ELSE verified_at END
		WHERE id = $3`

	tag, err := tx.Exec(ctx, query, string(status), commissionAmount, id)
	if err != nil {
		return fmt.Errorf("update referral status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("referral not found: %s", id)
	}
	return nil
}
