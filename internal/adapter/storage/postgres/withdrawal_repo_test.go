package postgres

import (
	"context"
	"testing"
	"time"

	"rewards-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWithdrawal(userID uuid.UUID) *domain.Withdrawal {
	w := &domain.Withdrawal{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      25000,
		Status:      domain.WithdrawalPending,
		UpiID:       "user@upi",
		RequestedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	w.PayoutRef = domain.BuildPayoutRef(w.ID)
	return w
}

func withdrawalTestColumns() []string {
	return []string{"id", "user_id", "amount", "status", "upi_id", "payout_ref", "tx_id", "requested_at", "processed_at"}
}

func withdrawalRow(w *domain.Withdrawal) *pgxmock.Rows {
	return pgxmock.NewRows(withdrawalTestColumns()).AddRow(
		w.ID, w.UserID, w.Amount, string(w.Status), w.UpiID,
		w.PayoutRef, w.TxID, w.RequestedAt, w.ProcessedAt,
	)
}

func TestWithdrawalRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	w := newTestWithdrawal(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO withdrawals").
		WithArgs(w.ID, w.UserID, w.Amount, string(w.Status), w.UpiID,
			w.PayoutRef, w.TxID, w.RequestedAt, w.ProcessedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, w)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_GetByIDForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	w := newTestWithdrawal(uuid.New())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM withdrawals WHERE id .+ FOR UPDATE").
		WithArgs(w.ID).
		WillReturnRows(withdrawalRow(w))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetByIDForUpdate(context.Background(), tx, w.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, w.PayoutRef, result.PayoutRef)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM withdrawals WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(withdrawalTestColumns()))

	result, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_UpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	id := uuid.New()
	utr := "UTR123"
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE withdrawals SET status").
		WithArgs(string(domain.WithdrawalCompleted), &utr, &now, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateStatus(context.Background(), tx, id, domain.WithdrawalCompleted, &utr, &now)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_UpdateStatus_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE withdrawals SET status").
		WithArgs(string(domain.WithdrawalFailed), (*string)(nil), (*time.Time)(nil), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateStatus(context.Background(), tx, id, domain.WithdrawalFailed, nil, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "withdrawal not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_ListPendingBelow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	w1 := newTestWithdrawal(uuid.New())
	w2 := newTestWithdrawal(uuid.New())
	w2.Amount = 15000

	rows := pgxmock.NewRows(withdrawalTestColumns()).
		AddRow(w1.ID, w1.UserID, w1.Amount, string(w1.Status), w1.UpiID,
			w1.PayoutRef, w1.TxID, w1.RequestedAt, w1.ProcessedAt).
		AddRow(w2.ID, w2.UserID, w2.Amount, string(w2.Status), w2.UpiID,
			w2.PayoutRef, w2.TxID, w2.RequestedAt, w2.ProcessedAt)

	mock.ExpectQuery("SELECT .+ FROM withdrawals").
		WithArgs(string(domain.WithdrawalPending), int64(50000), 100).
		WillReturnRows(rows)

	result, err := repo.ListPendingBelow(context.Background(), 50000, 100)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, w1.ID, result[0].ID)
	assert.Equal(t, int64(15000), result[1].Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
