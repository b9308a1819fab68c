package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"rewards-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	taskID := uuid.New()
	entry := &domain.LedgerEntry{
		ID:        uuid.New(),
		WalletID:  uuid.New(),
		UserID:    uuid.New(),
		Amount:    500,
		Kind:      domain.KindTaskReward,
		Metadata:  domain.EntryMetadata{TaskID: &taskID},
		CreatedAt: time.Now().UTC(),
	}
	meta, err := json.Marshal(entry.Metadata)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(entry.ID, entry.WalletID, entry.UserID, entry.Amount,
			string(entry.Kind), meta, entry.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, entry)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_ListByWallet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	walletID := uuid.New()
	userID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM ledger_entries`).
		WithArgs(walletID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))

	rows := pgxmock.NewRows([]string{"id", "wallet_id", "user_id", "amount", "kind", "metadata", "created_at"}).
		AddRow(uuid.New(), walletID, userID, int64(500), "TASK_REWARD", []byte(`{}`), now).
		AddRow(uuid.New(), walletID, userID, int64(-200), "SPEND", []byte(`{}`), now.Add(-time.Minute))

	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE wallet_id").
		WithArgs(walletID, 20, 0).
		WillReturnRows(rows)

	entries, total, err := repo.ListByWallet(context.Background(), walletID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.KindTaskReward, entries[0].Kind)
	assert.Equal(t, int64(-200), entries[1].Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_ListByWallet_MetadataRoundTrip(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	walletID := uuid.New()
	withdrawalID := uuid.New()
	meta, err := json.Marshal(domain.EntryMetadata{WithdrawalID: &withdrawalID})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM ledger_entries`).
		WithArgs(walletID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))

	rows := pgxmock.NewRows([]string{"id", "wallet_id", "user_id", "amount", "kind", "metadata", "created_at"}).
		AddRow(uuid.New(), walletID, uuid.New(), int64(-25000), "WITHDRAWAL_REQUEST", meta, time.Now().UTC())

	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE wallet_id").
		WithArgs(walletID, 20, 0).
		WillReturnRows(rows)

	entries, _, err := repo.ListByWallet(context.Background(), walletID, 1, 20)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Metadata.WithdrawalID)
	assert.Equal(t, withdrawalID, *entries[0].Metadata.WithdrawalID)
	assert.True(t, entries[0].Kind.Informational())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_SumByWallet_ExcludesInformational(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	walletID := uuid.New()

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) FROM ledger_entries`).
		WithArgs(walletID, "WITHDRAWAL_REQUEST", "WITHDRAWAL_REFUND").
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(int64(75000)))

	sum, err := repo.SumByWallet(context.Background(), walletID)
	require.NoError(t, err)
	assert.Equal(t, int64(75000), sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}
