package service

import (
	"context"
	"testing"

	"rewards-ledger/internal/core/domain"
	"rewards-ledger/internal/core/ports"
	"rewards-ledger/internal/core/ports/mocks"
	"rewards-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type walletTestDeps struct {
	svc        *WalletServiceImpl
	walletRepo *mocks.MockWalletRepository
	ledgerRepo *mocks.MockLedgerRepository
	transactor *mocks.MockDBTransactor
	ctrl       *gomock.Controller
}

func setupWalletService(t *testing.T) *walletTestDeps {
	ctrl := gomock.NewController(t)
	d := &walletTestDeps{
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		ledgerRepo: mocks.NewMockLedgerRepository(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewWalletService(d.walletRepo, d.ledgerRepo, d.transactor, zerolog.Nop())
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func testWallet(userID uuid.UUID) *domain.Wallet {
	return &domain.Wallet{
		ID:            uuid.New(),
		UserID:        userID,
		Balance:       100000,
		Withdrawable:  60000,
		PendingAmount: 10000,
		LockedAmount:  30000,
		Coins:         500,
		LockedCoins:   200,
		TotalEarned:   100000,
	}
}

// ==================== Credit Tests ====================

func TestWalletService_Credit_Success(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}
	wallet := testWallet(userID)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateBalances(ctx, tx, wallet).Return(nil)
	d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	entry, err := d.svc.Credit(ctx, ports.CreditRequest{
		UserID: userID,
		Amount: 5000,
		Kind:   domain.KindTaskReward,
	})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(5000), entry.Amount)
	assert.Equal(t, domain.KindTaskReward, entry.Kind)

	// balance, withdrawable and totalEarned all move together
	assert.Equal(t, int64(105000), wallet.Balance)
	assert.Equal(t, int64(65000), wallet.Withdrawable)
	assert.Equal(t, int64(105000), wallet.TotalEarned)
}

func TestWalletService_Credit_NonEarningKindsSkipTotalEarned(t *testing.T) {
	// Conversions and admin corrections add balance without counting
	// as new income; only reward kinds grow the lifetime total.
	for _, kind := range []domain.EntryKind{domain.KindConversion, domain.KindAdminCredit} {
		t.Run(string(kind), func(t *testing.T) {
			d := setupWalletService(t)
			defer d.ctrl.Finish()

			ctx := context.Background()
			userID := uuid.New()
			tx := &mockTx{}
			wallet := testWallet(userID)

			d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
			d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(wallet, nil)
			d.walletRepo.EXPECT().UpdateBalances(ctx, tx, wallet).Return(nil)
			d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

			_, err := d.svc.Credit(ctx, ports.CreditRequest{
				UserID: userID,
				Amount: 3000,
				Kind:   kind,
			})
			require.NoError(t, err)

			assert.Equal(t, int64(103000), wallet.Balance)
			assert.Equal(t, int64(63000), wallet.Withdrawable)
			assert.Equal(t, int64(100000), wallet.TotalEarned)
		})
	}
}

func TestWalletService_Credit_InvalidAmount(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	tx := &mockTx{}
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)

	entry, err := d.svc.Credit(context.Background(), ports.CreditRequest{
		UserID: uuid.New(),
		Amount: 0,
		Kind:   domain.KindTaskReward,
	})
	assert.Nil(t, entry)
	assertAppError(t, err, "WAL_003")
}

func TestWalletService_Credit_WalletNotFound(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(nil, nil)

	entry, err := d.svc.Credit(ctx, ports.CreditRequest{
		UserID: userID,
		Amount: 5000,
		Kind:   domain.KindReferralCommission,
	})
	assert.Nil(t, entry)
	assertAppError(t, err, "WAL_004")
}

// ==================== Debit Tests ====================

func TestWalletService_Debit_Success(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}
	wallet := testWallet(userID)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateBalances(ctx, tx, wallet).Return(nil)
	d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	entry, err := d.svc.Debit(ctx, ports.DebitRequest{
		UserID: userID,
		Amount: 20000,
		Bucket: domain.BucketWithdrawable,
		Kind:   domain.KindSpend,
	})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(-20000), entry.Amount)

	assert.Equal(t, int64(80000), wallet.Balance)
	assert.Equal(t, int64(40000), wallet.Withdrawable)
	// totalEarned never decreases
	assert.Equal(t, int64(100000), wallet.TotalEarned)
}

func TestWalletService_Debit_InsufficientFunds(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}
	wallet := testWallet(userID)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(wallet, nil)

	entry, err := d.svc.Debit(ctx, ports.DebitRequest{
		UserID: userID,
		Amount: 60001,
		Bucket: domain.BucketWithdrawable,
		Kind:   domain.KindSpend,
	})
	assert.Nil(t, entry)
	assertAppError(t, err, "WAL_001")

	// nothing applied on rejection
	assert.Equal(t, int64(60000), wallet.Withdrawable)
	assert.Equal(t, int64(100000), wallet.Balance)
}

func TestWalletService_Debit_NonCurrencyBucket(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	tx := &mockTx{}
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)

	entry, err := d.svc.Debit(context.Background(), ports.DebitRequest{
		UserID: uuid.New(),
		Amount: 100,
		Bucket: domain.BucketCoins,
		Kind:   domain.KindSpend,
	})
	assert.Nil(t, entry)
	assertAppError(t, err, "WAL_003")
}

// ==================== AdjustCoins Tests ====================

func TestWalletService_AdjustCoins_Success(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}
	wallet := testWallet(userID)

	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateBalances(ctx, tx, wallet).Return(nil)

	// unlock move: locked -> spendable
	updated, err := d.svc.AdjustCoinsInTx(ctx, tx, userID, 200, -200)
	require.NoError(t, err)
	assert.Equal(t, int64(700), updated.Coins)
	assert.Equal(t, int64(0), updated.LockedCoins)
}

func TestWalletService_AdjustCoins_InsufficientCoins(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}
	wallet := testWallet(userID)

	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(wallet, nil)

	updated, err := d.svc.AdjustCoinsInTx(ctx, tx, userID, -501, 0)
	assert.Nil(t, updated)
	assertAppError(t, err, "COIN_001")
	assert.Equal(t, int64(500), wallet.Coins)
}

// ==================== Reserve / Release / Settle Tests ====================

func TestWalletService_Reserve_MovesToPending(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}
	wallet := testWallet(userID)

	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateBalances(ctx, tx, wallet).Return(nil)
	d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	entry, err := d.svc.Reserve(ctx, tx, userID, 50000, domain.EntryMetadata{})
	require.NoError(t, err)
	assert.Equal(t, domain.KindWithdrawalRequest, entry.Kind)
	assert.Equal(t, int64(-50000), entry.Amount)
	assert.True(t, entry.Kind.Informational())

	assert.Equal(t, int64(10000), wallet.Withdrawable)
	assert.Equal(t, int64(60000), wallet.PendingAmount)
	// balance is untouched by the hold
	assert.Equal(t, int64(100000), wallet.Balance)
}

func TestWalletService_Reserve_InsufficientFunds(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}
	wallet := testWallet(userID)

	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(wallet, nil)

	entry, err := d.svc.Reserve(ctx, tx, userID, 60001, domain.EntryMetadata{})
	assert.Nil(t, entry)
	assertAppError(t, err, "WAL_001")
}

func TestWalletService_Release_RefundsHold(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}
	wallet := testWallet(userID)

	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateBalances(ctx, tx, wallet).Return(nil)
	d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	entry, err := d.svc.Release(ctx, tx, userID, 10000, domain.EntryMetadata{})
	require.NoError(t, err)
	assert.Equal(t, domain.KindWithdrawalRefund, entry.Kind)
	assert.Equal(t, int64(10000), entry.Amount)

	assert.Equal(t, int64(70000), wallet.Withdrawable)
	assert.Equal(t, int64(0), wallet.PendingAmount)
	assert.Equal(t, int64(100000), wallet.Balance)
}

func TestWalletService_Settle_DropsPendingOnly(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}
	wallet := testWallet(userID)

	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateBalances(ctx, tx, wallet).Return(nil)

	err := d.svc.Settle(ctx, tx, userID, 10000)
	require.NoError(t, err)

	assert.Equal(t, int64(0), wallet.PendingAmount)
	assert.Equal(t, int64(60000), wallet.Withdrawable)
}

func TestWalletService_Settle_MoreThanPending(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}
	wallet := testWallet(userID)

	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(wallet, nil)

	err := d.svc.Settle(ctx, tx, userID, 10001)
	assertAppError(t, err, "SYS_001")
}

// ==================== Adjust Tests ====================

func TestWalletService_Adjust_Credit(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	adminID := uuid.New()
	tx := &mockTx{}
	wallet := testWallet(userID)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateBalances(ctx, tx, wallet).Return(nil)
	d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	entry, err := d.svc.Adjust(ctx, adminID, userID, 2500, "support credit")
	require.NoError(t, err)
	assert.Equal(t, domain.KindAdminCredit, entry.Kind)
	require.NotNil(t, entry.Metadata.AdminID)
	assert.Equal(t, adminID, *entry.Metadata.AdminID)
	assert.Equal(t, "support credit", entry.Metadata.Reason)
}

func TestWalletService_Adjust_Debit(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}
	wallet := testWallet(userID)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateBalances(ctx, tx, wallet).Return(nil)
	d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	entry, err := d.svc.Adjust(ctx, uuid.New(), userID, -2500, "chargeback")
	require.NoError(t, err)
	assert.Equal(t, domain.KindAdminDebit, entry.Kind)
	assert.Equal(t, int64(-2500), entry.Amount)
}

func TestWalletService_Adjust_Zero(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	entry, err := d.svc.Adjust(context.Background(), uuid.New(), uuid.New(), 0, "noop")
	assert.Nil(t, entry)
	assertAppError(t, err, "WAL_003")
}

// ==================== Helper ====================

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}
