package service

import (
	"context"
	"testing"
	"time"

	"rewards-ledger/internal/core/domain"
	"rewards-ledger/internal/core/ports"
	"rewards-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type coinTestDeps struct {
	svc        *CoinServiceImpl
	coinRepo   *mocks.MockCoinRepository
	walletRepo *mocks.MockWalletRepository
	walletSvc  *mocks.MockWalletService
	transactor *mocks.MockDBTransactor
	ctrl       *gomock.Controller
}

func testPolicy() domain.RewardsPolicy {
	return domain.RewardsPolicy{
		Version:          "test",
		Rate:             domain.ConversionRate{Coins: 100, Amount: 100},
		MinConvertCoins:  100,
		CoinLockDuration: 24 * time.Hour,
		CommissionBase:   10000,
		CommissionLevels: []domain.CommissionLevel{
			{Level: 1, Percent: 10},
			{Level: 2, Percent: 5},
			{Level: 3, Percent: 2},
		},
		MinWithdrawal:        10000,
		AutoApproveThreshold: 50000,
	}
}

func setupCoinService(t *testing.T) *coinTestDeps {
	ctrl := gomock.NewController(t)
	d := &coinTestDeps{
		coinRepo:   mocks.NewMockCoinRepository(ctrl),
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		walletSvc:  mocks.NewMockWalletService(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewCoinService(d.coinRepo, d.walletRepo, d.walletSvc, d.transactor, testPolicy(), zerolog.Nop())
	return d
}

// ==================== GrantLocked Tests ====================

func TestCoinService_GrantLocked_Success(t *testing.T) {
	d := setupCoinService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}
	wallet := testWallet(userID)

	d.walletSvc.EXPECT().AdjustCoinsInTx(ctx, tx, userID, int64(0), int64(50)).Return(wallet, nil)
	d.coinRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	before := time.Now().UTC()
	ct, err := d.svc.GrantLockedInTx(ctx, tx, userID, 50, domain.EntryMetadata{})
	require.NoError(t, err)
	require.NotNil(t, ct)
	assert.Equal(t, domain.CoinTxLocked, ct.Status)
	assert.Equal(t, int64(50), ct.Coins)
	require.NotNil(t, ct.UnlocksAt)
	// unlocks 24h out per policy
	assert.WithinDuration(t, before.Add(24*time.Hour), *ct.UnlocksAt, 5*time.Second)
}

func TestCoinService_GrantLocked_InvalidAmount(t *testing.T) {
	d := setupCoinService(t)
	defer d.ctrl.Finish()

	ct, err := d.svc.GrantLockedInTx(context.Background(), &mockTx{}, uuid.New(), 0, domain.EntryMetadata{})
	assert.Nil(t, ct)
	assertAppError(t, err, "WAL_003")
}

// ==================== UnlockMatured Tests ====================

func TestCoinService_UnlockMatured_MovesCoins(t *testing.T) {
	d := setupCoinService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}
	wallet := testWallet(userID)

	matured := []domain.CoinTransaction{
		{ID: uuid.New(), WalletID: wallet.ID, Coins: 120},
		{ID: uuid.New(), WalletID: wallet.ID, Coins: 80},
	}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(wallet, nil)
	d.coinRepo.EXPECT().ListMaturedLocked(ctx, tx, wallet.ID, gomock.Any()).Return(matured, nil)
	d.coinRepo.EXPECT().MarkCompleted(ctx, tx, []uuid.UUID{matured[0].ID, matured[1].ID}).Return(nil)
	d.walletSvc.EXPECT().AdjustCoinsInTx(ctx, tx, userID, int64(200), int64(-200)).Return(wallet, nil)

	unlocked, err := d.svc.UnlockMatured(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), unlocked)
}

func TestCoinService_UnlockMatured_NothingMatured(t *testing.T) {
	d := setupCoinService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}
	wallet := testWallet(userID)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(wallet, nil)
	d.coinRepo.EXPECT().ListMaturedLocked(ctx, tx, wallet.ID, gomock.Any()).Return(nil, nil)

	unlocked, err := d.svc.UnlockMatured(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unlocked)
}

// ==================== Convert Tests ====================

func TestCoinService_Convert_Success(t *testing.T) {
	d := setupCoinService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}
	wallet := testWallet(userID)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	// lazy unlock first, nothing matured
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(wallet, nil)
	d.coinRepo.EXPECT().ListMaturedLocked(ctx, tx, wallet.ID, gomock.Any()).Return(nil, nil)
	// debit 300 coins
	d.walletSvc.EXPECT().AdjustCoinsInTx(ctx, tx, userID, int64(-300), int64(0)).Return(wallet, nil)
	// negative coin transaction row
	d.coinRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, ct *domain.CoinTransaction) error {
			assert.Equal(t, int64(-300), ct.Coins)
			assert.Equal(t, domain.KindConversion, ct.Kind)
			assert.Equal(t, domain.CoinTxCompleted, ct.Status)
			return nil
		})
	// 300 coins at 100:100 = 300 paise credited
	d.walletSvc.EXPECT().CreditInTx(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, req ports.CreditRequest) (*domain.LedgerEntry, error) {
			assert.Equal(t, int64(300), req.Amount)
			assert.Equal(t, domain.KindConversion, req.Kind)
			return &domain.LedgerEntry{}, nil
		})

	d.walletRepo.EXPECT().GetByUserID(ctx, userID).Return(wallet, nil)

	updated, err := d.svc.Convert(ctx, userID, 300)
	require.NoError(t, err)
	assert.Equal(t, wallet, updated)
}

func TestCoinService_Convert_BelowMinimum(t *testing.T) {
	d := setupCoinService(t)
	defer d.ctrl.Finish()

	updated, err := d.svc.Convert(context.Background(), uuid.New(), 99)
	assert.Nil(t, updated)
	assertAppError(t, err, "COIN_002")
}

func TestCoinService_Convert_NotMultipleOfRate(t *testing.T) {
	d := setupCoinService(t)
	defer d.ctrl.Finish()

	updated, err := d.svc.Convert(context.Background(), uuid.New(), 150)
	assert.Nil(t, updated)
	assertAppError(t, err, "WAL_003")
}

// ==================== Sweep Tests ====================

func TestCoinService_SweepLocked_ContinuesOnFailure(t *testing.T) {
	d := setupCoinService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	badUser := uuid.New()
	goodUser := uuid.New()
	tx := &mockTx{}
	wallet := testWallet(goodUser)

	d.walletRepo.EXPECT().ListUserIDsWithLockedCoins(ctx, sweepBatchSize).
		Return([]uuid.UUID{badUser, goodUser}, nil)

	// first wallet fails to lock
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, badUser).Return(nil, assert.AnError)

	// second wallet succeeds
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, goodUser).Return(wallet, nil)
	d.coinRepo.EXPECT().ListMaturedLocked(ctx, tx, wallet.ID, gomock.Any()).Return(nil, nil)

	err := d.svc.SweepLocked(ctx)
	require.NoError(t, err)
}
