package service

import (
	"context"
	"testing"

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

type referralTestDeps struct {
	svc          *ReferralServiceImpl
	referralRepo *mocks.MockReferralRepository
	walletSvc    *mocks.MockWalletService
	transactor   *mocks.MockDBTransactor
	ctrl         *gomock.Controller
}

func setupReferralService(t *testing.T) *referralTestDeps {
	ctrl := gomock.NewController(t)
	d := &referralTestDeps{
		referralRepo: mocks.NewMockReferralRepository(ctrl),
		walletSvc:    mocks.NewMockWalletService(ctrl),
		transactor:   mocks.NewMockDBTransactor(ctrl),
		ctrl:         ctrl,
	}
	d.svc = NewReferralService(d.referralRepo, d.walletSvc, d.transactor, testPolicy(), zerolog.Nop())
	return d
}

func testChain(referredUserID uuid.UUID) []domain.Referral {
	return []domain.Referral{
		{ID: uuid.New(), ReferrerID: uuid.New(), ReferredUserID: referredUserID, Level: 1, Status: domain.ReferralPending},
		{ID: uuid.New(), ReferrerID: uuid.New(), ReferredUserID: referredUserID, Level: 2, Status: domain.ReferralPending},
		{ID: uuid.New(), ReferrerID: uuid.New(), ReferredUserID: referredUserID, Level: 3, Status: domain.ReferralPending},
	}
}

func TestReferralService_Verify_PaysAllLevels(t *testing.T) {
	d := setupReferralService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	referredUserID := uuid.New()
	chain := testChain(referredUserID)
	target := chain[0]
	tx := &mockTx{}

	d.referralRepo.EXPECT().GetByID(ctx, target.ID).Return(&target, nil)

	// chain lookup
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.referralRepo.EXPECT().GetChainForUpdate(ctx, tx, referredUserID).Return(chain, nil)

	// one tx per level: lock, credit, flip to verified
	// base 10000: level 1 = 10%, level 2 = 5%, level 3 = 2%
	wantAmounts := []int64{1000, 500, 200}
	for i, row := range chain {
		row := row
		d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
		d.referralRepo.EXPECT().GetByIDForUpdate(ctx, tx, row.ID).Return(&row, nil)
		d.walletSvc.EXPECT().CreditInTx(ctx, tx, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ pgx.Tx, req ports.CreditRequest) (*domain.LedgerEntry, error) {
				assert.Equal(t, row.ReferrerID, req.UserID)
				assert.Equal(t, wantAmounts[i], req.Amount)
				assert.Equal(t, domain.KindReferralCommission, req.Kind)
				require.NotNil(t, req.Metadata.ReferralLevel)
				assert.Equal(t, row.Level, *req.Metadata.ReferralLevel)
				return &domain.LedgerEntry{ID: uuid.New(), UserID: req.UserID, Amount: req.Amount, Kind: req.Kind}, nil
			})
		d.referralRepo.EXPECT().UpdateStatus(ctx, tx, row.ID, domain.ReferralVerified, wantAmounts[i]).Return(nil)
	}

	entries, err := d.svc.Verify(ctx, target.ID, nil)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, int64(1000), entries[0].Amount)
	assert.Equal(t, int64(500), entries[1].Amount)
	assert.Equal(t, int64(200), entries[2].Amount)
}

func TestReferralService_Verify_FullyVerifiedChainIsNoop(t *testing.T) {
	d := setupReferralService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	referredUserID := uuid.New()
	chain := testChain(referredUserID)
	for i := range chain {
		chain[i].Status = domain.ReferralVerified
	}
	target := chain[0]
	tx := &mockTx{}

	d.referralRepo.EXPECT().GetByID(ctx, target.ID).Return(&target, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.referralRepo.EXPECT().GetChainForUpdate(ctx, tx, referredUserID).Return(chain, nil)

	entries, err := d.svc.Verify(ctx, target.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReferralService_Verify_RejectedReferral(t *testing.T) {
	d := setupReferralService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	target := domain.Referral{ID: uuid.New(), Status: domain.ReferralRejected}

	d.referralRepo.EXPECT().GetByID(ctx, target.ID).Return(&target, nil)

	entries, err := d.svc.Verify(ctx, target.ID, nil)
	assert.Nil(t, entries)
	assertAppError(t, err, "REF_001")
}

func TestReferralService_Verify_RetriesOnlyPendingLevels(t *testing.T) {
	d := setupReferralService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	referredUserID := uuid.New()
	chain := testChain(referredUserID)
	// level 1 already paid by a previous attempt
	chain[0].Status = domain.ReferralVerified
	chain[0].CommissionAmount = 1000
	target := chain[0]
	tx := &mockTx{}

	d.referralRepo.EXPECT().GetByID(ctx, target.ID).Return(&target, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.referralRepo.EXPECT().GetChainForUpdate(ctx, tx, referredUserID).Return(chain, nil)

	wantAmounts := map[uuid.UUID]int64{chain[1].ID: 500, chain[2].ID: 200}
	for _, row := range chain[1:] {
		row := row
		d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
		d.referralRepo.EXPECT().GetByIDForUpdate(ctx, tx, row.ID).Return(&row, nil)
		d.walletSvc.EXPECT().CreditInTx(ctx, tx, gomock.Any()).Return(&domain.LedgerEntry{ID: uuid.New()}, nil)
		d.referralRepo.EXPECT().UpdateStatus(ctx, tx, row.ID, domain.ReferralVerified, wantAmounts[row.ID]).Return(nil)
	}

	entries, err := d.svc.Verify(ctx, target.ID, nil)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestReferralService_Verify_CommissionOverride(t *testing.T) {
	d := setupReferralService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	referredUserID := uuid.New()
	chain := testChain(referredUserID)[:1]
	target := chain[0]
	tx := &mockTx{}
	override := int64(7777)

	d.referralRepo.EXPECT().GetByID(ctx, target.ID).Return(&target, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.referralRepo.EXPECT().GetChainForUpdate(ctx, tx, referredUserID).Return(chain, nil)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.referralRepo.EXPECT().GetByIDForUpdate(ctx, tx, target.ID).Return(&target, nil)
	d.walletSvc.EXPECT().CreditInTx(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, req ports.CreditRequest) (*domain.LedgerEntry, error) {
			assert.Equal(t, override, req.Amount)
			return &domain.LedgerEntry{Amount: req.Amount}, nil
		})
	d.referralRepo.EXPECT().UpdateStatus(ctx, tx, target.ID, domain.ReferralVerified, override).Return(nil)

	entries, err := d.svc.Verify(ctx, target.ID, &override)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, override, entries[0].Amount)
}

func TestReferralService_Reject_Pending(t *testing.T) {
	d := setupReferralService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	target := domain.Referral{ID: uuid.New(), Status: domain.ReferralPending}
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.referralRepo.EXPECT().GetByIDForUpdate(ctx, tx, target.ID).Return(&target, nil)
	d.referralRepo.EXPECT().UpdateStatus(ctx, tx, target.ID, domain.ReferralRejected, int64(0)).Return(nil)

	err := d.svc.Reject(ctx, target.ID)
	require.NoError(t, err)
}

func TestReferralService_Reject_AlreadyVerified(t *testing.T) {
	d := setupReferralService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	target := domain.Referral{ID: uuid.New(), Status: domain.ReferralVerified}
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.referralRepo.EXPECT().GetByIDForUpdate(ctx, tx, target.ID).Return(&target, nil)

	err := d.svc.Reject(ctx, target.ID)
	assertAppError(t, err, "REF_002")
}
