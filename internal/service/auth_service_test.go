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

type authTestDeps struct {
	svc          *AuthServiceImpl
	userRepo     *mocks.MockUserRepository
	walletRepo   *mocks.MockWalletRepository
	referralRepo *mocks.MockReferralRepository
	transactor   *mocks.MockDBTransactor
	hashSvc      *mocks.MockHashService
	tokenSvc     *mocks.MockTokenService
	ctrl         *gomock.Controller
}

func setupAuthService(t *testing.T) *authTestDeps {
	ctrl := gomock.NewController(t)
	d := &authTestDeps{
		userRepo:     mocks.NewMockUserRepository(ctrl),
		walletRepo:   mocks.NewMockWalletRepository(ctrl),
		referralRepo: mocks.NewMockReferralRepository(ctrl),
		transactor:   mocks.NewMockDBTransactor(ctrl),
		hashSvc:      mocks.NewMockHashService(ctrl),
		tokenSvc:     mocks.NewMockTokenService(ctrl),
		ctrl:         ctrl,
	}
	d.svc = NewAuthService(
		d.userRepo, d.walletRepo, d.referralRepo, d.transactor,
		d.hashSvc, d.tokenSvc, zerolog.Nop(),
	)
	return d
}

func TestAuthService_Register_WithoutReferral(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.userRepo.EXPECT().GetByUsername(ctx, "alice").Return(nil, nil)
	d.hashSvc.EXPECT().Hash("s3cret").Return("hashed", nil)
	d.userRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, u *domain.User) error {
			assert.Equal(t, "alice", u.Username)
			assert.Equal(t, "hashed", u.PasswordHash)
			assert.Len(t, u.ReferralCode, referralCodeLength)
			assert.Nil(t, u.ReferredBy)
			return nil
		})
	d.walletRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, w *domain.Wallet) error {
			assert.Equal(t, int64(0), w.Balance)
			return nil
		})

	user, err := d.svc.Register(ctx, ports.RegisterRequest{Username: "alice", Password: "s3cret"})
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.NotEmpty(t, user.ReferralCode)
}

func TestAuthService_Register_BuildsThreeLevelChain(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	grandparentID := uuid.New()
	greatID := uuid.New()
	parent := &domain.User{ID: uuid.New(), Username: "parent", ReferralCode: "PARENTCD", ReferredBy: &grandparentID}
	grandparent := &domain.User{ID: grandparentID, Username: "gp", ReferredBy: &greatID}
	great := &domain.User{ID: greatID, Username: "ggp"}

	code := "PARENTCD"

	d.userRepo.EXPECT().GetByUsername(ctx, "bob").Return(nil, nil)
	d.userRepo.EXPECT().GetByReferralCode(ctx, code).Return(parent, nil)
	d.hashSvc.EXPECT().Hash("pw").Return("hashed", nil)
	d.userRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	d.walletRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	wantLevels := map[uuid.UUID]int{parent.ID: 1, grandparent.ID: 2, great.ID: 3}
	d.referralRepo.EXPECT().Create(ctx, tx, gomock.Any()).Times(3).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, ref *domain.Referral) error {
			assert.Equal(t, wantLevels[ref.ReferrerID], ref.Level)
			assert.Equal(t, domain.ReferralPending, ref.Status)
			return nil
		})
	d.userRepo.EXPECT().GetByID(ctx, grandparentID).Return(grandparent, nil)
	d.userRepo.EXPECT().GetByID(ctx, greatID).Return(great, nil)

	user, err := d.svc.Register(ctx, ports.RegisterRequest{
		Username:     "bob",
		Password:     "pw",
		ReferralCode: &code,
	})
	require.NoError(t, err)
	require.NotNil(t, user.ReferredBy)
	assert.Equal(t, parent.ID, *user.ReferredBy)
}

func TestAuthService_Register_UsernameTaken(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.userRepo.EXPECT().GetByUsername(ctx, "alice").Return(&domain.User{ID: uuid.New()}, nil)

	user, err := d.svc.Register(ctx, ports.RegisterRequest{Username: "alice", Password: "pw"})
	assert.Nil(t, user)
	assertAppError(t, err, "AUTH_002")
}

func TestAuthService_Register_UnknownReferralCode(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	code := "NOPENOPE"

	d.userRepo.EXPECT().GetByUsername(ctx, "carol").Return(nil, nil)
	d.userRepo.EXPECT().GetByReferralCode(ctx, code).Return(nil, nil)

	user, err := d.svc.Register(ctx, ports.RegisterRequest{
		Username:     "carol",
		Password:     "pw",
		ReferralCode: &code,
	})
	assert.Nil(t, user)
	assertAppError(t, err, "AUTH_005")
}

func TestAuthService_Login_Success(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	user := &domain.User{ID: uuid.New(), Username: "alice", PasswordHash: "hashed", IsAdmin: true}
	expiry := time.Now().Add(time.Hour)

	d.userRepo.EXPECT().GetByUsername(ctx, "alice").Return(user, nil)
	d.hashSvc.EXPECT().Verify("s3cret", "hashed").Return(true, nil)
	d.tokenSvc.EXPECT().Generate(user.ID, true).Return("jwt-token", expiry, nil)

	token, exp, err := d.svc.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token)
	assert.Equal(t, expiry, exp)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	user := &domain.User{ID: uuid.New(), Username: "alice", PasswordHash: "hashed"}

	d.userRepo.EXPECT().GetByUsername(ctx, "alice").Return(user, nil)
	d.hashSvc.EXPECT().Verify("wrong", "hashed").Return(false, nil)

	token, _, err := d.svc.Login(ctx, "alice", "wrong")
	assert.Empty(t, token)
	assertAppError(t, err, "AUTH_001")
}

func TestAuthService_Login_UnknownUser(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.userRepo.EXPECT().GetByUsername(ctx, "ghost").Return(nil, nil)

	token, _, err := d.svc.Login(ctx, "ghost", "pw")
	assert.Empty(t, token)
	assertAppError(t, err, "AUTH_001")
}

func TestGenerateReferralCode_AlphabetAndLength(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := generateReferralCode()
		require.NoError(t, err)
		assert.Len(t, code, referralCodeLength)
		for _, r := range code {
			assert.Contains(t, referralCodeAlphabet, string(r))
		}
		seen[code] = true
	}
	// 50 draws from a 31^8 space should never collide
	assert.Len(t, seen, 50)
}
