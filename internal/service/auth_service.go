package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"rewards-ledger/internal/core/domain"
	"rewards-ledger/internal/core/ports"
	"rewards-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// referralCodeAlphabet avoids ambiguous characters (0/O, 1/I/L).
const referralCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// referralCodeLength gives ~40 bits of entropy, plenty for a
// human-shareable code.
const referralCodeLength = 8

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	userRepo     ports.UserRepository
	walletRepo   ports.WalletRepository
	referralRepo ports.ReferralRepository
	transactor   ports.DBTransactor
	hashSvc      ports.HashService
	tokenSvc     ports.TokenService
	log          zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	userRepo ports.UserRepository,
	walletRepo ports.WalletRepository,
	referralRepo ports.ReferralRepository,
	transactor ports.DBTransactor,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		userRepo:     userRepo,
		walletRepo:   walletRepo,
		referralRepo: referralRepo,
		transactor:   transactor,
		hashSvc:      hashSvc,
		tokenSvc:     tokenSvc,
		log:          log,
	}
}

// Register creates a user with an empty wallet and, when a referral
// code is supplied, the pending commission chain rows up to the level
// cap. Chain rows start pending and pay out only on later verification.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*domain.User, error) {
	existing, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check username: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrUsernameExists()
	}

	var referrer *domain.User
	if req.ReferralCode != nil && *req.ReferralCode != "" {
		referrer, err = s.userRepo.GetByReferralCode(ctx, *req.ReferralCode)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("resolve referral code: %w", err))
		}
		if referrer == nil {
			return nil, apperror.ErrInvalidReferralCode()
		}
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	code, err := generateReferralCode()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate referral code: %w", err))
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Username:     req.Username,
		PasswordHash: passwordHash,
		ReferralCode: code,
		CreatedAt:    now,
	}
	if referrer != nil {
		user.ReferredBy = &referrer.ID
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create user: %w", err))
	}

	wallet := &domain.Wallet{
		ID:        uuid.New(),
		UserID:    user.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.walletRepo.Create(ctx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}

	if referrer != nil {
		if err := s.buildReferralChain(ctx, user.ID, referrer); err != nil {
			// The account itself is usable; a missing chain only costs
			// the ancestors their commissions, which ops can backfill.
			s.log.Error().Err(err).
				Str("user_id", user.ID.String()).
				Msg("referral chain creation failed")
		}
	}

	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("username", user.Username).
		Bool("referred", referrer != nil).
		Msg("user registered")
	return user, nil
}

// Login validates credentials and returns a JWT token.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, user.PasswordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiry, err := s.tokenSvc.Generate(user.ID, user.IsAdmin)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}
	return token, expiry, nil
}

// buildReferralChain inserts one pending row per ancestor, walking up
// ReferredBy links until the level cap or the chain's top.
func (s *AuthServiceImpl) buildReferralChain(ctx context.Context, referredUserID uuid.UUID, directReferrer *domain.User) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	ancestor := directReferrer
	for level := 1; level <= domain.MaxReferralLevels && ancestor != nil; level++ {
		ref := &domain.Referral{
			ID:             uuid.New(),
			ReferrerID:     ancestor.ID,
			ReferredUserID: referredUserID,
			Level:          level,
			Status:         domain.ReferralPending,
			CreatedAt:      now,
		}
		if err := s.referralRepo.Create(ctx, dbTx, ref); err != nil {
			return fmt.Errorf("insert level %d referral: %w", level, err)
		}

		if ancestor.ReferredBy == nil {
			break
		}
		next, err := s.userRepo.GetByID(ctx, *ancestor.ReferredBy)
		if err != nil {
			return fmt.Errorf("walk referral chain: %w", err)
		}
		ancestor = next
	}

	return dbTx.Commit(ctx)
}

// generateReferralCode returns a short shareable code.
func generateReferralCode() (string, error) {
	buf := make([]byte, referralCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := make([]byte, referralCodeLength)
	for i, b := range buf {
		code[i] = referralCodeAlphabet[int(b)%len(referralCodeAlphabet)]
	}
	return string(code), nil
}
