package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gridvolt/auth-service/internal/cache"
	"github.com/gridvolt/auth-service/internal/config"
	"github.com/gridvolt/auth-service/internal/models"
	"github.com/gridvolt/auth-service/internal/repositories"
	"github.com/gridvolt/auth-service/internal/utils"
)

// ---------------------------------------------------------------------
// SessionService interface
// ---------------------------------------------------------------------

// TokenBundle is what a successful login or refresh hands back.
type TokenBundle struct {
	AccessToken  string
	ExpiresAt    time.Time
	RefreshToken string
}

// SessionService drives the session state machine: anonymous to
// authenticated (login/refresh) to revoked (logout). It owns the rotation
// and revocation invariants; credential storage and the blacklist are
// collaborators behind interfaces.
type SessionService interface {
	// Login verifies identifier + password and that the account holds the
	// requested role. Every credential failure surfaces as the same
	// ErrLoginFailed; only logs say which check missed.
	Login(ctx context.Context, identifier, password string, role models.Role) (*TokenBundle, error)

	// Refresh exchanges a signature-valid (possibly expired) access token
	// plus an active refresh token for a new pair, revoking the consumed
	// refresh token in the same step. Of two concurrent calls with the
	// same refresh token exactly one succeeds.
	Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenBundle, error)

	// Logout revokes the refresh token and blacklists the access token for
	// its remaining lifetime.
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

// ---------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------

type sessionService struct {
	userRepo  repositories.UserRepository
	loginRepo repositories.LoginAttemptsRepository
	tokenRepo repositories.TokenRepository
	blacklist cache.BlacklistStore
	codec     TokenCodec
	hasher    utils.PasswordHasher
	cfg       *config.Config

	now func() time.Time
}

func NewSessionService(
	userRepo repositories.UserRepository,
	loginRepo repositories.LoginAttemptsRepository,
	tokenRepo repositories.TokenRepository,
	blacklist cache.BlacklistStore,
	codec TokenCodec,
	hasher utils.PasswordHasher,
	cfg *config.Config,
) SessionService {
	return &sessionService{
		userRepo:  userRepo,
		loginRepo: loginRepo,
		tokenRepo: tokenRepo,
		blacklist: blacklist,
		codec:     codec,
		hasher:    hasher,
		cfg:       cfg,
		now:       time.Now,
	}
}

// ---------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------

func (s *sessionService) Login(ctx context.Context, identifier, password string, role models.Role) (*TokenBundle, error) {
	user, err := s.userRepo.GetByIdentifier(ctx, identifier)
	if err != nil {
		utils.Logger.WithError(err).Error("credential store lookup failed during login")
		return nil, fmt.Errorf("credential store lookup: %w", err)
	}
	if user == nil {
		utils.Logger.Debugf("login rejected: no account for identifier %q", identifier)
		return nil, utils.ErrLoginFailed
	}

	if _, err := s.loginRepo.GetOrCreate(ctx, user.ID); err != nil {
		utils.Logger.WithError(err).Error("failed to get or create login attempt record")
		return nil, fmt.Errorf("login attempts lookup: %w", err)
	}

	locked, lockedUntil, err := s.loginRepo.IsLocked(ctx, user.ID)
	if err == nil && locked {
		return nil, &utils.AppError{
			StatusCode: http.StatusUnauthorized,
			Code:       utils.ErrCodeLockedAccount,
			Message:    fmt.Sprintf("Account locked until %s", lockedUntil.Format(time.RFC3339)),
			Err:        utils.ErrAccountLocked,
		}
	}

	if !user.HasRole(role) {
		utils.Logger.Debugf("login rejected: user %s does not hold role %s", user.ID, role)
		return nil, utils.ErrLoginFailed
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		if incErr := s.loginRepo.Increment(ctx, user.ID, s.cfg.LockDuration, s.cfg.AttemptWindow, s.cfg.MaxLoginAttempts); incErr != nil {
			utils.Logger.WithError(incErr).Error("failed to increment login attempts")
		}
		utils.Logger.Debugf("login rejected: bad password for user %s", user.ID)
		return nil, utils.ErrLoginFailed
	}
	_ = s.loginRepo.Reset(ctx, user.ID)

	// A fresh login supersedes existing sessions for the account.
	if revokeErr := s.tokenRepo.RevokeAllRefreshTokensByUserID(ctx, user.ID); revokeErr != nil {
		utils.Logger.WithError(revokeErr).Error("failed to revoke old refresh tokens on login")
	}

	return s.issuePair(ctx, user.ID, role)
}

// ---------------------------------------------------------------------
// Refresh
// ---------------------------------------------------------------------

func (s *sessionService) Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenBundle, error) {
	// Signature-only: the access token being expired is the normal case
	// here, but its role claim must still be cryptographically trustworthy.
	claims, err := s.codec.Decode(accessToken, true)
	if err != nil {
		utils.Logger.WithError(err).Debug("refresh rejected: invalid access token")
		return nil, utils.ErrRefreshFailed
	}

	consumed, err := s.tokenRepo.ConsumeRefreshToken(ctx, refreshToken)
	if err != nil {
		utils.Logger.WithError(err).Error("refresh token consume failed")
		return nil, fmt.Errorf("refresh token consume: %w", err)
	}
	if consumed == nil {
		// Unknown, expired, already rotated, or lost the race to a
		// concurrent refresh. All the same to the caller.
		utils.Logger.Debug("refresh rejected: no active refresh token for presented value")
		return nil, utils.ErrRefreshFailed
	}
	if consumed.UserID != claims.UserID {
		utils.Logger.Warnf("refresh rejected: refresh token owner %s does not match access token subject %s", consumed.UserID, claims.UserID)
		return nil, utils.ErrRefreshFailed
	}

	return s.issuePair(ctx, claims.UserID, claims.Role)
}

// ---------------------------------------------------------------------
// Logout
// ---------------------------------------------------------------------

func (s *sessionService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	claims, err := s.codec.Decode(accessToken, true)
	if err != nil {
		utils.Logger.WithError(err).Debug("logout rejected: invalid access token")
		return utils.ErrLogoutFailed
	}

	rt, err := s.tokenRepo.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		utils.Logger.WithError(err).Error("refresh token lookup failed during logout")
		return fmt.Errorf("refresh token lookup: %w", err)
	}
	if rt == nil {
		utils.Logger.Debug("logout rejected: unknown refresh token")
		return utils.ErrLogoutFailed
	}

	// Idempotent: revoking an already-revoked entry is a no-op.
	if err := s.tokenRepo.RevokeRefreshToken(ctx, rt.TokenHash); err != nil {
		utils.Logger.WithError(err).Error("failed to revoke refresh token during logout")
		return fmt.Errorf("refresh token revoke: %w", err)
	}

	// The access token stays cryptographically valid until its expiry;
	// the blacklist entry is what makes this logout effective.
	ttl := cache.ClampTTL(claims.Remaining(s.now()))
	if err := s.blacklist.Add(ctx, utils.HashToken(accessToken), ttl); err != nil {
		utils.Logger.WithError(err).Error("failed to blacklist access token during logout")
		return fmt.Errorf("blacklist write: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------
// issuePair
// ---------------------------------------------------------------------

func (s *sessionService) issuePair(ctx context.Context, userID uuid.UUID, role models.Role) (*TokenBundle, error) {
	accessToken, expiresAt, err := s.codec.Mint(userID, role)
	if err != nil {
		utils.Logger.WithError(err).Error("failed to mint access token")
		return nil, fmt.Errorf("mint access token: %w", err)
	}

	now := s.now()
	rt := &models.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		Token:     utils.GenerateSecureToken(config.RefreshTokenLength),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.RefreshTokenExpiry),
	}
	if err := s.tokenRepo.CreateRefreshToken(ctx, rt); err != nil {
		utils.Logger.WithError(err).Error("failed to store refresh token")
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &TokenBundle{
		AccessToken:  accessToken,
		ExpiresAt:    expiresAt,
		RefreshToken: rt.Token,
	}, nil
}
