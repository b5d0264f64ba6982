package services

import (
	"context"
	"fmt"
	"time"

	"github.com/gridvolt/auth-service/internal/config"
	"github.com/gridvolt/auth-service/internal/notify"
	"github.com/gridvolt/auth-service/internal/repositories"
	"github.com/gridvolt/auth-service/internal/utils"
)

const maxResetCodeAttempts = 5

// PasswordResetService layers the reset flow on top of the credential store
// and the generic notifier. Request never reveals whether the identifier
// resolved; delivery failures are logged, not surfaced.
type PasswordResetService interface {
	RequestReset(ctx context.Context, identifier string) error
	ConfirmReset(ctx context.Context, identifier, code, newPassword string) error
}

type passwordResetService struct {
	userRepo      repositories.UserRepository
	resetCodeRepo repositories.ResetCodeRepository
	tokenRepo     repositories.TokenRepository
	emailNotifier notify.Notifier
	smsNotifier   notify.Notifier
	hasher        utils.PasswordHasher
	cfg           *config.Config

	now func() time.Time
}

func NewPasswordResetService(
	userRepo repositories.UserRepository,
	resetCodeRepo repositories.ResetCodeRepository,
	tokenRepo repositories.TokenRepository,
	emailNotifier notify.Notifier,
	smsNotifier notify.Notifier,
	hasher utils.PasswordHasher,
	cfg *config.Config,
) PasswordResetService {
	return &passwordResetService{
		userRepo:      userRepo,
		resetCodeRepo: resetCodeRepo,
		tokenRepo:     tokenRepo,
		emailNotifier: emailNotifier,
		smsNotifier:   smsNotifier,
		hasher:        hasher,
		cfg:           cfg,
		now:           time.Now,
	}
}

func (s *passwordResetService) RequestReset(ctx context.Context, identifier string) error {
	user, err := s.userRepo.GetByIdentifier(ctx, identifier)
	if err != nil {
		utils.Logger.WithError(err).Error("credential store lookup failed during reset request")
		return fmt.Errorf("credential store lookup: %w", err)
	}
	if user == nil {
		// Respond identically whether or not the account exists.
		utils.Logger.Debugf("reset requested for unknown identifier %q", identifier)
		return nil
	}

	code, err := utils.GenerateNumericCode(s.cfg.ResetCodeLength)
	if err != nil {
		return err
	}
	expiresAt := s.now().Add(s.cfg.ResetCodeExpiry)
	if err := s.resetCodeRepo.CreateCode(ctx, user.ID, code, expiresAt); err != nil {
		utils.Logger.WithError(err).Error("failed to store reset code")
		return fmt.Errorf("store reset code: %w", err)
	}

	subject := "Password reset code"
	body := fmt.Sprintf("Your password reset code is %s. It expires in %s.", code, s.cfg.ResetCodeExpiry)

	// Delivery is best-effort; the notifier logs its own failures.
	if user.Email != "" {
		_ = s.emailNotifier.Send(ctx, user.Email, subject, body)
	} else if user.PhoneNumber != "" {
		_ = s.smsNotifier.Send(ctx, user.PhoneNumber, subject, body)
	}
	return nil
}

func (s *passwordResetService) ConfirmReset(ctx context.Context, identifier, code, newPassword string) error {
	user, err := s.userRepo.GetByIdentifier(ctx, identifier)
	if err != nil {
		return fmt.Errorf("credential store lookup: %w", err)
	}
	if user == nil {
		return utils.ErrResetCodeInvalid
	}

	rec, err := s.resetCodeRepo.GetByUserID(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("reset code lookup: %w", err)
	}
	if rec == nil || rec.IsExpired(s.now()) || rec.Attempts >= maxResetCodeAttempts {
		return utils.ErrResetCodeInvalid
	}
	if rec.CodeHash != utils.HashToken(code) {
		_ = s.resetCodeRepo.IncrementAttempts(ctx, rec.ID)
		return utils.ErrResetCodeInvalid
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.userRepo.UpdatePasswordHash(ctx, user.ID, newHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.resetCodeRepo.DeleteCode(ctx, rec.ID); err != nil {
		utils.Logger.WithError(err).Error("failed to delete consumed reset code")
	}

	// Existing sessions die with the old password.
	if err := s.tokenRepo.RevokeAllRefreshTokensByUserID(ctx, user.ID); err != nil {
		utils.Logger.WithError(err).Error("failed to revoke refresh tokens after password reset")
	}
	return nil
}
