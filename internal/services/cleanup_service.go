package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/jackc/pgconn"

	"github.com/gridvolt/auth-service/internal/repositories"
	"github.com/gridvolt/auth-service/internal/utils"
)

const cleanupRetryDelay = 3 * time.Second

// CleanupService purges rows that have aged out: refresh tokens long past
// expiry, expired reset codes, stale login-attempt counters. Scheduled
// nightly by cmd/auth-service.
type CleanupService interface {
	CleanupDaily(ctx context.Context) error
}

type cleanupService struct {
	tokenRepo     repositories.TokenRepository
	resetCodeRepo repositories.ResetCodeRepository
	loginRepo     repositories.LoginAttemptsRepository
}

func NewCleanupService(
	tokenRepo repositories.TokenRepository,
	resetCodeRepo repositories.ResetCodeRepository,
	loginRepo repositories.LoginAttemptsRepository,
) CleanupService {
	return &cleanupService{
		tokenRepo:     tokenRepo,
		resetCodeRepo: resetCodeRepo,
		loginRepo:     loginRepo,
	}
}

// runWithRetry executes op(ctx) and, if it returns a transient network
// error, waits a moment then retries once.
func (s *cleanupService) runWithRetry(ctx context.Context, op func(context.Context) error) error {
	if err := op(ctx); err != nil {
		if errors.Is(err, io.EOF) || pgconn.SafeToRetry(err) ||
			strings.Contains(err.Error(), "connection was closed") {
			utils.Logger.WithError(err).Warn("cleanup hit transient DB error; retrying once")
			time.Sleep(cleanupRetryDelay)
			return op(ctx)
		}
		return err
	}
	return nil
}

func (s *cleanupService) CleanupDaily(ctx context.Context) error {
	logger := utils.Logger

	if err := s.runWithRetry(ctx, s.tokenRepo.CleanupExpiredRefreshTokens); err != nil {
		logger.WithError(err).Error("Failed to cleanup expired refresh_tokens")
		return err
	}
	if err := s.runWithRetry(ctx, s.resetCodeRepo.CleanupExpired); err != nil {
		logger.WithError(err).Error("Failed to cleanup expired password_reset_codes")
		return err
	}
	if err := s.runWithRetry(ctx, s.loginRepo.CleanupStale); err != nil {
		logger.WithError(err).Error("Failed to cleanup stale login_attempts")
		return err
	}

	logger.Info("Daily auth cleanup completed successfully.")
	return nil
}
