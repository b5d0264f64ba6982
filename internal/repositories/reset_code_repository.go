package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/gridvolt/auth-service/internal/models"
	"github.com/gridvolt/auth-service/internal/utils"
)

// ResetCodeRepository stores password-reset codes, hashed, one live code per
// user.
type ResetCodeRepository interface {
	CreateCode(ctx context.Context, userID uuid.UUID, rawCode string, expiresAt time.Time) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.PasswordResetCode, error)
	IncrementAttempts(ctx context.Context, id uuid.UUID) error
	DeleteCode(ctx context.Context, id uuid.UUID) error
	CleanupExpired(ctx context.Context) error
}

type resetCodeRepository struct {
	db DB
}

func NewResetCodeRepository(db DB) ResetCodeRepository {
	return &resetCodeRepository{db: db}
}

func (r *resetCodeRepository) CreateCode(ctx context.Context, userID uuid.UUID, rawCode string, expiresAt time.Time) error {
	// Requesting a new code supersedes any outstanding one.
	if _, err := r.db.Exec(ctx, `DELETE FROM password_reset_codes WHERE user_id = $1`, userID); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO password_reset_codes (id, user_id, code_hash, expires_at, created_at, attempts)
		VALUES ($1, $2, $3, $4, NOW(), 0)
	`, uuid.New(), userID, utils.HashToken(rawCode), expiresAt)
	return err
}

func (r *resetCodeRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.PasswordResetCode, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, code_hash, expires_at, created_at, attempts
		FROM password_reset_codes
		WHERE user_id = $1
	`, userID)
	var c models.PasswordResetCode
	err := row.Scan(&c.ID, &c.UserID, &c.CodeHash, &c.ExpiresAt, &c.CreatedAt, &c.Attempts)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *resetCodeRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE password_reset_codes SET attempts = attempts + 1 WHERE id = $1
	`, id)
	return err
}

func (r *resetCodeRepository) DeleteCode(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM password_reset_codes WHERE id = $1`, id)
	return err
}

func (r *resetCodeRepository) CleanupExpired(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM password_reset_codes WHERE expires_at < NOW()`)
	return err
}
