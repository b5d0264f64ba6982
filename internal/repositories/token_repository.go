package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/gridvolt/auth-service/internal/models"
	"github.com/gridvolt/auth-service/internal/utils"
)

// TokenRepository is the refresh-token ledger. Tokens are stored hashed and
// are revoked, never deleted, on logout or rotation; a nightly cleanup purges
// rows long past expiry so the audit window stays bounded.
type TokenRepository interface {
	// CreateRefreshToken stores a newly issued refresh token (hashed).
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error

	// GetRefreshToken fetches an entry by its raw value regardless of
	// state. Returns nil, nil when no row matches the hash.
	GetRefreshToken(ctx context.Context, rawToken string) (*models.RefreshToken, error)

	// GetActiveRefreshToken hashes the raw value and returns the matching
	// entry only if it is neither revoked nor expired. A hash match against
	// a dead entry is a miss (nil, nil), not an error.
	GetActiveRefreshToken(ctx context.Context, rawToken string) (*models.RefreshToken, error)

	// ConsumeRefreshToken atomically revokes the matching active entry and
	// returns it. Under concurrent calls with the same token at most one
	// caller gets the row; the rest see nil, nil. This is the rotation
	// invariant: revoke-and-replace is a single logical step.
	ConsumeRefreshToken(ctx context.Context, rawToken string) (*models.RefreshToken, error)

	// RevokeRefreshToken marks the entry revoked by hash. Idempotent.
	RevokeRefreshToken(ctx context.Context, tokenHash string) error

	// RevokeAllRefreshTokensByUserID revokes every active token of a user
	// (fresh login, password reset).
	RevokeAllRefreshTokensByUserID(ctx context.Context, userID uuid.UUID) error

	CleanupExpiredRefreshTokens(ctx context.Context) error
}

type tokenRepository struct {
	db DB
}

func NewTokenRepository(db DB) TokenRepository {
	return &tokenRepository{db: db}
}

const selectRefreshToken = `
	SELECT id, user_id, token_hash, created_at, expires_at, revoked_at
	FROM refresh_tokens
`

func (r *tokenRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, created_at, expires_at, revoked_at)
		VALUES ($1, $2, $3, NOW(), $4, NULL)
	`,
		token.ID,
		token.UserID,
		utils.HashToken(token.Token),
		token.ExpiresAt,
	)
	return err
}

func (r *tokenRepository) GetRefreshToken(ctx context.Context, rawToken string) (*models.RefreshToken, error) {
	hashed := utils.HashToken(rawToken)
	row := r.db.QueryRow(ctx, selectRefreshToken+` WHERE token_hash = $1`, hashed)
	return scanRefreshToken(row)
}

func (r *tokenRepository) GetActiveRefreshToken(ctx context.Context, rawToken string) (*models.RefreshToken, error) {
	hashed := utils.HashToken(rawToken)
	row := r.db.QueryRow(ctx, selectRefreshToken+`
		WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > NOW()
	`, hashed)
	return scanRefreshToken(row)
}

func (r *tokenRepository) ConsumeRefreshToken(ctx context.Context, rawToken string) (*models.RefreshToken, error) {
	hashed := utils.HashToken(rawToken)
	// Single UPDATE claims the row; a concurrent refresh with the same token
	// finds revoked_at already set and misses.
	row := r.db.QueryRow(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > NOW()
		RETURNING id, user_id, token_hash, created_at, expires_at, revoked_at
	`, hashed)
	return scanRefreshToken(row)
}

func (r *tokenRepository) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = NOW()
		WHERE token_hash = $1 AND revoked_at IS NULL
	`, tokenHash)
	return err
}

func (r *tokenRepository) RevokeAllRefreshTokensByUserID(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = NOW()
		WHERE user_id = $1 AND revoked_at IS NULL
	`, userID)
	return err
}

// CleanupExpiredRefreshTokens deletes rows whose expiry is more than 30 days
// in the past. Recently dead rows stay visible for replay detection.
func (r *tokenRepository) CleanupExpiredRefreshTokens(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM refresh_tokens WHERE expires_at < NOW() - INTERVAL '30 days'
	`)
	return err
}

func scanRefreshToken(row pgx.Row) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	err := row.Scan(
		&rt.ID,
		&rt.UserID,
		&rt.TokenHash,
		&rt.CreatedAt,
		&rt.ExpiresAt,
		&rt.RevokedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rt, nil
}
