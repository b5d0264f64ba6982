package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken represents a refresh token issued to a user. Token holds the
// raw value only between generation and delivery; the database sees just
// TokenHash. Rows are revoked rather than deleted so that replayed tokens
// can be detected after the fact.
type RefreshToken struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Token     string     `json:"-"`
	TokenHash string     `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// IsExpired pins the boundary: a token is already expired at exactly its
// ExpiresAt instant.
func (rt *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(rt.ExpiresAt)
}

func (rt *RefreshToken) IsRevoked() bool {
	return rt.RevokedAt != nil
}

func (rt *RefreshToken) IsActive(now time.Time) bool {
	return !rt.IsExpired(now) && !rt.IsRevoked()
}
