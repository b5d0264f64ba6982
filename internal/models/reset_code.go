package models

import (
	"time"

	"github.com/google/uuid"
)

// PasswordResetCode is a short-lived numeric code delivered out of band
// (email or SMS) during the password-reset flow. Stored hashed, like every
// other secret.
type PasswordResetCode struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	CodeHash  string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	Attempts  int       `json:"attempts"`
}

func (c *PasswordResetCode) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
