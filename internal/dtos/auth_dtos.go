package dtos

import "time"

// ----------------------
// Login
// ----------------------

type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// TokenBundleResponse is returned by login and refresh.
type TokenBundleResponse struct {
	AccessToken  string    `json:"access_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
}

// ----------------------
// Refresh Token
// ----------------------

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required,len=64"`
}

// ----------------------
// Logout
// ----------------------

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required,len=64"`
}

type LogoutResponse struct {
	Message string `json:"message"`
}

// ----------------------
// Session
// ----------------------

type SessionInfoResponse struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}
