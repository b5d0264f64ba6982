package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gridvolt/auth-service/internal/cache"
	"github.com/gridvolt/auth-service/internal/models"
	"github.com/gridvolt/auth-service/internal/services"
	"github.com/gridvolt/auth-service/internal/utils"
)

type contextKey string

const (
	ContextKeyUserID = contextKey("userID")
	ContextKeyRole   = contextKey("role")
)

// Authenticate is the per-request gate for routes that allow anonymous
// callers: no bearer token passes through unauthenticated, but a token that
// is present must be valid and not blacklisted.
func Authenticate(codec services.TokenCodec, blacklist cache.BlacklistStore) func(http.Handler) http.Handler {
	return gate(codec, blacklist, false)
}

// RequireAuth is the gate for protected routes: a missing token is itself a
// rejection.
func RequireAuth(codec services.TokenCodec, blacklist cache.BlacklistStore) func(http.Handler) http.Handler {
	return gate(codec, blacklist, true)
}

// RequireRole rejects authenticated callers whose token carries a different
// role. Must run after RequireAuth.
func RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := RoleFromContext(r.Context())
			if !ok || got != role {
				utils.RespondErrorWithCode(
					w, http.StatusForbidden, utils.ErrCodeForbidden, "Insufficient role", nil,
				)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func gate(codec services.TokenCodec, blacklist cache.BlacklistStore, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, present := extractBearerToken(r)
			if !present {
				if required {
					utils.RespondErrorWithCode(
						w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Missing Authorization header", nil,
					)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if tokenStr == "" {
				utils.RespondErrorWithCode(
					w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Empty bearer token", nil,
				)
				return
			}

			claims, err := codec.Decode(tokenStr, false)
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					utils.RespondErrorWithCode(
						w, http.StatusUnauthorized, utils.ErrCodeTokenExpired, "Token expired", nil, err,
					)
					return
				}
				utils.RespondErrorWithCode(
					w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid token", nil, err,
				)
				return
			}

			// Signature and window are fine; a logout may still have
			// revoked it.
			revoked, err := blacklist.Contains(r.Context(), utils.HashToken(tokenStr))
			if err != nil {
				utils.RespondErrorWithCode(
					w, http.StatusInternalServerError, utils.ErrCodeInternal, "Blacklist unavailable", nil, err,
				)
				return
			}
			if revoked {
				utils.RespondErrorWithCode(
					w, http.StatusUnauthorized, utils.ErrCodeTokenRevoked, "Token revoked", nil,
				)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUserID, claims.UserID)
			ctx = context.WithValue(ctx, ContextKeyRole, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken reports whether an Authorization header was supplied at
// all, separately from whether it held a usable token.
func extractBearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	if !strings.HasPrefix(h, "Bearer ") {
		return "", true
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")), true
}

// UserIDFromContext returns the authenticated subject, if any.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ContextKeyUserID).(uuid.UUID)
	return id, ok
}

// RoleFromContext returns the authenticated role, if any.
func RoleFromContext(ctx context.Context) (models.Role, bool) {
	role, ok := ctx.Value(ContextKeyRole).(models.Role)
	return role, ok
}
