package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/gridvolt/auth-service/internal/config"
	"github.com/gridvolt/auth-service/internal/dtos"
	"github.com/gridvolt/auth-service/internal/middleware"
	"github.com/gridvolt/auth-service/internal/models"
	"github.com/gridvolt/auth-service/internal/services"
	"github.com/gridvolt/auth-service/internal/utils"
)

// AuthController exposes the three role-scoped login surfaces plus refresh
// and logout. The surfaces share one credential store but refuse cross-role
// sign-in: the admin console cannot mint an installer token.
type AuthController struct {
	sessions services.SessionService
	cfg      *config.Config
}

func NewAuthController(sessions services.SessionService, cfg *config.Config) *AuthController {
	return &AuthController{sessions: sessions, cfg: cfg}
}

var authValidate = validator.New()

func (c *AuthController) LoginAdmin(w http.ResponseWriter, r *http.Request) {
	c.login(w, r, models.RoleAdministrator)
}

func (c *AuthController) LoginInstaller(w http.ResponseWriter, r *http.Request) {
	c.login(w, r, models.RoleInstaller)
}

func (c *AuthController) LoginUser(w http.ResponseWriter, r *http.Request) {
	c.login(w, r, models.RoleUser)
}

func (c *AuthController) login(w http.ResponseWriter, r *http.Request, role models.Role) {
	var req dtos.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid request", nil, err)
		return
	}
	if err := authValidate.Struct(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation error", nil, err)
		return
	}

	bundle, err := c.sessions.Login(r.Context(), req.Identifier, req.Password, role)
	if err != nil {
		if errors.Is(err, utils.ErrLoginFailed) {
			utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeInvalidCredentials, "Login failed", nil, err)
		} else {
			// Lockout surfaces as an AppError with its own status and code.
			utils.HandleAppError(w, err)
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, dtos.TokenBundleResponse{
		AccessToken:  bundle.AccessToken,
		ExpiresAt:    bundle.ExpiresAt,
		RefreshToken: bundle.RefreshToken,
	})
}

func (c *AuthController) RefreshToken(w http.ResponseWriter, r *http.Request) {
	accessToken, err := bearerFromHeader(r)
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, err.Error(), nil)
		return
	}

	var req dtos.RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid request", nil, err)
		return
	}
	if err := authValidate.Struct(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation error", nil, err)
		return
	}

	bundle, err := c.sessions.Refresh(r.Context(), accessToken, req.RefreshToken)
	if err != nil {
		if errors.Is(err, utils.ErrRefreshFailed) {
			utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeInvalidSession, "Refresh failed", nil, err)
		} else {
			utils.HandleAppError(w, err)
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, dtos.TokenBundleResponse{
		AccessToken:  bundle.AccessToken,
		ExpiresAt:    bundle.ExpiresAt,
		RefreshToken: bundle.RefreshToken,
	})
}

// SessionInfo reports who the gate authenticated. Mounted behind the auth
// middleware, so the context values are always present here.
func (c *AuthController) SessionInfo(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Unauthorized", nil)
		return
	}
	role, _ := middleware.RoleFromContext(r.Context())

	utils.RespondWithJSON(w, http.StatusOK, dtos.SessionInfoResponse{
		UserID: userID.String(),
		Role:   string(role),
	})
}

func (c *AuthController) Logout(w http.ResponseWriter, r *http.Request) {
	accessToken, err := bearerFromHeader(r)
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, err.Error(), nil)
		return
	}

	var req dtos.LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid request", nil, err)
		return
	}
	if err := authValidate.Struct(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation error", nil, err)
		return
	}

	if err := c.sessions.Logout(r.Context(), accessToken, req.RefreshToken); err != nil {
		if errors.Is(err, utils.ErrLogoutFailed) {
			utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeInvalidSession, "Logout failed", nil, err)
		} else {
			utils.HandleAppError(w, err)
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, dtos.LogoutResponse{Message: "Logged out successfully"})
}
