package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gridvolt/auth-service/internal/dtos"
	"github.com/gridvolt/auth-service/internal/services"
	"github.com/gridvolt/auth-service/internal/utils"
)

type PasswordResetController struct {
	resets services.PasswordResetService
}

func NewPasswordResetController(resets services.PasswordResetService) *PasswordResetController {
	return &PasswordResetController{resets: resets}
}

func (c *PasswordResetController) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req dtos.RequestResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid request", nil, err)
		return
	}
	if err := authValidate.Struct(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation error", nil, err)
		return
	}

	if err := c.resets.RequestReset(r.Context(), req.Identifier); err != nil {
		utils.HandleAppError(w, err)
		return
	}

	// Same response whether or not the identifier resolved.
	utils.RespondWithJSON(w, http.StatusOK, dtos.RequestResetResponse{
		Message: "If the account exists, a reset code has been sent",
	})
}

func (c *PasswordResetController) ConfirmReset(w http.ResponseWriter, r *http.Request) {
	var req dtos.ConfirmResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid request", nil, err)
		return
	}
	if err := authValidate.Struct(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation error", nil, err)
		return
	}

	if err := c.resets.ConfirmReset(r.Context(), req.Identifier, req.Code, req.NewPassword); err != nil {
		if errors.Is(err, utils.ErrResetCodeInvalid) {
			utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeInvalidResetCode, "Invalid or expired code", nil, err)
		} else {
			utils.HandleAppError(w, err)
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, dtos.ConfirmResetResponse{Message: "Password updated"})
}
