package utils

import (
	"errors"
	"net/http"
)

// Domain-level errors used by the service layer to provide
// fine-grained failure reasons.
var (
	// ErrLoginFailed is the single error returned to callers for every
	// credential failure: unknown identifier, missing role, or wrong
	// password. Logs carry the real cause; the caller never learns which
	// check failed.
	ErrLoginFailed = errors.New("invalid_credentials")

	// ErrRefreshFailed covers a bad access-token signature and an
	// unknown, expired, or revoked refresh token.
	ErrRefreshFailed = errors.New("invalid_session")

	// ErrLogoutFailed covers the same causes as ErrRefreshFailed,
	// applied to logout.
	ErrLogoutFailed = errors.New("invalid_session")

	// ErrMalformedToken means the JWT structure could not be decoded or a
	// claim could not be interpreted. Distinct from a signature failure.
	ErrMalformedToken = errors.New("malformed_token")

	ErrAccountLocked = errors.New("locked_account")

	// ErrResetCodeInvalid covers an unknown, expired, or mismatched
	// password-reset code.
	ErrResetCodeInvalid = errors.New("invalid_reset_code")
)

// AppError carries a status code and public error code from services to
// controllers.
type AppError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HandleAppError centralizes responding to AppErrors.
func HandleAppError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		RespondErrorWithCode(w, appErr.StatusCode, appErr.Code, appErr.Message, nil, appErr.Err)
	} else {
		RespondErrorWithCode(w, http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred", nil, err)
	}
}
