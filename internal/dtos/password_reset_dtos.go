package dtos

type RequestResetRequest struct {
	Identifier string `json:"identifier" validate:"required"`
}

type RequestResetResponse struct {
	Message string `json:"message"`
}

type ConfirmResetRequest struct {
	Identifier  string `json:"identifier" validate:"required"`
	Code        string `json:"code" validate:"required,numeric"`
	NewPassword string `json:"new_password" validate:"required,min=10"`
}

type ConfirmResetResponse struct {
	Message string `json:"message"`
}
