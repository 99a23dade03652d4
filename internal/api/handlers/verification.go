package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tutorgate/internal/core"
	"tutorgate/internal/types"
)

// VerificationService issues and confirms email verification codes.
type VerificationService interface {
	Issue(ctx context.Context, email string) (string, error)
	Confirm(ctx context.Context, email, code string) error
}

// VerifyEmailRequest is the request body for POST /api/verify-email.
type VerifyEmailRequest struct {
	Email string `json:"email"`
}

// ConfirmEmailRequest is the request body for POST /api/confirm-email.
type ConfirmEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerificationResponse is the success body for both verification endpoints.
type VerificationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// VerificationHandler serves the email verification endpoints.
type VerificationHandler struct {
	service VerificationService
	limit   LimitFunc
}

// NewVerificationHandler creates a VerificationHandler.
func NewVerificationHandler(service VerificationService, limit LimitFunc) *VerificationHandler {
	return &VerificationHandler{service: service, limit: limit}
}

// RegisterRoutes mounts the verification routes on the provided chi.Router.
func (h *VerificationHandler) RegisterRoutes(r chi.Router) {
	r.With(h.limit("verify-email", core.PolicyVerifyEmail)).Post("/verify-email", h.HandleVerifyEmail)
	r.With(h.limit("confirm-email", core.PolicyConfirmEmail)).Post("/confirm-email", h.HandleConfirmEmail)
}

// HandleVerifyEmail handles POST /api/verify-email. The code itself never
// appears in the response; it travels over the notification channel only.
func (h *VerificationHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	email, err := types.ValidateEmail(req.Email)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if _, err := h.service.Issue(r.Context(), email); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, VerificationResponse{
		Success: true,
		Message: "Verification code sent",
	})
}

// HandleConfirmEmail handles POST /api/confirm-email.
func (h *VerificationHandler) HandleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	var req ConfirmEmailRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	email, err := types.ValidateEmail(req.Email)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if req.Code == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"Verification code is required",
			nil,
		))
		return
	}

	if err := h.service.Confirm(r.Context(), email, req.Code); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, VerificationResponse{
		Success: true,
		Message: "Email verified",
	})
}
