// Package handlers contains the HTTP handler implementations for the
// tutor gateway API. Each handler depends on a locally defined service
// interface so tests can inject function-field mocks, and registers its
// own routes with their per-IP rate budgets.
package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tutorgate/internal/chat"
	"tutorgate/internal/core"
	"tutorgate/internal/types"
)

// LimitFunc applies a named per-IP rate limit policy to a route. The core
// server's Limit method satisfies it.
type LimitFunc func(route string, policy core.RatePolicy) func(http.Handler) http.Handler

// ChatService admits and completes one conversation turn.
type ChatService interface {
	HandleChat(ctx context.Context, req chat.Request) (*chat.Result, error)
}

// ChatRequest is the request body for POST /api/chat.
type ChatRequest struct {
	Messages  []types.Message `json:"messages" validate:"dive"`
	System    string          `json:"system"`
	MaxTokens int             `json:"max_tokens"`
	UserEmail string          `json:"user_email"`
}

// ChatResponse is the success body for POST /api/chat.
type ChatResponse struct {
	Success           bool            `json:"success"`
	Message           string          `json:"message"`
	Model             string          `json:"model"`
	RemainingMessages types.Remaining `json:"remaining_messages"`
}

// ChatHandler serves the chat completion endpoint.
type ChatHandler struct {
	service   ChatService
	validator *core.Validator
	limit     LimitFunc
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(service ChatService, v *core.Validator, limit LimitFunc) *ChatHandler {
	return &ChatHandler{service: service, validator: v, limit: limit}
}

// RegisterRoutes mounts the chat route on the provided chi.Router.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.With(h.limit("chat", core.PolicyChat)).Post("/chat", h.HandleChat)
}

// HandleChat handles POST /api/chat.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.service.HandleChat(r.Context(), chat.Request{
		Messages:  req.Messages,
		System:    req.System,
		MaxTokens: req.MaxTokens,
		UserEmail: req.UserEmail,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, ChatResponse{
		Success:           true,
		Message:           result.Message,
		Model:             result.Model,
		RemainingMessages: result.Remaining,
	})
}
