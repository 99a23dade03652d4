package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tutorgate/internal/core"
	"tutorgate/internal/quota"
	"tutorgate/internal/types"
)

// CheckoutService starts hosted checkout sessions.
type CheckoutService interface {
	StartCheckout(ctx context.Context, email string, plan types.Plan) (string, error)
}

// EntitlementService answers advisory subscription-status queries.
// *quota.Resolver satisfies it.
type EntitlementService interface {
	Status(ctx context.Context, email string) quota.Decision
}

// CreateCheckoutRequest is the request body for POST /api/create-checkout.
// Email is left to the checkout service, which owns the exact error
// messages for missing and malformed addresses.
type CreateCheckoutRequest struct {
	Email string `json:"email"`
	Plan  string `json:"plan" validate:"plan"`
}

// CreateCheckoutResponse is the success body for POST /api/create-checkout.
type CreateCheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

// CheckSubscriptionRequest is the request body for POST /api/check-subscription.
type CheckSubscriptionRequest struct {
	Email string `json:"email"`
}

// CheckSubscriptionResponse is the body for POST /api/check-subscription.
// SubscriptionStatus is present only for subscribed users.
type CheckSubscriptionResponse struct {
	HasSubscription    bool            `json:"has_subscription"`
	SubscriptionStatus string          `json:"subscription_status,omitempty"`
	RemainingMessages  types.Remaining `json:"remaining_messages"`
}

// BillingHandler serves the checkout and subscription-status endpoints.
type BillingHandler struct {
	checkout    CheckoutService
	entitlement EntitlementService
	validator   *core.Validator
	limit       LimitFunc
}

// NewBillingHandler creates a BillingHandler.
func NewBillingHandler(checkout CheckoutService, entitlement EntitlementService, v *core.Validator, limit LimitFunc) *BillingHandler {
	return &BillingHandler{checkout: checkout, entitlement: entitlement, validator: v, limit: limit}
}

// RegisterRoutes mounts the billing routes on the provided chi.Router.
func (h *BillingHandler) RegisterRoutes(r chi.Router) {
	r.With(h.limit("create-checkout", core.PolicyCheckout)).Post("/create-checkout", h.HandleCreateCheckout)
	r.With(h.limit("check-subscription", core.PolicySubscription)).Post("/check-subscription", h.HandleCheckSubscription)
}

// HandleCreateCheckout handles POST /api/create-checkout.
func (h *BillingHandler) HandleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req CreateCheckoutRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	url, err := h.checkout.StartCheckout(r.Context(), req.Email, types.Plan(req.Plan))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, CreateCheckoutResponse{CheckoutURL: url})
}

// HandleCheckSubscription handles POST /api/check-subscription. The answer
// is advisory for the client UI; the chat path re-resolves entitlement on
// every admission. The email is deliberately not validated here: an invalid
// or missing email still answers 200 with the permissive free-tier default,
// and only the resolver decides how to treat it.
func (h *BillingHandler) HandleCheckSubscription(w http.ResponseWriter, r *http.Request) {
	var req CheckSubscriptionRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	decision := h.entitlement.Status(r.Context(), types.NormalizeEmail(req.Email))

	core.JSON(w, r, http.StatusOK, CheckSubscriptionResponse{
		HasSubscription:    decision.HasSubscription,
		SubscriptionStatus: decision.SubscriptionStatus,
		RemainingMessages:  decision.Remaining,
	})
}
