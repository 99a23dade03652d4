// Package billing initiates subscription purchases: it maps plan names to
// processor price IDs and creates hosted checkout sessions.
package billing

import (
	"context"
	"log/slog"
	"strings"

	"tutorgate/internal/config"
	"tutorgate/internal/external"
	"tutorgate/internal/types"
)

// CheckoutInitiator creates hosted checkout sessions. *external.StripeClient
// satisfies it.
type CheckoutInitiator interface {
	CreateCheckoutSession(ctx context.Context, p external.CheckoutParams) (string, error)
}

// Service maps plans to prices and starts checkout sessions.
type Service struct {
	processor   CheckoutInitiator
	prices      map[types.Plan]string
	frontendURL string
	logger      *slog.Logger
}

// NewService creates a billing Service. Price IDs left unset in the
// configuration leave their plan unpurchasable; StartCheckout rejects it
// the same way it rejects an unknown plan name.
func NewService(processor CheckoutInitiator, billingCfg config.BillingConfig, frontendURL string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		processor: processor,
		prices: map[types.Plan]string{
			types.PlanPremium:      billingCfg.PricePremium,
			types.PlanPremiumVoice: billingCfg.PricePremiumVoice,
		},
		frontendURL: strings.TrimSuffix(frontendURL, "/"),
		logger:      logger,
	}
}

// StartCheckout creates a checkout session for the given plan and returns
// the hosted payment page URL for the client to redirect to. The session
// lands back on the frontend's success page with the session ID
// interpolated by the processor.
func (s *Service) StartCheckout(ctx context.Context, email string, plan types.Plan) (string, error) {
	normalized, err := types.ValidateEmail(email)
	if err != nil {
		return "", err
	}

	priceID, ok := s.prices[plan]
	if !ok || priceID == "" {
		return "", types.NewAppError(
			types.ErrCodeValidationInvalidPlan,
			"Invalid plan",
			nil,
		)
	}

	url, err := s.processor.CreateCheckoutSession(ctx, external.CheckoutParams{
		Email:      normalized,
		PriceID:    priceID,
		SuccessURL: s.frontendURL + "/success.html?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.frontendURL,
	})
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "checkout session created",
		"email", normalized,
		"plan", string(plan),
	)
	return url, nil
}
