package billing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorgate/internal/config"
	"tutorgate/internal/external"
	"tutorgate/internal/types"
)

// mockInitiator is a function-field mock of the checkout processor.
type mockInitiator struct {
	createFunc func(ctx context.Context, p external.CheckoutParams) (string, error)
	lastParams external.CheckoutParams
	calls      int
}

func (m *mockInitiator) CreateCheckoutSession(ctx context.Context, p external.CheckoutParams) (string, error) {
	m.calls++
	m.lastParams = p
	if m.createFunc != nil {
		return m.createFunc(ctx, p)
	}
	return "https://checkout.stripe.com/c/pay/cs_test", nil
}

func newTestService(processor *mockInitiator) *Service {
	cfg := config.BillingConfig{
		PricePremium:      "price_premium_1",
		PricePremiumVoice: "price_voice_1",
	}
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	return NewService(processor, cfg, "https://app.example.com/", logger)
}

func appErrCode(t *testing.T, err error) types.ErrorCode {
	t.Helper()
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr), "expected *types.AppError, got %T: %v", err, err)
	return appErr.Code
}

func TestStartCheckout_Premium(t *testing.T) {
	processor := &mockInitiator{}
	svc := newTestService(processor)

	url, err := svc.StartCheckout(context.Background(), "user@example.com", types.PlanPremium)

	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test", url)
	assert.Equal(t, "user@example.com", processor.lastParams.Email)
	assert.Equal(t, "price_premium_1", processor.lastParams.PriceID)
	assert.Equal(t, "https://app.example.com/success.html?session_id={CHECKOUT_SESSION_ID}", processor.lastParams.SuccessURL)
	assert.Equal(t, "https://app.example.com", processor.lastParams.CancelURL)
}

func TestStartCheckout_PremiumVoice(t *testing.T) {
	processor := &mockInitiator{}
	svc := newTestService(processor)

	_, err := svc.StartCheckout(context.Background(), "user@example.com", types.PlanPremiumVoice)

	require.NoError(t, err)
	assert.Equal(t, "price_voice_1", processor.lastParams.PriceID)
}

func TestStartCheckout_NormalizesEmail(t *testing.T) {
	processor := &mockInitiator{}
	svc := newTestService(processor)

	_, err := svc.StartCheckout(context.Background(), "  User@Example.COM ", types.PlanPremium)

	require.NoError(t, err)
	assert.Equal(t, "user@example.com", processor.lastParams.Email)
}

func TestStartCheckout_InvalidEmail(t *testing.T) {
	processor := &mockInitiator{}
	svc := newTestService(processor)

	_, err := svc.StartCheckout(context.Background(), "not-an-email", types.PlanPremium)

	require.Error(t, err)
	assert.Equal(t, types.ErrCodeValidationInvalidEmail, appErrCode(t, err))
	assert.Equal(t, 0, processor.calls)
}

func TestStartCheckout_MissingEmail(t *testing.T) {
	processor := &mockInitiator{}
	svc := newTestService(processor)

	_, err := svc.StartCheckout(context.Background(), "  ", types.PlanPremium)

	require.Error(t, err)
	assert.Equal(t, types.ErrCodeValidationMissingField, appErrCode(t, err))
}

func TestStartCheckout_UnknownPlan(t *testing.T) {
	processor := &mockInitiator{}
	svc := newTestService(processor)

	_, err := svc.StartCheckout(context.Background(), "user@example.com", types.Plan("gold"))

	require.Error(t, err)
	assert.Equal(t, types.ErrCodeValidationInvalidPlan, appErrCode(t, err))
	assert.Equal(t, 0, processor.calls)
}

func TestStartCheckout_UnconfiguredPrice(t *testing.T) {
	processor := &mockInitiator{}
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	svc := NewService(processor, config.BillingConfig{PricePremium: "price_premium_1"}, "https://app.example.com", logger)

	// premium_voice has no price ID configured.
	_, err := svc.StartCheckout(context.Background(), "user@example.com", types.PlanPremiumVoice)

	require.Error(t, err)
	assert.Equal(t, types.ErrCodeValidationInvalidPlan, appErrCode(t, err))
	assert.Equal(t, 0, processor.calls)
}

func TestStartCheckout_ProcessorError(t *testing.T) {
	processor := &mockInitiator{
		createFunc: func(ctx context.Context, p external.CheckoutParams) (string, error) {
			return "", types.NewAppError(types.ErrCodeUpstreamBilling, "stripe down", nil)
		},
	}
	svc := newTestService(processor)

	_, err := svc.StartCheckout(context.Background(), "user@example.com", types.PlanPremium)

	require.Error(t, err)
	assert.Equal(t, types.ErrCodeUpstreamBilling, appErrCode(t, err))
}
