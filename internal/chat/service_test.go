package chat

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorgate/internal/quota"
	"tutorgate/internal/types"
)

// mockProvider is a function-field mock of the completion provider.
type mockProvider struct {
	model        string
	completeFunc func(ctx context.Context, system string, messages []types.Message, maxTokens int) (string, error)
	calls        int
}

func (m *mockProvider) Model() string {
	if m.model == "" {
		return "test-model"
	}
	return m.model
}

func (m *mockProvider) Complete(ctx context.Context, system string, messages []types.Message, maxTokens int) (string, error) {
	m.calls++
	if m.completeFunc != nil {
		return m.completeFunc(ctx, system, messages, maxTokens)
	}
	return "mock reply", nil
}

// mockBilling is a function-field mock of the billing lookup.
type mockBilling struct {
	findFunc func(ctx context.Context, email string) (*types.Customer, error)
	listFunc func(ctx context.Context, customerID string) ([]types.Subscription, error)
}

func (m *mockBilling) FindCustomerByEmail(ctx context.Context, email string) (*types.Customer, error) {
	if m.findFunc != nil {
		return m.findFunc(ctx, email)
	}
	return nil, nil
}

func (m *mockBilling) ListActiveSubscriptions(ctx context.Context, customerID string) ([]types.Subscription, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, customerID)
	}
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

// newTestService wires a Service over a fresh ledger with the given free
// daily limit and billing behavior.
func newTestService(provider *mockProvider, billing *mockBilling, limit int) *Service {
	resolver := quota.NewResolver(billing, quota.NewLedger(), limit, testLogger())
	return NewService(provider, resolver, testLogger())
}

func userMessage(content string) []types.Message {
	return []types.Message{{Role: types.RoleUser, Content: content}}
}

func appErrCode(t *testing.T, err error) types.ErrorCode {
	t.Helper()
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr), "expected *types.AppError, got %T: %v", err, err)
	return appErr.Code
}

func TestHandleChat_Success(t *testing.T) {
	provider := &mockProvider{model: "claude-sonnet-4-5-20250929"}
	svc := newTestService(provider, &mockBilling{}, 10)

	result, err := svc.HandleChat(context.Background(), Request{
		Messages:  userMessage("hello"),
		UserEmail: "user@example.com",
	})

	require.NoError(t, err)
	assert.Equal(t, "mock reply", result.Message)
	assert.Equal(t, "claude-sonnet-4-5-20250929", result.Model)
	assert.False(t, result.Remaining.Unlimited)
	assert.Equal(t, 9, result.Remaining.Count)
}

func TestHandleChat_EmptyMessages(t *testing.T) {
	provider := &mockProvider{}
	svc := newTestService(provider, &mockBilling{}, 10)

	_, err := svc.HandleChat(context.Background(), Request{UserEmail: "user@example.com"})

	require.Error(t, err)
	assert.Equal(t, types.ErrCodeValidationNoMessages, appErrCode(t, err))
	assert.Equal(t, 0, provider.calls, "provider must not be called on invalid input")
}

func TestHandleChat_InvalidEmail(t *testing.T) {
	provider := &mockProvider{}
	svc := newTestService(provider, &mockBilling{}, 10)

	_, err := svc.HandleChat(context.Background(), Request{
		Messages:  userMessage("hello"),
		UserEmail: "not-an-email",
	})

	require.Error(t, err)
	assert.Equal(t, types.ErrCodeValidationInvalidEmail, appErrCode(t, err))
	assert.Equal(t, 0, provider.calls)
}

func TestHandleChat_AnonymousUnlimited(t *testing.T) {
	billingCalls := 0
	billing := &mockBilling{
		findFunc: func(ctx context.Context, email string) (*types.Customer, error) {
			billingCalls++
			return nil, nil
		},
	}
	provider := &mockProvider{}
	svc := newTestService(provider, billing, 10)

	for i := 0; i < 25; i++ {
		result, err := svc.HandleChat(context.Background(), Request{
			Messages: userMessage("hello"),
		})
		require.NoError(t, err)
		assert.True(t, result.Remaining.Unlimited)
	}

	assert.Equal(t, 0, billingCalls, "anonymous senders must not trigger billing lookups")
	assert.Equal(t, 25, provider.calls)
}

func TestHandleChat_ExplicitAnonymousEmail(t *testing.T) {
	provider := &mockProvider{}
	svc := newTestService(provider, &mockBilling{}, 10)

	result, err := svc.HandleChat(context.Background(), Request{
		Messages:  userMessage("hello"),
		UserEmail: "Anonymous",
	})

	require.NoError(t, err)
	assert.True(t, result.Remaining.Unlimited)
}

func TestHandleChat_QuotaExhausted(t *testing.T) {
	provider := &mockProvider{}
	svc := newTestService(provider, &mockBilling{}, 3)

	for i := 0; i < 3; i++ {
		_, err := svc.HandleChat(context.Background(), Request{
			Messages:  userMessage("hello"),
			UserEmail: "user@example.com",
		})
		require.NoError(t, err)
	}

	_, err := svc.HandleChat(context.Background(), Request{
		Messages:  userMessage("hello"),
		UserEmail: "user@example.com",
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeQuotaDailyLimit, appErrCode(t, err))

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, false, appErr.Details["success"])
	assert.Equal(t, true, appErr.Details["upgrade_required"])
	assert.Equal(t, 0, appErr.Details["remaining_messages"])

	assert.Equal(t, 3, provider.calls, "denied request must not reach the provider")
}

func TestHandleChat_SubscribedBypassesQuota(t *testing.T) {
	billing := &mockBilling{
		findFunc: func(ctx context.Context, email string) (*types.Customer, error) {
			return &types.Customer{ID: "cus_1", Email: email}, nil
		},
		listFunc: func(ctx context.Context, customerID string) ([]types.Subscription, error) {
			return []types.Subscription{{ID: "sub_1", Status: "active", Plan: types.PlanPremium}}, nil
		},
	}
	provider := &mockProvider{}
	svc := newTestService(provider, billing, 2)

	for i := 0; i < 10; i++ {
		result, err := svc.HandleChat(context.Background(), Request{
			Messages:  userMessage("hello"),
			UserEmail: "subscriber@example.com",
		})
		require.NoError(t, err)
		assert.True(t, result.Remaining.Unlimited)
	}
	assert.Equal(t, 10, provider.calls)
}

func TestHandleChat_ProviderErrorDoesNotRefund(t *testing.T) {
	provider := &mockProvider{
		completeFunc: func(ctx context.Context, system string, messages []types.Message, maxTokens int) (string, error) {
			return "", types.NewAppError(types.ErrCodeUpstreamCompletion, "provider down", nil)
		},
	}
	svc := newTestService(provider, &mockBilling{}, 2)

	_, err := svc.HandleChat(context.Background(), Request{
		Messages:  userMessage("hello"),
		UserEmail: "user@example.com",
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeUpstreamCompletion, appErrCode(t, err))

	// The failed attempt still consumed a unit: only one success remains.
	provider.completeFunc = nil
	result, err := svc.HandleChat(context.Background(), Request{
		Messages:  userMessage("hello"),
		UserEmail: "user@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Remaining.Count)

	_, err = svc.HandleChat(context.Background(), Request{
		Messages:  userMessage("hello"),
		UserEmail: "user@example.com",
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeQuotaDailyLimit, appErrCode(t, err))
}

func TestHandleChat_PassesSystemAndMaxTokens(t *testing.T) {
	var gotSystem string
	var gotMaxTokens int
	provider := &mockProvider{
		completeFunc: func(ctx context.Context, system string, messages []types.Message, maxTokens int) (string, error) {
			gotSystem = system
			gotMaxTokens = maxTokens
			return "ok", nil
		},
	}
	svc := newTestService(provider, &mockBilling{}, 10)

	_, err := svc.HandleChat(context.Background(), Request{
		Messages:  userMessage("hello"),
		System:    "You are a Spanish tutor.",
		MaxTokens: 512,
		UserEmail: "user@example.com",
	})

	require.NoError(t, err)
	assert.Equal(t, "You are a Spanish tutor.", gotSystem)
	assert.Equal(t, 512, gotMaxTokens)
}

func TestHandleChat_EmailNormalizedForQuota(t *testing.T) {
	provider := &mockProvider{}
	svc := newTestService(provider, &mockBilling{}, 2)

	_, err := svc.HandleChat(context.Background(), Request{
		Messages:  userMessage("hello"),
		UserEmail: "  User@Example.COM ",
	})
	require.NoError(t, err)

	result, err := svc.HandleChat(context.Background(), Request{
		Messages:  userMessage("hello"),
		UserEmail: "user@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Remaining.Count, "both spellings must charge the same ledger key")
}
