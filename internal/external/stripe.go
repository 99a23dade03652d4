package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tutorgate/internal/types"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v82"
)

// stripeAPIBase is the default Stripe API base URL.
// Overridable in tests via StripeClientConfig.BaseURL.
const stripeAPIBase = "https://api.stripe.com"

// StripeClientConfig holds the configuration for creating a StripeClient.
type StripeClientConfig struct {
	SecretKey string
	BaseURL   string // Override for testing; defaults to stripeAPIBase
	Logger    *slog.Logger
}

// CheckoutParams describes one hosted checkout session to create.
type CheckoutParams struct {
	Email      string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// StripeClient talks to the Stripe REST API directly over HTTP through
// BaseClient. This routes all requests through the shared resilience
// infrastructure (circuit breaker, retries, error mapping) and makes
// testing with httptest straightforward; the stripe-go module contributes
// only the pinned API version header.
type StripeClient struct {
	base      *BaseClient
	secretKey string
	baseURL   string
	logger    *slog.Logger
}

// NewStripeClient creates a new StripeClient. The httpClient timeout should
// be set to the configured billing timeout (20 seconds by default).
func NewStripeClient(httpClient *http.Client, cfg StripeClientConfig) *StripeClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"stripe",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"TutorGate/1.0",
		types.ErrCodeUpstreamBilling,
	)

	return &StripeClient{
		base:      base,
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
	}
}

// NewStripeClientWithBase creates a StripeClient with a pre-configured
// BaseClient. This is useful for testing when you want to control the
// BaseClient configuration.
func NewStripeClientWithBase(base *BaseClient, cfg StripeClientConfig) *StripeClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &StripeClient{
		base:      base,
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
	}
}

// CheckHealth reports billing reachability from the circuit breaker state.
// No request is made: an open breaker already means recent calls failed.
func (s *StripeClient) CheckHealth(ctx context.Context) error {
	return s.base.Healthy()
}

// FindCustomerByEmail returns the first Stripe customer with an exact email
// match, or nil when none exists.
func (s *StripeClient) FindCustomerByEmail(ctx context.Context, email string) (*types.Customer, error) {
	params := url.Values{}
	params.Set("email", email)
	params.Set("limit", "1")

	resp, err := s.doGet(ctx, "/v1/customers", params)
	if err != nil {
		return nil, s.wrapStripeError("FindCustomerByEmail", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.handleErrorResponse(resp, "FindCustomerByEmail")
	}

	var list stripeCustomerList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe customer list response",
			err,
		)
	}

	if len(list.Data) == 0 {
		return nil, nil
	}

	return &types.Customer{
		ID:    list.Data[0].ID,
		Email: list.Data[0].Email,
	}, nil
}

// ListActiveSubscriptions returns the customer's active subscriptions. Only
// the first matters for entitlement, so the query is capped at one.
func (s *StripeClient) ListActiveSubscriptions(ctx context.Context, customerID string) ([]types.Subscription, error) {
	params := url.Values{}
	params.Set("customer", customerID)
	params.Set("status", "active")
	params.Set("limit", "1")

	resp, err := s.doGet(ctx, "/v1/subscriptions", params)
	if err != nil {
		return nil, s.wrapStripeError("ListActiveSubscriptions", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.handleErrorResponse(resp, "ListActiveSubscriptions")
	}

	var list stripeSubscriptionList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe subscriptions response",
			err,
		)
	}

	subs := make([]types.Subscription, 0, len(list.Data))
	for _, ss := range list.Data {
		subs = append(subs, mapStripeSubscription(customerID, &ss))
	}
	return subs, nil
}

// CreateCheckoutSession creates a hosted checkout session for a subscription
// purchase and returns its URL verbatim. A fresh client_reference_id is
// attached for later correlation with the processor's dashboard.
func (s *StripeClient) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error) {
	params := url.Values{}
	params.Set("mode", "subscription")
	params.Set("customer_email", p.Email)
	params.Set("client_reference_id", uuid.NewString())
	params.Set("payment_method_types[0]", "card")
	params.Set("line_items[0][price]", p.PriceID)
	params.Set("line_items[0][quantity]", "1")
	params.Set("success_url", p.SuccessURL)
	params.Set("cancel_url", p.CancelURL)

	resp, err := s.doPost(ctx, "/v1/checkout/sessions", params)
	if err != nil {
		return "", s.wrapStripeError("CreateCheckoutSession", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", s.handleErrorResponse(resp, "CreateCheckoutSession")
	}

	var session stripeCheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe checkout session response",
			err,
		)
	}

	return session.URL, nil
}

// ---------------------------------------------------------------------------
// HTTP Helpers
// ---------------------------------------------------------------------------

// doGet performs an authenticated GET request to the Stripe API.
func (s *StripeClient) doGet(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	reqURL := s.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	s.setAuthHeaders(req)

	return s.base.Do(req)
}

// doPost performs an authenticated POST request to the Stripe API with
// form-encoded body.
func (s *StripeClient) doPost(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	reqURL := s.baseURL + path
	body := params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	s.setAuthHeaders(req)

	return s.base.Do(req)
}

// setAuthHeaders sets the Stripe API authentication and version headers.
func (s *StripeClient) setAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Stripe-Version", stripe.APIVersion)
}

// ---------------------------------------------------------------------------
// Error Handling
// ---------------------------------------------------------------------------

// stripeErrorResponse represents the JSON error body returned by the Stripe API.
type stripeErrorResponse struct {
	Error stripeErrorBody `json:"error"`
}

type stripeErrorBody struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param"`
}

// handleErrorResponse reads a Stripe error response and maps it to a types.AppError.
func (s *StripeClient) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamBilling,
			fmt.Sprintf("%s: Stripe returned status %d and response body was unreadable", operation, resp.StatusCode),
			readErr,
		)
	}

	var stripeErr stripeErrorResponse
	if jsonErr := json.Unmarshal(body, &stripeErr); jsonErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamBilling,
			fmt.Sprintf("%s: Stripe returned status %d with non-JSON body", operation, resp.StatusCode),
			jsonErr,
		)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimited,
			fmt.Sprintf("%s: Stripe rate limit exceeded", operation),
			nil,
		)
	default:
		return types.NewAppError(
			types.ErrCodeUpstreamBilling,
			fmt.Sprintf("%s: Stripe error (%d): %s", operation, resp.StatusCode, stripeErr.Error.Message),
			nil,
		)
	}
}

// wrapStripeError wraps a BaseClient transport error with context.
func (s *StripeClient) wrapStripeError(operation string, err error) error {
	// AppErrors from BaseClient (circuit breaker, retries exhausted) already
	// carry the right code.
	if _, ok := err.(*types.AppError); ok {
		return err
	}
	return types.NewAppError(
		types.ErrCodeUpstreamBilling,
		fmt.Sprintf("%s: Stripe request failed: %v", operation, err),
		err,
	)
}

// ---------------------------------------------------------------------------
// Stripe Response Types (for JSON deserialization)
// ---------------------------------------------------------------------------

type stripeCustomer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type stripeCustomerList struct {
	Data    []stripeCustomer `json:"data"`
	HasMore bool             `json:"has_more"`
}

type stripeCheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type stripeSubscription struct {
	ID               string                  `json:"id"`
	Status           string                  `json:"status"`
	CurrentPeriodEnd int64                   `json:"current_period_end"`
	Items            stripeSubscriptionItems `json:"items"`
}

type stripeSubscriptionItems struct {
	Data []stripeSubscriptionItem `json:"data"`
}

type stripeSubscriptionItem struct {
	Price stripePrice `json:"price"`
}

type stripePrice struct {
	ID        string `json:"id"`
	LookupKey string `json:"lookup_key"`
}

type stripeSubscriptionList struct {
	Data    []stripeSubscription `json:"data"`
	HasMore bool                 `json:"has_more"`
}

// mapStripeSubscription converts a Stripe subscription to the domain type.
func mapStripeSubscription(customerID string, ss *stripeSubscription) types.Subscription {
	sub := types.Subscription{
		ID:               ss.ID,
		CustomerID:       customerID,
		Status:           ss.Status,
		CurrentPeriodEnd: time.Unix(ss.CurrentPeriodEnd, 0).UTC(),
	}
	if len(ss.Items.Data) > 0 {
		sub.Plan = types.Plan(ss.Items.Data[0].Price.LookupKey)
	}
	return sub
}
