package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tutorgate/internal/types"
)

// anthropicAPIBase is the default Anthropic API base URL.
// Overridable in tests via AnthropicClientConfig.BaseURL.
const anthropicAPIBase = "https://api.anthropic.com"

// anthropicVersion is the API version header value the Messages API requires.
const anthropicVersion = "2023-06-01"

// AnthropicClientConfig holds the configuration for creating an AnthropicClient.
type AnthropicClientConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	BaseURL   string // Override for testing; defaults to anthropicAPIBase
	Logger    *slog.Logger
}

// anthropicRequest is the body sent to the Messages endpoint.
type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse is the success body from the Messages endpoint.
type anthropicResponse struct {
	ID         string                  `json:"id"`
	Model      string                  `json:"model"`
	StopReason string                  `json:"stop_reason"`
	Content    []anthropicContentBlock `json:"content"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// anthropicErrorResponse is the error body from the Messages endpoint.
type anthropicErrorResponse struct {
	Error anthropicErrorBody `json:"error"`
}

type anthropicErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// AnthropicClient produces chat completions by calling the Anthropic Messages
// API directly over HTTP through BaseClient. This routes all requests through
// the shared resilience infrastructure (circuit breaker, retries, error
// mapping) and makes testing with httptest straightforward.
type AnthropicClient struct {
	base      *BaseClient
	apiKey    string
	model     string
	maxTokens int
	baseURL   string
	logger    *slog.Logger
}

// NewAnthropicClient creates a new AnthropicClient. The httpClient timeout
// should be set to the configured completion timeout (60 seconds by default;
// model responses are slow).
func NewAnthropicClient(httpClient *http.Client, cfg AnthropicClientConfig) *AnthropicClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = anthropicAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"anthropic",
		RetryPolicy{
			MaxRetries: 1,
			MinWait:    1 * time.Second,
			MaxWait:    10 * time.Second,
		},
		"TutorGate/1.0",
		types.ErrCodeUpstreamCompletion,
	)

	return &AnthropicClient{
		base:      base,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
	}
}

// NewAnthropicClientWithBase creates an AnthropicClient with a pre-configured
// BaseClient. This is useful for testing when you want to control the
// BaseClient configuration (e.g., disable retries).
func NewAnthropicClientWithBase(base *BaseClient, cfg AnthropicClientConfig) *AnthropicClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = anthropicAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AnthropicClient{
		base:      base,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
	}
}

// Model returns the configured model identifier, surfaced verbatim in chat
// responses.
func (c *AnthropicClient) Model() string {
	return c.model
}

// CheckHealth reports completion-provider reachability from the circuit
// breaker state, without spending a model call.
func (c *AnthropicClient) CheckHealth(ctx context.Context) error {
	return c.base.Healthy()
}

// Complete sends one conversation to the Messages API and returns the text
// of the reply. System-role turns in the history are folded into the system
// prompt, since the Messages API accepts only user/assistant roles in the
// message list. maxTokens <= 0 falls back to the configured default.
func (c *AnthropicClient) Complete(ctx context.Context, system string, messages []types.Message, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	reqBody := anthropicRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    system,
	}
	for _, m := range messages {
		if m.Role == types.RoleSystem {
			if reqBody.System != "" {
				reqBody.System += "\n\n"
			}
			reqBody.System += m.Content
			continue
		}
		reqBody.Messages = append(reqBody.Messages, anthropicMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to serialize completion request",
			err,
		)
	}

	url := c.baseURL + "/v1/messages"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create completion request",
			err,
		)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	c.logger.InfoContext(ctx, "requesting completion",
		"model", c.model,
		"messages", len(reqBody.Messages),
		"max_tokens", maxTokens,
	)

	resp, err := c.base.Do(req)
	if err != nil {
		return "", c.wrapError("Complete", err)
	}
	defer resp.Body.Close()

	// BaseClient returns 4xx responses (other than 429) as-is without error.
	if resp.StatusCode >= 400 {
		return "", c.handleErrorResponse(resp, "Complete")
	}

	var msgResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode completion response",
			err,
		)
	}

	text := collectText(msgResp.Content)
	if text == "" {
		return "", types.NewAppError(
			types.ErrCodeUpstreamCompletion,
			"completion provider returned an empty response",
			nil,
		)
	}

	c.logger.InfoContext(ctx, "completion received",
		"model", msgResp.Model,
		"stop_reason", msgResp.StopReason,
	)

	return text, nil
}

// collectText concatenates the text blocks of a Messages API response.
func collectText(blocks []anthropicContentBlock) string {
	var b strings.Builder
	for _, block := range blocks {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// handleErrorResponse reads and logs the error body from a non-2xx response,
// then returns an appropriate AppError. The provider's message is passed
// through; the chat endpoint surfaces it to the client.
func (c *AnthropicClient) handleErrorResponse(resp *http.Response, operation string) *types.AppError {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var errResp anthropicErrorResponse
	message := ""
	if err := json.Unmarshal(bodyBytes, &errResp); err == nil {
		message = errResp.Error.Message
	}
	if message == "" {
		message = fmt.Sprintf("completion provider returned status %d", resp.StatusCode)
	}

	c.logger.Error("Anthropic API error",
		"operation", operation,
		"status_code", resp.StatusCode,
		"error_type", errResp.Error.Type,
		"message", message,
	)

	if resp.StatusCode == http.StatusUnauthorized {
		return types.NewAppError(
			types.ErrCodeUpstreamCompletion,
			"completion provider authentication failed",
			fmt.Errorf("anthropic %s returned 401: %s", operation, message),
		)
	}

	return types.NewAppError(
		types.ErrCodeUpstreamCompletion,
		message,
		fmt.Errorf("anthropic %s returned %d", operation, resp.StatusCode),
	)
}

// wrapError converts errors from BaseClient.Do into completion errors.
func (c *AnthropicClient) wrapError(operation string, err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return types.NewAppError(
			appErr.Code,
			fmt.Sprintf("completion %s: %s", operation, appErr.Message),
			appErr.Err,
		)
	}

	return types.NewAppError(
		types.ErrCodeUpstreamCompletion,
		fmt.Sprintf("completion %s failed", operation),
		err,
	)
}
