package external

import (
	"context"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"tutorgate/internal/types"
)

// OpenAIClientConfig holds the configuration for creating an OpenAIClient.
type OpenAIClientConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	BaseURL   string // Override for testing; defaults to the SDK's endpoint
	Logger    *slog.Logger
}

// OpenAIClient is the alternative completion provider, selected with
// COMPLETION_PROVIDER=openai. Unlike the Anthropic client it rides on the
// vendor SDK, which carries its own transport; the SDK client should be
// constructed with an *http.Client whose timeout matches the configured
// completion timeout.
type OpenAIClient struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *slog.Logger
}

// NewOpenAIClient creates a new OpenAIClient.
func NewOpenAIClient(cfg OpenAIClientConfig) *OpenAIClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger,
	}
}

// Model returns the configured model identifier.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Complete sends one conversation to the chat completions API and returns
// the text of the reply. The separate system prompt becomes a leading
// system-role message; system turns already in the history pass through
// unchanged, since the API accepts them inline.
func (c *OpenAIClient) Complete(ctx context.Context, system string, messages []types.Message, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	c.logger.InfoContext(ctx, "requesting completion",
		"model", c.model,
		"messages", len(chatMessages),
		"max_tokens", maxTokens,
	)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  chatMessages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeUpstreamCompletion,
			"Failed to get response from AI service",
			err,
		)
	}

	if len(resp.Choices) == 0 {
		return "", types.NewAppError(
			types.ErrCodeUpstreamCompletion,
			"completion provider returned an empty response",
			nil,
		)
	}

	c.logger.InfoContext(ctx, "completion received",
		"model", resp.Model,
		"finish_reason", string(resp.Choices[0].FinishReason),
	)

	return resp.Choices[0].Message.Content, nil
}
