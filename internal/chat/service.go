// Package chat implements the gateway between the client conversation and
// the completion provider: validate the history, admit the sender against
// their quota, forward to the provider, and report the remaining budget.
package chat

import (
	"context"
	"log/slog"

	"tutorgate/internal/quota"
	"tutorgate/internal/types"
)

// CompletionProvider produces one model reply for a conversation. Both the
// Anthropic and OpenAI clients satisfy it.
type CompletionProvider interface {
	// Model returns the configured model identifier, surfaced verbatim in
	// chat responses.
	Model() string
	// Complete returns the text of the model's reply.
	Complete(ctx context.Context, system string, messages []types.Message, maxTokens int) (string, error)
}

// Request is one admission-gated completion request.
type Request struct {
	Messages  []types.Message
	System    string
	MaxTokens int
	// UserEmail identifies the sender for quota accounting. Empty means
	// anonymous.
	UserEmail string
}

// Result is a successful completion plus the sender's remaining budget
// after this message was spent.
type Result struct {
	Message   string
	Model     string
	Remaining types.Remaining
}

// Service coordinates quota admission and completion calls.
type Service struct {
	provider CompletionProvider
	resolver *quota.Resolver
	logger   *slog.Logger
}

// NewService creates a chat Service.
func NewService(provider CompletionProvider, resolver *quota.Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider: provider,
		resolver: resolver,
		logger:   logger,
	}
}

// HandleChat validates the request, spends one quota unit, and forwards the
// conversation to the completion provider.
//
// The quota unit is spent before the provider call and is not refunded if
// the call fails; a failed completion still consumed provider-side work and
// a refund would let a client burn unlimited upstream requests by forcing
// errors.
func (s *Service) HandleChat(ctx context.Context, req Request) (*Result, error) {
	if err := types.ValidateMessages(req.Messages); err != nil {
		return nil, err
	}

	email, err := senderKey(req.UserEmail)
	if err != nil {
		return nil, err
	}

	admission := s.resolver.Admit(ctx, email)
	if !admission.Allowed {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeQuotaDailyLimit,
			"Daily message limit reached. Please upgrade to continue.",
			nil,
			map[string]any{
				"success":            false,
				"upgrade_required":   true,
				"remaining_messages": 0,
			},
		)
	}

	s.logger.InfoContext(ctx, "chat admitted",
		"email", email,
		"subscribed", admission.HasSubscription,
		"messages", len(req.Messages),
	)

	reply, err := s.provider.Complete(ctx, req.System, req.Messages, req.MaxTokens)
	if err != nil {
		return nil, err
	}

	return &Result{
		Message:   reply,
		Model:     s.provider.Model(),
		Remaining: admission.Remaining,
	}, nil
}

// senderKey canonicalizes the quota accounting key. Empty and "anonymous"
// collapse to the anonymous sender; anything else must be a plausible email
// address.
func senderKey(userEmail string) (string, error) {
	normalized := types.NormalizeEmail(userEmail)
	if normalized == "" || normalized == quota.AnonymousSender {
		return quota.AnonymousSender, nil
	}
	if !types.IsValidEmail(normalized) {
		return "", types.NewAppError(
			types.ErrCodeValidationInvalidEmail,
			"Invalid email address",
			nil,
		)
	}
	return normalized, nil
}
