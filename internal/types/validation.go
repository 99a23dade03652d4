package types

import (
	"fmt"
	"regexp"
	"strings"
)

// Validation constraint constants.
const (
	MaxEmailLength   = 254
	MaxMessages      = 100
	MaxContentLength = 32768
)

// emailPattern is a pragmatic address check, not an RFC 5322 parser.
// Deliverability is proven by the verification code flow, not by the regex.
var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// NormalizeEmail canonicalizes an address for use as a ledger and
// verification key: surrounding whitespace stripped, lowercased.
// Two spellings of the same mailbox must map to the same key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmail reports whether the (already normalized) address is
// plausible enough to send a verification code to.
func IsValidEmail(email string) bool {
	if email == "" || len(email) > MaxEmailLength {
		return false
	}
	return emailPattern.MatchString(email)
}

// ValidateEmail normalizes and checks an address, returning the canonical
// form or a validation AppError.
func ValidateEmail(email string) (string, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return "", NewAppError(ErrCodeValidationMissingField, "Email is required", nil)
	}
	if !IsValidEmail(normalized) {
		return "", NewAppError(ErrCodeValidationInvalidEmail, "Invalid email address", nil)
	}
	return normalized, nil
}

// ValidateMessages checks a conversation history for structural problems
// before it is admitted to the completion pipeline.
func ValidateMessages(messages []Message) error {
	if len(messages) == 0 {
		return NewAppError(ErrCodeValidationNoMessages, "No messages provided", nil)
	}
	if len(messages) > MaxMessages {
		return NewAppError(ErrCodeValidationNoMessages,
			fmt.Sprintf("Too many messages: maximum is %d", MaxMessages), nil)
	}
	for i, m := range messages {
		switch m.Role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			return NewAppErrorWithDetails(ErrCodeValidationMissingField,
				fmt.Sprintf("Message %d has invalid role", i), nil,
				map[string]any{"index": i, "role": m.Role})
		}
		if m.Content == "" {
			return NewAppErrorWithDetails(ErrCodeValidationMissingField,
				fmt.Sprintf("Message %d has empty content", i), nil,
				map[string]any{"index": i})
		}
		if len(m.Content) > MaxContentLength {
			return NewAppErrorWithDetails(ErrCodeValidationMissingField,
				fmt.Sprintf("Message %d exceeds maximum content length", i), nil,
				map[string]any{"index": i, "max": MaxContentLength})
		}
	}
	return nil
}
