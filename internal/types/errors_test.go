package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

// TestAppErrorImplementsError verifies that *AppError satisfies the error interface.
func TestAppErrorImplementsError(t *testing.T) {
	var _ error = (*AppError)(nil)
}

// TestAppErrorErrorFormat verifies the Error() method produces the "code: message" format.
func TestAppErrorErrorFormat(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeValidationInvalidEmail,
		Message: "Invalid email address",
	}

	expected := "validation_invalid_email: Invalid email address"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

// TestAppErrorUnwrap verifies the error chain support via Unwrap.
func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("connection reset by peer")
	appErr := &AppError{
		Code:    ErrCodeUpstreamCompletion,
		Message: "completion provider unreachable",
		Err:     underlying,
	}

	if appErr.Unwrap() != underlying {
		t.Errorf("Unwrap() returned unexpected error: got %v, want %v", appErr.Unwrap(), underlying)
	}
}

// TestAppErrorUnwrapNil verifies Unwrap returns nil when no underlying error exists.
func TestAppErrorUnwrapNil(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeVerificationNotFound,
		Message: "no code found",
	}

	if appErr.Unwrap() != nil {
		t.Errorf("Unwrap() should return nil when Err is nil, got %v", appErr.Unwrap())
	}
}

// TestAppErrorErrorsAs verifies that errors.As can extract AppError from an error chain.
func TestAppErrorErrorsAs(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeVerificationExpired,
		Message: "code has expired",
	}
	wrappedErr := fmt.Errorf("handler failed: %w", appErr)

	var target *AppError
	if !errors.As(wrappedErr, &target) {
		t.Fatal("errors.As should find AppError in the chain")
	}
	if target.Code != ErrCodeVerificationExpired {
		t.Errorf("extracted Code = %q, want %q", target.Code, ErrCodeVerificationExpired)
	}
}

// TestAppErrorErrorsIs verifies that errors.Is works through the AppError chain.
func TestAppErrorErrorsIs(t *testing.T) {
	sentinel := errors.New("sentinel")
	appErr := &AppError{
		Code:    ErrCodeInternalUnexpected,
		Message: "unexpected failure",
		Err:     sentinel,
	}

	if !errors.Is(appErr, sentinel) {
		t.Error("errors.Is should find the sentinel error through Unwrap")
	}
}

// TestNewAppError verifies the basic constructor.
func TestNewAppError(t *testing.T) {
	underlying := errors.New("connection refused")
	appErr := NewAppError(ErrCodeUpstreamBilling, "billing unavailable", underlying)

	if appErr.Code != ErrCodeUpstreamBilling {
		t.Errorf("Code = %q, want %q", appErr.Code, ErrCodeUpstreamBilling)
	}
	if appErr.Message != "billing unavailable" {
		t.Errorf("Message = %q, want %q", appErr.Message, "billing unavailable")
	}
	if appErr.Err != underlying {
		t.Errorf("Err = %v, want %v", appErr.Err, underlying)
	}
	if appErr.Details != nil {
		t.Errorf("Details should be nil, got %v", appErr.Details)
	}
}

// TestNewAppErrorWithNilErr verifies constructor works with nil underlying error.
func TestNewAppErrorWithNilErr(t *testing.T) {
	appErr := NewAppError(ErrCodeVerificationMismatch, "incorrect code", nil)

	if appErr.Err != nil {
		t.Errorf("Err should be nil, got %v", appErr.Err)
	}
	if appErr.Error() != "verification_mismatch: incorrect code" {
		t.Errorf("Error() = %q, unexpected format", appErr.Error())
	}
}

// TestNewAppErrorWithDetails verifies the detailed constructor.
func TestNewAppErrorWithDetails(t *testing.T) {
	details := map[string]any{
		"field": "email",
		"value": "not-an-email",
	}
	appErr := NewAppErrorWithDetails(
		ErrCodeValidationInvalidEmail,
		"invalid email",
		nil,
		details,
	)

	if appErr.Code != ErrCodeValidationInvalidEmail {
		t.Errorf("Code = %q, want %q", appErr.Code, ErrCodeValidationInvalidEmail)
	}
	if appErr.Details == nil {
		t.Fatal("Details should not be nil")
	}
	if appErr.Details["field"] != "email" {
		t.Errorf("Details[\"field\"] = %v, want \"email\"", appErr.Details["field"])
	}
	if appErr.Details["value"] != "not-an-email" {
		t.Errorf("Details[\"value\"] = %v, want \"not-an-email\"", appErr.Details["value"])
	}
}

// TestAppErrorWithDetails verifies the WithDetails method creates a copy with merged details.
func TestAppErrorWithDetails(t *testing.T) {
	original := NewAppErrorWithDetails(
		ErrCodeValidationMissingField,
		"field is required",
		nil,
		map[string]any{"field": "email"},
	)

	enhanced := original.WithDetails(map[string]any{
		"suggestion": "provide a non-empty email",
	})

	// Original should be unchanged.
	if _, ok := original.Details["suggestion"]; ok {
		t.Error("WithDetails should not mutate the original error")
	}

	// Enhanced should have both details.
	if enhanced.Details["field"] != "email" {
		t.Errorf("enhanced should retain original detail: field = %v", enhanced.Details["field"])
	}
	if enhanced.Details["suggestion"] != "provide a non-empty email" {
		t.Errorf("enhanced should have new detail: suggestion = %v", enhanced.Details["suggestion"])
	}

	// Code and Message should carry over.
	if enhanced.Code != original.Code {
		t.Errorf("Code should carry over: got %q, want %q", enhanced.Code, original.Code)
	}
	if enhanced.Message != original.Message {
		t.Errorf("Message should carry over: got %q, want %q", enhanced.Message, original.Message)
	}
}

// TestAppErrorWithDetailsOverwrite verifies that WithDetails overwrites existing keys.
func TestAppErrorWithDetailsOverwrite(t *testing.T) {
	original := NewAppErrorWithDetails(
		ErrCodeQuotaDailyLimit,
		"limit reached",
		nil,
		map[string]any{"remaining_messages": 3, "limit": 10},
	)

	enhanced := original.WithDetails(map[string]any{"remaining_messages": 0})

	if enhanced.Details["remaining_messages"] != 0 {
		t.Errorf("WithDetails should overwrite existing key: remaining_messages = %v, want 0", enhanced.Details["remaining_messages"])
	}
	if enhanced.Details["limit"] != 10 {
		t.Errorf("WithDetails should retain non-overwritten keys: limit = %v", enhanced.Details["limit"])
	}
}

// TestAppErrorWithDetailsNilOriginal verifies WithDetails works when original has no details.
func TestAppErrorWithDetailsNilOriginal(t *testing.T) {
	original := NewAppError(ErrCodeVerificationNotFound, "not found", nil)
	enhanced := original.WithDetails(map[string]any{"email": "user@example.com"})

	if enhanced.Details["email"] != "user@example.com" {
		t.Errorf("WithDetails on nil original should work: email = %v", enhanced.Details["email"])
	}
}

// TestAppErrorHTTPStatus verifies the convenience method on AppError.
func TestAppErrorHTTPStatus(t *testing.T) {
	appErr := NewAppError(ErrCodeQuotaDailyLimit, "limit reached", nil)
	if appErr.HTTPStatus() != http.StatusTooManyRequests {
		t.Errorf("HTTPStatus() = %d, want %d", appErr.HTTPStatus(), http.StatusTooManyRequests)
	}
}

// TestErrorCodeHTTPStatusMapping verifies the mapping from error codes to HTTP statuses.
// This is a comprehensive test covering every error code category.
func TestErrorCodeHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		code       ErrorCode
		wantStatus int
	}{
		// Validation (400)
		{ErrCodeValidationInvalidEmail, http.StatusBadRequest},
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeValidationNoMessages, http.StatusBadRequest},
		{ErrCodeValidationInvalidJSON, http.StatusBadRequest},
		{ErrCodeValidationInvalidPlan, http.StatusBadRequest},

		// Verification (400)
		{ErrCodeVerificationNotFound, http.StatusBadRequest},
		{ErrCodeVerificationExpired, http.StatusBadRequest},
		{ErrCodeVerificationMismatch, http.StatusBadRequest},

		// Quota and traffic (429)
		{ErrCodeQuotaDailyLimit, http.StatusTooManyRequests},
		{ErrCodeRateLimit, http.StatusTooManyRequests},

		// Upstream (500)
		{ErrCodeUpstreamCompletion, http.StatusInternalServerError},
		{ErrCodeUpstreamBilling, http.StatusInternalServerError},
		{ErrCodeUpstreamEmail, http.StatusInternalServerError},
		{ErrCodeUpstreamRateLimited, http.StatusInternalServerError},

		// Internal (500)
		{ErrCodeInternalUnexpected, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			got := tt.code.HTTPStatus()
			if got != tt.wantStatus {
				t.Errorf("ErrorCode(%q).HTTPStatus() = %d, want %d", tt.code, got, tt.wantStatus)
			}
		})
	}
}

// TestErrorCodeHTTPStatusUnknown verifies that unrecognized codes default to 500.
func TestErrorCodeHTTPStatusUnknown(t *testing.T) {
	unknown := ErrorCode("totally_unknown_error")
	if unknown.HTTPStatus() != http.StatusInternalServerError {
		t.Errorf("unknown ErrorCode.HTTPStatus() = %d, want %d", unknown.HTTPStatus(), http.StatusInternalServerError)
	}
}

// TestAllErrorCodeStringValues verifies every error constant has the expected string value.
// This is a regression test to ensure nobody accidentally changes a constant's value.
func TestAllErrorCodeStringValues(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected string
	}{
		// Validation
		{ErrCodeValidationInvalidEmail, "validation_invalid_email"},
		{ErrCodeValidationMissingField, "validation_missing_required_field"},
		{ErrCodeValidationNoMessages, "validation_no_messages"},
		{ErrCodeValidationInvalidJSON, "validation_invalid_json"},
		{ErrCodeValidationInvalidPlan, "validation_invalid_plan"},

		// Verification
		{ErrCodeVerificationNotFound, "verification_not_found"},
		{ErrCodeVerificationExpired, "verification_expired"},
		{ErrCodeVerificationMismatch, "verification_mismatch"},

		// Quota and traffic
		{ErrCodeQuotaDailyLimit, "quota_daily_limit_exceeded"},
		{ErrCodeRateLimit, "rate_limit_exceeded"},

		// Upstream
		{ErrCodeUpstreamCompletion, "upstream_completion_unavailable"},
		{ErrCodeUpstreamBilling, "upstream_billing_unavailable"},
		{ErrCodeUpstreamEmail, "upstream_email_unavailable"},
		{ErrCodeUpstreamRateLimited, "upstream_rate_limited"},

		// Internal
		{ErrCodeInternalUnexpected, "internal_unexpected_error"},
	}

	for _, tt := range tests {
		if string(tt.code) != tt.expected {
			t.Errorf("ErrorCode constant %q has value %q, want %q", tt.code, string(tt.code), tt.expected)
		}
	}
}

// TestAppErrorFmtStringer verifies that AppError produces readable output in fmt functions.
func TestAppErrorFmtStringer(t *testing.T) {
	appErr := NewAppError(ErrCodeQuotaDailyLimit, "daily message limit reached", nil)
	result := fmt.Sprintf("got error: %v", appErr)
	expected := "got error: quota_daily_limit_exceeded: daily message limit reached"
	if result != expected {
		t.Errorf("fmt.Sprintf(\"%%v\") = %q, want %q", result, expected)
	}
}
