package config

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

// setFullTestEnv sets a representative set of environment variables for a
// valid Config. It uses t.Setenv so values are automatically cleaned up.
func setFullTestEnv(t *testing.T) {
	t.Helper()

	// System metadata
	t.Setenv("APP_ENV", "local")
	t.Setenv("SERVICE_NAME", "test-service")
	t.Setenv("LOG_LEVEL", "debug")

	// Server
	t.Setenv("PORT", "9090")
	t.Setenv("FRONTEND_URL", "https://app.test.local")

	// Completion
	t.Setenv("COMPLETION_PROVIDER", "anthropic")
	t.Setenv("COMPLETION_MODEL", "claude-sonnet-4-5-20250929")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test-key")

	// Billing
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_abc123")
	t.Setenv("STRIPE_PRICE_PREMIUM", "price_premium_123")
	t.Setenv("STRIPE_PRICE_PREMIUM_VOICE", "price_voice_456")

	// Email
	t.Setenv("SMTP_ENABLED", "true")
	t.Setenv("SMTP_HOST", "smtp.test.local")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("SMTP_USERNAME", "mailer@test.local")
	t.Setenv("SMTP_PASSWORD", "smtp-secret")
	t.Setenv("SMTP_FROM_EMAIL", "noreply@test.local")

	// Quota
	t.Setenv("QUOTA_FREE_DAILY_LIMIT", "10")
	t.Setenv("VERIFICATION_CODE_TTL", "10m")
}

// TestLoadConfigSuccess verifies that LoadConfig successfully loads
// configuration with a full environment.
func TestLoadConfigSuccess(t *testing.T) {
	setFullTestEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	// System metadata
	if cfg.Environment != "local" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "local")
	}
	if cfg.Service != "test-service" {
		t.Errorf("Service = %q, want %q", cfg.Service, "test-service")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}

	// Server
	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "9090")
	}
	if cfg.Server.FrontendURL != "https://app.test.local" {
		t.Errorf("Server.FrontendURL = %q, want %q", cfg.Server.FrontendURL, "https://app.test.local")
	}

	// Completion
	if cfg.Completion.Provider != "anthropic" {
		t.Errorf("Completion.Provider = %q, want %q", cfg.Completion.Provider, "anthropic")
	}
	if cfg.Completion.Model != "claude-sonnet-4-5-20250929" {
		t.Errorf("Completion.Model = %q, want %q", cfg.Completion.Model, "claude-sonnet-4-5-20250929")
	}
	if cfg.Completion.AnthropicAPIKey.Unmask() != "sk-ant-test-key" {
		t.Error("Completion.AnthropicAPIKey did not round-trip")
	}

	// Billing
	if cfg.Billing.StripeSecretKey.Unmask() != "sk_test_abc123" {
		t.Error("Billing.StripeSecretKey did not round-trip")
	}
	if cfg.Billing.PricePremium != "price_premium_123" {
		t.Errorf("Billing.PricePremium = %q, want %q", cfg.Billing.PricePremium, "price_premium_123")
	}
	if cfg.Billing.PricePremiumVoice != "price_voice_456" {
		t.Errorf("Billing.PricePremiumVoice = %q, want %q", cfg.Billing.PricePremiumVoice, "price_voice_456")
	}

	// Email
	if !cfg.Email.Enabled {
		t.Error("Email.Enabled should be true")
	}
	if cfg.Email.Host != "smtp.test.local" {
		t.Errorf("Email.Host = %q, want %q", cfg.Email.Host, "smtp.test.local")
	}
	if cfg.Email.Port != 2525 {
		t.Errorf("Email.Port = %d, want 2525", cfg.Email.Port)
	}

	// Quota
	if cfg.Quota.FreeDailyLimit != 10 {
		t.Errorf("Quota.FreeDailyLimit = %d, want 10", cfg.Quota.FreeDailyLimit)
	}
	if cfg.Quota.CodeTTL != 10*time.Minute {
		t.Errorf("Quota.CodeTTL = %v, want 10m", cfg.Quota.CodeTTL)
	}

	// Build metadata
	if cfg.Build.Version != "dev" {
		t.Errorf("Build.Version = %q, want %q", cfg.Build.Version, "dev")
	}
}

// unsetVars removes environment variables for the duration of a test,
// restoring any prior values afterwards. envconfig only falls back to struct
// defaults when a variable is absent, not when it is set to empty.
func unsetVars(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		if prev, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, prev) })
			os.Unsetenv(key)
		}
	}
}

// TestLoadConfigDefaults verifies struct defaults apply with a minimal environment.
func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	unsetVars(t,
		"PORT", "FRONTEND_URL",
		"COMPLETION_PROVIDER", "COMPLETION_MODEL", "COMPLETION_TIMEOUT",
		"QUOTA_FREE_DAILY_LIMIT", "VERIFICATION_CODE_TTL",
		"SMTP_ENABLED", "SMTP_HOST", "SMTP_PORT", "SMTP_TIMEOUT",
		"BILLING_TIMEOUT", "CORS_ALLOWED_ORIGINS",
	)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("default Port = %q, want %q", cfg.Server.Port, "8080")
	}
	if cfg.Server.FrontendURL != "http://localhost:8000" {
		t.Errorf("default FrontendURL = %q, want %q", cfg.Server.FrontendURL, "http://localhost:8000")
	}
	if cfg.Completion.Provider != "anthropic" {
		t.Errorf("default Completion.Provider = %q, want %q", cfg.Completion.Provider, "anthropic")
	}
	if cfg.Completion.Model != "claude-sonnet-4-5-20250929" {
		t.Errorf("default Completion.Model = %q, want %q", cfg.Completion.Model, "claude-sonnet-4-5-20250929")
	}
	if cfg.Quota.FreeDailyLimit != 10 {
		t.Errorf("default FreeDailyLimit = %d, want 10", cfg.Quota.FreeDailyLimit)
	}
	if cfg.Quota.CodeTTL != 10*time.Minute {
		t.Errorf("default CodeTTL = %v, want 10m", cfg.Quota.CodeTTL)
	}
	if cfg.Email.Enabled {
		t.Error("default Email.Enabled should be false")
	}
	if cfg.Email.Host != "smtp.gmail.com" {
		t.Errorf("default Email.Host = %q, want %q", cfg.Email.Host, "smtp.gmail.com")
	}
	if cfg.Email.Port != 587 {
		t.Errorf("default Email.Port = %d, want 587", cfg.Email.Port)
	}
	if cfg.Completion.Timeout != 60*time.Second {
		t.Errorf("default Completion.Timeout = %v, want 60s", cfg.Completion.Timeout)
	}
	if cfg.Billing.Timeout != 20*time.Second {
		t.Errorf("default Billing.Timeout = %v, want 20s", cfg.Billing.Timeout)
	}
	if cfg.Email.Timeout != 10*time.Second {
		t.Errorf("default Email.Timeout = %v, want 10s", cfg.Email.Timeout)
	}
	if len(cfg.Security.CorsAllowedOrigins) != 1 || cfg.Security.CorsAllowedOrigins[0] != "*" {
		t.Errorf("default CorsAllowedOrigins = %v, want [*]", cfg.Security.CorsAllowedOrigins)
	}
}

// TestLoadConfigInvalidEnvironment verifies validation failure on a bad APP_ENV.
func TestLoadConfigInvalidEnvironment(t *testing.T) {
	setFullTestEnv(t)
	t.Setenv("APP_ENV", "production-ish")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("LoadConfig should fail for invalid APP_ENV")
	}

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error should be *ConfigError, got %T", err)
	}
	if cfgErr.Type != ErrValidation {
		t.Errorf("ConfigError.Type = %q, want %q", cfgErr.Type, ErrValidation)
	}
}

// TestLoadConfigInvalidProvider verifies validation failure on an unknown
// completion provider.
func TestLoadConfigInvalidProvider(t *testing.T) {
	setFullTestEnv(t)
	t.Setenv("COMPLETION_PROVIDER", "watson")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("LoadConfig should fail for unknown COMPLETION_PROVIDER")
	}
}

// TestLoadConfigParseFailure verifies a type mismatch surfaces as ErrParsing.
func TestLoadConfigParseFailure(t *testing.T) {
	setFullTestEnv(t)
	t.Setenv("SMTP_PORT", "not-a-number")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("LoadConfig should fail for non-numeric SMTP_PORT")
	}

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error should be *ConfigError, got %T", err)
	}
	if cfgErr.Type != ErrParsing {
		t.Errorf("ConfigError.Type = %q, want %q", cfgErr.Type, ErrParsing)
	}
}

// TestLoadConfigQuotaBounds verifies the minimum bounds on quota settings.
func TestLoadConfigQuotaBounds(t *testing.T) {
	setFullTestEnv(t)
	t.Setenv("QUOTA_FREE_DAILY_LIMIT", "0")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("LoadConfig should reject a zero free daily limit")
	}
}

// TestConfigErrorFormat verifies ConfigError's message formats.
func TestConfigErrorFormat(t *testing.T) {
	withErr := &ConfigError{Type: ErrParsing, Message: "bad value", Err: errors.New("strconv")}
	if !strings.Contains(withErr.Error(), "PARSING_FAILED") || !strings.Contains(withErr.Error(), "strconv") {
		t.Errorf("Error() = %q, missing type or cause", withErr.Error())
	}

	withoutErr := &ConfigError{Type: ErrValidation, Message: "bad struct"}
	if withoutErr.Error() != "[VALIDATION_FAILED] bad struct" {
		t.Errorf("Error() = %q, unexpected format", withoutErr.Error())
	}
}
