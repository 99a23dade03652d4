// Package config defines the global configuration structure for the service.
// Configuration is loaded once at process initialization and is immutable
// thereafter. It follows 12-Factor App principles by strictly separating
// code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> Struct Defaults (Lowest)
//
// Any invalid format causes startup to fail immediately. Missing upstream
// credentials (completion, billing, SMTP) are deliberately NOT fatal: the
// server boots with the affected integration degraded and logs a warning,
// so local development works without a full set of keys.
package config

import (
	"time"

	"tutorgate/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"tutorgate-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server     ServerConfig
	Completion CompletionConfig
	Billing    BillingConfig
	Email      EmailConfig
	Quota      QuotaConfig
	Security   SecurityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// FrontendURL is the public URL of the client app, used for checkout
	// redirects (no trailing slash).
	FrontendURL string `envconfig:"FRONTEND_URL" default:"http://localhost:8000" validate:"required,url"`
}

// CompletionConfig holds the conversational completion provider settings.
// Provider selects which upstream client is constructed at startup.
type CompletionConfig struct {
	Provider        string        `envconfig:"COMPLETION_PROVIDER" default:"anthropic" validate:"oneof=anthropic openai"`
	Model           string        `envconfig:"COMPLETION_MODEL" default:"claude-sonnet-4-5-20250929"`
	AnthropicAPIKey SecretString  `envconfig:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    SecretString  `envconfig:"OPENAI_API_KEY"`
	MaxTokens       int           `envconfig:"COMPLETION_MAX_TOKENS" default:"1024"`
	Timeout         time.Duration `envconfig:"COMPLETION_TIMEOUT" default:"60s"`
}

// BillingConfig holds Stripe payment integration credentials and price IDs.
type BillingConfig struct {
	StripeSecretKey   SecretString  `envconfig:"STRIPE_SECRET_KEY"`
	PricePremium      string        `envconfig:"STRIPE_PRICE_PREMIUM"`
	PricePremiumVoice string        `envconfig:"STRIPE_PRICE_PREMIUM_VOICE"`
	Timeout           time.Duration `envconfig:"BILLING_TIMEOUT" default:"20s"`
}

// EmailConfig holds SMTP delivery settings for verification codes.
// When Enabled is false, codes are logged instead of sent, which is the
// intended mode for local development.
type EmailConfig struct {
	Enabled     bool          `envconfig:"SMTP_ENABLED" default:"false"`
	Host        string        `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	Port        int           `envconfig:"SMTP_PORT" default:"587"`
	Username    string        `envconfig:"SMTP_USERNAME"`
	Password    SecretString  `envconfig:"SMTP_PASSWORD"`
	FromAddress string        `envconfig:"SMTP_FROM_EMAIL"`
	Timeout     time.Duration `envconfig:"SMTP_TIMEOUT" default:"10s"`
}

// QuotaConfig holds free-tier usage limits and verification code lifetime.
type QuotaConfig struct {
	FreeDailyLimit int           `envconfig:"QUOTA_FREE_DAILY_LIMIT" default:"10" validate:"min=1"`
	CodeTTL        time.Duration `envconfig:"VERIFICATION_CODE_TTL" default:"10m" validate:"min=1m"`
}

// SecurityConfig holds CORS settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)

// MissingIntegrations reports which upstream integrations lack credentials.
// The caller logs one warning per entry at startup; the server still boots.
func (c *Config) MissingIntegrations() []string {
	var missing []string
	switch c.Completion.Provider {
	case "openai":
		if !c.Completion.OpenAIAPIKey.IsSet() {
			missing = append(missing, "OPENAI_API_KEY")
		}
	default:
		if !c.Completion.AnthropicAPIKey.IsSet() {
			missing = append(missing, "ANTHROPIC_API_KEY")
		}
	}
	if !c.Billing.StripeSecretKey.IsSet() {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.Email.Enabled && (c.Email.Username == "" || !c.Email.Password.IsSet()) {
		missing = append(missing, "SMTP_USERNAME/SMTP_PASSWORD")
	}
	return missing
}
