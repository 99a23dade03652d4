// Package main is the entry point for the tutor gateway API server.
//
// It loads configuration, constructs the external clients (completion
// provider, billing processor, SMTP notifier), wires the domain services
// over the shared in-memory stores, builds the HTTP server with the core
// chassis (middleware, routing, health checks), and starts listening.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tutorgate/internal/api/handlers"
	"tutorgate/internal/billing"
	"tutorgate/internal/chat"
	"tutorgate/internal/config"
	"tutorgate/internal/core"
	"tutorgate/internal/external"
	"tutorgate/internal/quota"
	"tutorgate/internal/verification"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("tutorgate API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	// Missing upstream credentials degrade the affected integration instead
	// of blocking startup; local development runs without a full key set.
	for _, name := range cfg.MissingIntegrations() {
		logger.Warn("integration credential not configured; requests depending on it will fail",
			"credential", name,
		)
	}

	// External clients.
	stripeClient := external.NewStripeClient(
		&http.Client{Timeout: cfg.Billing.Timeout},
		external.StripeClientConfig{
			SecretKey: cfg.Billing.StripeSecretKey.Unmask(),
			Logger:    logger,
		},
	)
	provider := newCompletionProvider(cfg, logger)
	notifier := newNotifier(cfg, logger)

	// Domain services over the shared in-memory stores.
	ledger := quota.NewLedger()
	resolver := quota.NewResolver(stripeClient, ledger, cfg.Quota.FreeDailyLimit, logger)
	verificationStore := verification.NewStore(cfg.Quota.CodeTTL, notifier, logger)
	chatService := chat.NewService(provider, resolver, logger)
	billingService := billing.NewService(stripeClient, cfg.Billing, cfg.Server.FrontendURL, logger)

	// Build the server and mount the domain handlers under /api.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Health probes surface circuit breaker state for the upstreams. The
	// OpenAI provider rides its vendor SDK without a breaker and registers
	// no probe.
	srv.HealthProbes = append(srv.HealthProbes, core.Probe{
		ProbeName: "billing",
		CheckFunc: stripeClient.CheckHealth,
	})
	if hc, ok := provider.(interface{ CheckHealth(ctx context.Context) error }); ok {
		srv.HealthProbes = append(srv.HealthProbes, core.Probe{
			ProbeName: "completion",
			CheckFunc: hc.CheckHealth,
		})
	}

	chatHandler := handlers.NewChatHandler(chatService, srv.Validator, srv.Limit)
	verificationHandler := handlers.NewVerificationHandler(verificationStore, srv.Limit)
	billingHandler := handlers.NewBillingHandler(billingService, resolver, srv.Validator, srv.Limit)

	srv.APIRouteRegistrars = append(srv.APIRouteRegistrars,
		chatHandler.RegisterRoutes,
		verificationHandler.RegisterRoutes,
		billingHandler.RegisterRoutes,
	)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// newCompletionProvider selects the completion client by configuration.
func newCompletionProvider(cfg *config.Config, logger *slog.Logger) chat.CompletionProvider {
	if cfg.Completion.Provider == "openai" {
		return external.NewOpenAIClient(external.OpenAIClientConfig{
			APIKey:    cfg.Completion.OpenAIAPIKey.Unmask(),
			Model:     cfg.Completion.Model,
			MaxTokens: cfg.Completion.MaxTokens,
			Logger:    logger,
		})
	}

	return external.NewAnthropicClient(
		&http.Client{Timeout: cfg.Completion.Timeout},
		external.AnthropicClientConfig{
			APIKey:    cfg.Completion.AnthropicAPIKey.Unmask(),
			Model:     cfg.Completion.Model,
			MaxTokens: cfg.Completion.MaxTokens,
			Logger:    logger,
		},
	)
}

// newNotifier selects the verification-code delivery channel: SMTP when
// enabled, otherwise codes are written to the log.
func newNotifier(cfg *config.Config, logger *slog.Logger) verification.Notifier {
	if !cfg.Email.Enabled {
		logger.Info("SMTP disabled; verification codes will be logged")
		return external.NewLogNotifier(logger)
	}

	return external.NewSMTPNotifier(external.SMTPNotifierConfig{
		Host:        cfg.Email.Host,
		Port:        cfg.Email.Port,
		Username:    cfg.Email.Username,
		Password:    cfg.Email.Password.Unmask(),
		FromAddress: cfg.Email.FromAddress,
		DialTimeout: cfg.Email.Timeout,
		Logger:      logger,
	})
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// WriteTimeout must cover the completion provider's worst case.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Channel to capture server errors from ListenAndServe.
	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with a 10-second deadline.
	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler)
}
