// Package resolve assembles the full LLM provider stack from configuration:
// the OpenAI-compatible streaming client wrapped with retry and, when
// limits are configured, proactive rate limiting.
package resolve

import (
	"fmt"
	"log/slog"
	"time"

	minusx "github.com/minusxai/minusx"
	"github.com/minusxai/minusx/provider/openaicompat"
)

// Config holds everything needed to build the provider stack.
type Config struct {
	APIKey  string
	Model   string // default model when request settings name none
	BaseURL string // API base or LiteLLM proxy address; auto-filled for known names
	Name    string // provider name for logs ("litellm", "openai", ...); default "openaicompat"

	// Base output token budget. Model families scale it; zero keeps the
	// client default.
	MaxTokens int

	// Retry policy for transient upstream errors. Zero values keep the
	// middleware defaults (3 attempts, 1s base delay, no overall timeout).
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryTimeout     time.Duration

	// Proactive rate limits. Zero disables the corresponding window; when
	// both are zero the rate limit wrapper is skipped entirely.
	RPM int
	TPM int

	Logger *slog.Logger
}

// Provider builds the configured stack: openaicompat at the bottom, retry
// above it, rate limiting on top so waits count against the caller, not
// the retry timer.
func Provider(cfg Config) (minusx.Provider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL(cfg.Name)
	}
	if baseURL == "" {
		return nil, fmt.Errorf("resolve: base URL required for provider %q", cfg.Name)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("resolve: default model required")
	}

	var clientOpts []openaicompat.ProviderOption
	if cfg.Name != "" {
		clientOpts = append(clientOpts, openaicompat.WithName(cfg.Name))
	}
	if cfg.MaxTokens > 0 {
		clientOpts = append(clientOpts, openaicompat.WithMaxTokens(cfg.MaxTokens))
	}
	if cfg.Logger != nil {
		clientOpts = append(clientOpts, openaicompat.WithLogger(cfg.Logger))
	}

	var p minusx.Provider = openaicompat.NewProvider(cfg.APIKey, cfg.Model, baseURL, clientOpts...)

	var retryOpts []minusx.RetryOption
	if cfg.RetryMaxAttempts > 0 {
		retryOpts = append(retryOpts, minusx.RetryMaxAttempts(cfg.RetryMaxAttempts))
	}
	if cfg.RetryBaseDelay > 0 {
		retryOpts = append(retryOpts, minusx.RetryBaseDelay(cfg.RetryBaseDelay))
	}
	if cfg.RetryTimeout > 0 {
		retryOpts = append(retryOpts, minusx.RetryTimeout(cfg.RetryTimeout))
	}
	if cfg.Logger != nil {
		retryOpts = append(retryOpts, minusx.RetryLogger(cfg.Logger))
	}
	p = minusx.WithRetry(p, retryOpts...)

	if cfg.RPM > 0 || cfg.TPM > 0 {
		var limitOpts []minusx.RateLimitOption
		if cfg.RPM > 0 {
			limitOpts = append(limitOpts, minusx.RPM(cfg.RPM))
		}
		if cfg.TPM > 0 {
			limitOpts = append(limitOpts, minusx.TPM(cfg.TPM))
		}
		p = minusx.WithRateLimit(p, limitOpts...)
	}

	return p, nil
}

// defaultBaseURL maps well-known provider names to their API bases.
// LiteLLM deployments have no fixed address and must configure BaseURL.
func defaultBaseURL(name string) string {
	switch name {
	case "openai":
		return "https://api.openai.com/v1"
	case "groq":
		return "https://api.groq.com/openai/v1"
	case "deepseek":
		return "https://api.deepseek.com/v1"
	case "together":
		return "https://api.together.xyz/v1"
	case "mistral":
		return "https://api.mistral.ai/v1"
	case "ollama":
		return "http://localhost:11434/v1"
	default:
		return ""
	}
}
