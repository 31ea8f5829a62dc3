package openaicompat

import (
	"log/slog"
	"net/http"
)

// ProviderOption configures a Provider instance.
type ProviderOption func(*Provider)

// WithName sets the provider name returned by Name() (default "openaicompat").
// Use this to distinguish providers in logs and observability.
func WithName(name string) ProviderOption {
	return func(p *Provider) { p.name = name }
}

// WithHTTPClient sets a custom HTTP client (e.g. for timeouts or proxies).
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *Provider) { p.client = c }
}

// WithLogger sets the logger for request-level debug output.
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) { p.logger = logger }
}

// WithMaxTokens sets the base output token budget (default 4000). Model
// families scale it: gpt-5 gets 3x, claude gets 2x.
func WithMaxTokens(n int) ProviderOption {
	return func(p *Provider) { p.maxTokens = n }
}
