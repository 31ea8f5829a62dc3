package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.LLM.Model != "claude-sonnet-4-6" {
		t.Errorf("expected claude-sonnet-4-6, got %s", cfg.LLM.Model)
	}
	if cfg.LLM.MaxTokens != 4000 {
		t.Errorf("expected 4000, got %d", cfg.LLM.MaxTokens)
	}
	if cfg.LLM.MaxSteps != 35 {
		t.Errorf("expected 35, got %d", cfg.LLM.MaxSteps)
	}
	if cfg.Server.Addr != ":8000" {
		t.Errorf("expected :8000, got %s", cfg.Server.Addr)
	}
	if cfg.ControlPlane.BaseURL != "http://localhost:3000" {
		t.Errorf("expected localhost control plane, got %s", cfg.ControlPlane.BaseURL)
	}
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.toml")
	os.WriteFile(path, []byte(`
[server]
addr = ":9090"
production = true

[llm]
api_key = "sk-test"
max_steps = 20

[observer]
enabled = true

[observer.pricing."claude-sonnet-4-6"]
input = 3.0
output = 15.0
`), 0644)

	cfg := Load(path)
	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.Server.Addr)
	}
	if !cfg.Server.Production {
		t.Error("expected production=true")
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("expected sk-test, got %s", cfg.LLM.APIKey)
	}
	if cfg.LLM.MaxSteps != 20 {
		t.Errorf("expected 20, got %d", cfg.LLM.MaxSteps)
	}
	// Defaults preserved
	if cfg.LLM.Model != "claude-sonnet-4-6" {
		t.Errorf("default should be preserved, got %s", cfg.LLM.Model)
	}
	if p, ok := cfg.Observer.Pricing["claude-sonnet-4-6"]; !ok || p.Input != 3.0 || p.Output != 15.0 {
		t.Errorf("pricing = %+v", cfg.Observer.Pricing)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("MINUSX_LLM_API_KEY", "env-key")
	t.Setenv("MINUSX_LLM_BASE_URL", "http://litellm:4000")
	t.Setenv("MINUSX_ENV", "production")

	cfg := Load("/nonexistent/path.toml")
	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("expected env-key, got %s", cfg.LLM.APIKey)
	}
	if cfg.LLM.BaseURL != "http://litellm:4000" {
		t.Errorf("expected env base url, got %s", cfg.LLM.BaseURL)
	}
	if !cfg.Server.Production {
		t.Error("expected production from MINUSX_ENV")
	}
}

func TestSummarizeModelFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.toml")
	os.WriteFile(path, []byte(`
[llm]
model = "gpt-4o"
summarize_model = ""
`), 0644)

	cfg := Load(path)
	if cfg.LLM.SummarizeModel != "gpt-4o" {
		t.Errorf("expected fallback to model, got %s", cfg.LLM.SummarizeModel)
	}
}
