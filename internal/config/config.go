package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server       ServerConfig       `toml:"server"`
	LLM          LLMConfig          `toml:"llm"`
	Data         DataConfig         `toml:"data"`
	ControlPlane ControlPlaneConfig `toml:"control_plane"`
	Observer     ObserverConfig     `toml:"observer"`
}

type ServerConfig struct {
	Addr       string `toml:"addr"`
	Production bool   `toml:"production"`
	LogLevel   string `toml:"log_level"`
}

type LLMConfig struct {
	Provider       string `toml:"provider"`
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	SummarizeModel string `toml:"summarize_model"`
	MaxTokens      int    `toml:"max_tokens"`
	MaxSteps       int    `toml:"max_steps"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Retries        int    `toml:"retries"`
	RPM            int    `toml:"rpm"`
	TPM            int    `toml:"tpm"`
}

type DataConfig struct {
	Dir string `toml:"dir"`
}

type ControlPlaneConfig struct {
	BaseURL string `toml:"base_url"`
}

type ObserverConfig struct {
	Enabled bool                       `toml:"enabled"`
	Pricing map[string]ObserverPricing `toml:"pricing"`
}

type ObserverPricing struct {
	Input  float64 `toml:"input"`
	Output float64 `toml:"output"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8000", LogLevel: "info"},
		LLM: LLMConfig{
			Provider:       "litellm",
			BaseURL:        "http://localhost:4000",
			Model:          "claude-sonnet-4-6",
			SummarizeModel: "gpt-5-mini-2025-08-07",
			MaxTokens:      4000,
			MaxSteps:       35,
			TimeoutSeconds: 120,
			Retries:        3,
		},
		Data:         DataConfig{Dir: "data"},
		ControlPlane: ControlPlaneConfig{BaseURL: "http://localhost:3000"},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "minusx.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("MINUSX_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("MINUSX_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("MINUSX_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("MINUSX_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("MINUSX_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("MINUSX_CONTROL_PLANE_URL"); v != "" {
		cfg.ControlPlane.BaseURL = v
	}
	if v := os.Getenv("MINUSX_ENV"); v == "production" {
		cfg.Server.Production = true
	}
	if v := os.Getenv("MINUSX_OBSERVER_ENABLED"); v == "true" || v == "1" {
		cfg.Observer.Enabled = true
	}

	// Fallbacks
	if cfg.LLM.SummarizeModel == "" {
		cfg.LLM.SummarizeModel = cfg.LLM.Model
	}

	return cfg
}
