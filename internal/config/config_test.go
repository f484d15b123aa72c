package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"versescope/internal/config"
)

func isolate(t *testing.T) string {
	t.Helper()
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("VERSESCOPE_LLM_API_KEY", "")
	t.Setenv("VERSESCOPE_LLM_MODEL", "")
	t.Setenv("VERSESCOPE_API_TOKEN", "")
	os.Unsetenv("OPENROUTER_API_KEY")
	os.Unsetenv("VERSESCOPE_LLM_API_KEY")
	os.Unsetenv("VERSESCOPE_LLM_MODEL")
	os.Unsetenv("VERSESCOPE_API_TOKEN")
	t.Chdir(t.TempDir())
	return tempHome
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := isolate(t)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "state", "versescope")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.LockPath() != filepath.Join(wantState, "versescope.lock") {
		t.Fatalf("unexpected lock path: %q", cfg.LockPath())
	}
	if cfg.Server.Bind != "127.0.0.1:7490" {
		t.Fatalf("unexpected bind: %q", cfg.Server.Bind)
	}
	if cfg.Bible.BaseURL != "https://bible-api.com" {
		t.Fatalf("unexpected bible base url: %q", cfg.Bible.BaseURL)
	}
	if cfg.LLM.APIKey != "" {
		t.Fatalf("expected empty api key, got %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.RetryAttempts != 3 || cfg.RetryDelay().Milliseconds() != 1000 {
		t.Fatalf("unexpected retry defaults: attempts=%d delay=%s", cfg.LLM.RetryAttempts, cfg.RetryDelay())
	}
	if cfg.Analysis.Detail != "brief" || cfg.Analysis.Extractor != "lenient" {
		t.Fatalf("unexpected analysis defaults: %+v", cfg.Analysis)
	}
	if cfg.LogFilePath() != "" {
		t.Fatalf("expected no log file by default, got %q", cfg.LogFilePath())
	}
}

func TestLoadUsesEnvAPIKey(t *testing.T) {
	isolate(t)
	t.Setenv("OPENROUTER_API_KEY", "router-key")
	t.Setenv("VERSESCOPE_LLM_MODEL", "demo/model")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.GetLLM().APIKey != "router-key" {
		t.Fatalf("expected key from env, got %q", cfg.GetLLM().APIKey)
	}
	if cfg.GetLLM().Model != "demo/model" {
		t.Fatalf("expected model from env, got %q", cfg.GetLLM().Model)
	}
}

func TestLoadReadsDotEnvWithoutOverriding(t *testing.T) {
	isolate(t)
	dir, _ := os.Getwd()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("VERSESCOPE_LLM_API_KEY=from-dotenv\nVERSESCOPE_API_TOKEN=tok\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("VERSESCOPE_LLM_API_KEY")
		os.Unsetenv("VERSESCOPE_API_TOKEN")
	})

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "from-dotenv" {
		t.Fatalf("expected key from .env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Server.APIToken != "tok" {
		t.Fatalf("expected api token from .env, got %q", cfg.Server.APIToken)
	}
}

func TestLoadMissingExplicitEnvFileFails(t *testing.T) {
	isolate(t)
	dir, _ := os.Getwd()
	configPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[paths]\nenv_file = \"missing.env\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil || !strings.Contains(err.Error(), "env file") {
		t.Fatalf("expected env file error, got %v", err)
	}
}

func TestLoadCustomConfig(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	cfg := config.Default()
	cfg.LLM.APIKey = " key "
	cfg.LLM.RetryAttempts = 5
	cfg.LLM.RetryDelayMS = 250
	cfg.Bible.BaseURL = "http://localhost:9000/"
	cfg.Bible.Translation = " KJV "
	cfg.Analysis.Detail = "Full"
	cfg.Server.AllowedOrigins = []string{" http://localhost:5173/ ", ""}
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loaded, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %s, got %s exists=%v", configPath, resolved, exists)
	}
	if loaded.LLM.APIKey != "key" {
		t.Fatalf("expected trimmed key, got %q", loaded.LLM.APIKey)
	}
	if loaded.LLM.RetryAttempts != 5 || loaded.RetryDelay().Milliseconds() != 250 {
		t.Fatalf("unexpected retry settings: %+v", loaded.LLM)
	}
	if loaded.Bible.BaseURL != "http://localhost:9000" || loaded.Bible.Translation != "kjv" {
		t.Fatalf("unexpected bible settings: %+v", loaded.Bible)
	}
	if loaded.Analysis.Detail != "comprehensive" {
		t.Fatalf("expected detail alias to normalize, got %q", loaded.Analysis.Detail)
	}
	if len(loaded.Server.AllowedOrigins) != 1 || loaded.Server.AllowedOrigins[0] != "http://localhost:5173" {
		t.Fatalf("unexpected origins: %v", loaded.Server.AllowedOrigins)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"retry attempts", func(c *config.Config) { c.LLM.RetryAttempts = 0 }, "llm.retry_attempts"},
		{"retry delay", func(c *config.Config) { c.LLM.RetryDelayMS = -1 }, "llm.retry_delay_ms"},
		{"llm timeout", func(c *config.Config) { c.LLM.TimeoutSeconds = -5 }, "llm.timeout_seconds"},
		{"bible url", func(c *config.Config) { c.Bible.BaseURL = "ftp://example" }, "bible.base_url"},
		{"detail", func(c *config.Config) { c.Analysis.Detail = "verbose" }, "analysis.detail"},
		{"extractor", func(c *config.Config) { c.Analysis.Extractor = "regex" }, "analysis.extractor"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateAllowsMissingAPIKey(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate without api key, got %v", err)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	isolate(t)
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(target)
	if err != nil {
		t.Fatalf("Load(sample) returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.LLM.Model == "" {
		t.Fatal("expected sample to define a model")
	}
}
