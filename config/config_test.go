package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigWithRoot(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfigWithRoot(root)

	if cfg.APIBaseURL != DefaultAPIBaseURL || cfg.WSURL != DefaultWSURL {
		t.Fatalf("unexpected endpoint defaults: %s %s", cfg.APIBaseURL, cfg.WSURL)
	}
	if cfg.MaxFixAttempts != 3 {
		t.Fatalf("expected 3 fix attempts by default, got %d", cfg.MaxFixAttempts)
	}
	if cfg.DBPath != filepath.Join(root, "data", "history.db") {
		t.Fatalf("unexpected db path %s", cfg.DBPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("QUANTDESK_API_URL", "https://api.example.com")
	t.Setenv("QUANTDESK_WS_URL", "wss://api.example.com/ws/backtest/")
	t.Setenv("QUANTDESK_MAX_FIX_ATTEMPTS", "5")
	t.Setenv("QUANTDESK_AUTO_FIX", "false")
	t.Setenv("QUANTDESK_HTTP_TIMEOUT", "not-a-number")

	cfg := DefaultConfigWithRoot(t.TempDir())
	cfg.loadFromEnv()

	if cfg.APIBaseURL != "https://api.example.com" {
		t.Fatalf("api url not overridden: %s", cfg.APIBaseURL)
	}
	if cfg.WSURL != "wss://api.example.com/ws/backtest/" {
		t.Fatalf("ws url not overridden: %s", cfg.WSURL)
	}
	if cfg.MaxFixAttempts != 5 || cfg.AutoFix {
		t.Fatalf("codegen settings not overridden: %d %t", cfg.MaxFixAttempts, cfg.AutoFix)
	}
	if cfg.HTTPTimeout() != 30*time.Second {
		t.Fatalf("invalid env value must keep default, got %v", cfg.HTTPTimeout())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"missing api url", func(c *Config) { c.APIBaseURL = "" }, true},
		{"ws scheme on api url", func(c *Config) { c.APIBaseURL = "ws://host" }, true},
		{"https ws url", func(c *Config) { c.WSURL = "https://host/ws" }, true},
		{"wss ws url", func(c *Config) { c.WSURL = "wss://host/ws" }, false},
		{"zero fix attempts", func(c *Config) { c.MaxFixAttempts = 0 }, true},
		{"too many fix attempts", func(c *Config) { c.MaxFixAttempts = 11 }, true},
		{"negative timeout", func(c *Config) { c.HTTPTimeoutSeconds = -1 }, true},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfigWithRoot(t.TempDir())
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfigWithRoot(t.TempDir())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
}
