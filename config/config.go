package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIBaseURL = "http://localhost:8000/api"
	DefaultWSURL      = "ws://localhost:8000/ws/backtest/"
)

type Config struct {
	DataDir   string `json:"data_dir"`
	ExportDir string `json:"export_dir"`
	DBPath    string `json:"db_path"`

	APIBaseURL         string `json:"api_base_url"`
	WSURL              string `json:"ws_url"`
	HTTPTimeoutSeconds int    `json:"http_timeout_seconds"`

	LogLevel  string `json:"log_level"`
	Debug     bool   `json:"debug"`
	DebugAddr string `json:"debug_addr"`

	// Symbol cache; empty RedisAddr disables it
	RedisAddr             string `json:"redis_addr"`
	RedisPassword         string `json:"redis_password"`
	SymbolCacheTTLMinutes int    `json:"symbol_cache_ttl_minutes"`

	// Code generation
	AutoFix        bool `json:"auto_fix"`
	MaxFixAttempts int  `json:"max_fix_attempts"`

	// Backtest defaults used when flags are omitted
	DefaultBalance    float64 `json:"default_balance"`
	DefaultCommission float64 `json:"default_commission"`
	DefaultSlippage   float64 `json:"default_slippage"`
}

func DefaultConfig() *Config {
	root, err := os.UserConfigDir()
	if err != nil {
		root, _ = os.Getwd()
	} else {
		root = filepath.Join(root, "QuantDesk")
	}

	cfg := DefaultConfigWithRoot(root)
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv loads .env from the working directory, then overrides fields
// from QUANTDESK_* environment variables.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()
	c.loadFromEnv()
}

// DefaultConfigWithRoot returns the built-in defaults with all local state under root.
func DefaultConfigWithRoot(root string) *Config {
	dataDir := filepath.Join(root, "data")
	return &Config{
		DataDir:   dataDir,
		ExportDir: filepath.Join(root, "exports"),
		DBPath:    filepath.Join(dataDir, "history.db"),

		APIBaseURL:         DefaultAPIBaseURL,
		WSURL:              DefaultWSURL,
		HTTPTimeoutSeconds: 30,

		LogLevel: "info",

		SymbolCacheTTLMinutes: 60,

		AutoFix:        true,
		MaxFixAttempts: 3,

		DefaultBalance:    10000,
		DefaultCommission: 0.001,
		DefaultSlippage:   0.0005,
	}
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("QUANTDESK_DATA_DIR"); val != "" {
		c.DataDir = val
		c.DBPath = filepath.Join(val, "history.db")
	}
	if val := os.Getenv("QUANTDESK_EXPORT_DIR"); val != "" {
		c.ExportDir = val
	}
	if val := os.Getenv("QUANTDESK_DB_PATH"); val != "" {
		c.DBPath = val
	}

	if val := os.Getenv("QUANTDESK_API_URL"); val != "" {
		c.APIBaseURL = val
	}
	if val := os.Getenv("QUANTDESK_WS_URL"); val != "" {
		c.WSURL = val
	}
	if val := os.Getenv("QUANTDESK_HTTP_TIMEOUT"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.HTTPTimeoutSeconds = v
		}
	}

	if val := os.Getenv("QUANTDESK_LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("QUANTDESK_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}
	if val := os.Getenv("QUANTDESK_DEBUG_ADDR"); val != "" {
		c.DebugAddr = val
	}

	if val := os.Getenv("QUANTDESK_REDIS_ADDR"); val != "" {
		c.RedisAddr = val
	}
	if val := os.Getenv("QUANTDESK_REDIS_PASSWORD"); val != "" {
		c.RedisPassword = val
	}
	if val := os.Getenv("QUANTDESK_SYMBOL_CACHE_TTL"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.SymbolCacheTTLMinutes = v
		}
	}

	if val := os.Getenv("QUANTDESK_AUTO_FIX"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.AutoFix = enabled
		}
	}
	if val := os.Getenv("QUANTDESK_MAX_FIX_ATTEMPTS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxFixAttempts = v
		}
	}
}

// Validate checks the values a client cannot run without.
func (c Config) Validate() error {
	if err := checkURL(c.APIBaseURL, "http", "https"); err != nil {
		return fmt.Errorf("api_base_url: %w", err)
	}
	if err := checkURL(c.WSURL, "ws", "wss"); err != nil {
		return fmt.Errorf("ws_url: %w", err)
	}
	if c.HTTPTimeoutSeconds < 0 {
		return fmt.Errorf("http_timeout_seconds must not be negative")
	}
	if c.MaxFixAttempts < 1 || c.MaxFixAttempts > 10 {
		return fmt.Errorf("max_fix_attempts must be between 1 and 10")
	}
	if c.SymbolCacheTTLMinutes < 0 {
		return fmt.Errorf("symbol_cache_ttl_minutes must not be negative")
	}
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

func checkURL(raw string, schemes ...string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%q must use %s", raw, strings.Join(schemes, " or "))
}

// HTTPTimeout is the per-request timeout for REST calls. Zero disables it.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// SymbolCacheTTL is how long a symbol listing stays cached in Redis.
func (c Config) SymbolCacheTTL() time.Duration {
	return time.Duration(c.SymbolCacheTTLMinutes) * time.Minute
}

// TokenPath is where bearer tokens are persisted between runs.
func (c Config) TokenPath() string {
	return filepath.Join(c.DataDir, "tokens.json")
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir, c.ExportDir, filepath.Dir(c.DBPath)}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}

func loadConfigFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
