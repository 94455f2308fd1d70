// Package config loads and validates the gateway's YAML configuration.
//
// The config is parsed once in main and injected into each component.
// There is deliberately no cached global: every consumer receives an
// explicit *Config.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root gateway configuration.
type Config struct {
	// ListenPort is the port the gateway HTTP server binds.
	ListenPort int `yaml:"listen_port"`

	// MetricsPort is the port the Prometheus /metrics server binds.
	MetricsPort int `yaml:"metrics_port"`

	Upstream  UpstreamConfig  `yaml:"upstream"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Mail      MailConfig      `yaml:"mail"`
}

// UpstreamConfig describes the single fixed upstream API.
type UpstreamConfig struct {
	Host   string `yaml:"host"`
	Scheme string `yaml:"scheme"`

	// TimeoutSeconds bounds the whole upstream exchange, including the
	// streamed body. 0 disables the timeout (matches the legacy behavior,
	// not recommended for production).
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// AccessKey is an optional static upstream credential. The ANTHROPIC_KEY
	// environment variable takes precedence via the credential resolver.
	AccessKey string `yaml:"access_key"`
}

// Timeout returns the upstream timeout as a duration, 0 meaning unbounded.
func (u UpstreamConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutSeconds) * time.Second
}

// AuthConfig controls login codes and bearer tokens.
type AuthConfig struct {
	// CodeTTLMinutes is how long an issued login code stays valid.
	CodeTTLMinutes int `yaml:"code_ttl_minutes"`

	// TokenTTLMinutes is the bearer token lifetime.
	TokenTTLMinutes int `yaml:"token_ttl_minutes"`
}

// CodeTTL returns the login code lifetime.
func (a AuthConfig) CodeTTL() time.Duration {
	return time.Duration(a.CodeTTLMinutes) * time.Minute
}

// TokenTTL returns the bearer token lifetime.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLMinutes) * time.Minute
}

// RateLimitConfig controls the per-identity sliding window.
type RateLimitConfig struct {
	MaxRequests int `yaml:"max_requests"`
	WindowDays  int `yaml:"window_days"`
}

// Window returns the trailing window duration.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowDays) * 24 * time.Hour
}

// LedgerConfig locates the persistent request ledger.
type LedgerConfig struct {
	// Path is the SQLite database file. ":memory:" keeps the ledger in-process.
	Path string `yaml:"path"`
}

// MailConfig controls login-code delivery.
type MailConfig struct {
	From    string `yaml:"from"`
	Subject string `yaml:"subject"`
}

// Parse reads and validates the YAML config at path, applying defaults for
// any omitted field.
func Parse(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config populated with the gateway's stock settings.
func Default() *Config {
	return &Config{
		ListenPort:  3004,
		MetricsPort: 9190,
		Upstream: UpstreamConfig{
			Host:           "api.anthropic.com",
			Scheme:         "https",
			TimeoutSeconds: 300,
		},
		Auth: AuthConfig{
			CodeTTLMinutes:  15,
			TokenTTLMinutes: 60,
		},
		RateLimit: RateLimitConfig{
			MaxRequests: 15,
			WindowDays:  7,
		},
		Ledger: LedgerConfig{
			Path: "gateway.db",
		},
		Mail: MailConfig{
			From:    "codes@lexer.cc",
			Subject: "Lexer Auth Code",
		},
	}
}

// Validate rejects configs that cannot serve traffic.
func (c *Config) Validate() error {
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("listen_port %d out of range", c.ListenPort)
	}
	if c.Upstream.Host == "" {
		return fmt.Errorf("upstream.host is required")
	}
	if c.Upstream.Scheme != "http" && c.Upstream.Scheme != "https" {
		return fmt.Errorf("upstream.scheme must be http or https, got %q", c.Upstream.Scheme)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be >= 0")
	}
	if c.Auth.CodeTTLMinutes <= 0 {
		return fmt.Errorf("auth.code_ttl_minutes must be positive")
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	if c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("rate_limit.max_requests must be positive")
	}
	if c.RateLimit.WindowDays <= 0 {
		return fmt.Errorf("rate_limit.window_days must be positive")
	}
	if c.Ledger.Path == "" {
		return fmt.Errorf("ledger.path is required")
	}
	return nil
}
