package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse(writeConfig(t, "listen_port: 8080\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.ListenPort)
	assert.Equal(t, "api.anthropic.com", cfg.Upstream.Host)
	assert.Equal(t, "https", cfg.Upstream.Scheme)
	assert.Equal(t, 15, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 7*24*time.Hour, cfg.RateLimit.Window())
	assert.Equal(t, 15*time.Minute, cfg.Auth.CodeTTL())
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL())
	assert.Equal(t, "codes@lexer.cc", cfg.Mail.From)
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse(writeConfig(t, `
upstream:
  host: upstream.test
  scheme: http
  timeout_seconds: 0
rate_limit:
  max_requests: 3
  window_days: 1
`))
	require.NoError(t, err)

	assert.Equal(t, "upstream.test", cfg.Upstream.Host)
	assert.Equal(t, time.Duration(0), cfg.Upstream.Timeout(), "0 disables the upstream timeout")
	assert.Equal(t, 3, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 24*time.Hour, cfg.RateLimit.Window())
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad scheme", "upstream:\n  scheme: ftp\n"},
		{"empty host", "upstream:\n  host: \"\"\n"},
		{"zero max requests", "rate_limit:\n  max_requests: 0\n"},
		{"negative timeout", "upstream:\n  timeout_seconds: -1\n"},
		{"bad port", "listen_port: 99999\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(writeConfig(t, tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseMissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
