package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "api:\n  base_url: http://localhost:8080\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.APITimeout())
	assert.Equal(t, 5.0, cfg.API.RatePerSecond)
	assert.Equal(t, 10, cfg.API.Burst)
	assert.Equal(t, 2, cfg.API.MaxRetries)
	assert.Equal(t, time.Duration(0), cfg.CacheTTL())
	assert.Equal(t, 20, cfg.Feed.PageSize)
	assert.Equal(t, 300*time.Millisecond, cfg.DebounceWindow())
	assert.Equal(t, 9090, cfg.Monitoring.PrometheusPort)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("TABLEBOOK_TEST_KEY", "s3cret")
	path := writeConfig(t, `
api:
  base_url: https://api.example.com
  api_key: ${TABLEBOOK_TEST_KEY}
  cache_ttl_seconds: 30
  max_retries: -1
feed:
  page_size: 50
  debounce_ms: 150
  timezone: Europe/Moscow
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.API.APIKey)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL())
	assert.Equal(t, 0, cfg.API.MaxRetries)
	assert.Equal(t, 50, cfg.Feed.PageSize)
	assert.Equal(t, 150*time.Millisecond, cfg.DebounceWindow())
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Moscow", loc.String())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing base url", "feed:\n  page_size: 10\n"},
		{"bad timezone", "api:\n  base_url: http://x\nfeed:\n  timezone: Mars/Olympus\n"},
		{"bad level", "api:\n  base_url: http://x\nlog:\n  level: loud\n"},
		{"not yaml", "api: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
