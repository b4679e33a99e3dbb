package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		geminiAPIKeyEnv, geminiModelEnv, pexelsAPIKeyEnv, elevenLabsAPIKeyEnv,
		shotstackAPIKeyEnv, shotstackStageEnv, logLevelEnv, httpAddrEnv, publicBaseURLEnv,
	} {
		t.Setenv(key, "")
	}
	for _, key := range []string{devModeEnv, allowPlaceholderEnv, fastModeEnv} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.True(t, cfg.AllowPlaceholder)
	assert.Equal(t, 10*time.Second, cfg.Render.PollInterval)
	assert.Equal(t, 1, cfg.Media.Concurrency)
	// no media keys -> dev mode
	assert.True(t, cfg.DevMode)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv(pexelsAPIKeyEnv, "live-pexels")
	t.Setenv(elevenLabsAPIKeyEnv, "live-eleven")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
fast: true
render:
  poll_interval: 2s
  fast_poll_interval: 1s
  max_polls: 5
media:
  concurrency: 3
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.DevMode)
	assert.True(t, cfg.Fast)
	assert.Equal(t, 5, cfg.Render.MaxPolls)
	assert.Equal(t, 3, cfg.Media.Concurrency)
	assert.Equal(t, time.Second, cfg.PollInterval())
	// untouched sections keep defaults
	assert.Equal(t, "21m00Tcm4TlvDq8ikWAM", cfg.Media.VoiceID)
}

func TestLoad_DevModeResolution(t *testing.T) {
	tests := []struct {
		name    string
		pexels  string
		eleven  string
		devEnv  string
		wantDev bool
	}{
		{name: "live keys", pexels: "p", eleven: "e", wantDev: false},
		{name: "dev prefixed key", pexels: "dev_p", eleven: "e", wantDev: true},
		{name: "missing key", pexels: "p", eleven: "", wantDev: true},
		{name: "explicit flag", pexels: "p", eleven: "e", devEnv: "yes", wantDev: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(pexelsAPIKeyEnv, tt.pexels)
			t.Setenv(elevenLabsAPIKeyEnv, tt.eleven)
			if tt.devEnv != "" {
				t.Setenv(devModeEnv, tt.devEnv)
			}

			cfg, err := Load("")
			require.NoError(t, err)
			assert.Equal(t, tt.wantDev, cfg.DevMode)
		})
	}
}

func TestLoad_PlaceholderEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv(allowPlaceholderEnv, "0")
	t.Setenv(publicBaseURLEnv, "https://example.test/")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.AllowPlaceholder)
	assert.Equal(t, "https://example.test", cfg.Render.PublicBaseURL)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Render.MaxPolls = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Media.Concurrency = -1
	assert.Error(t, cfg.Validate())
}
