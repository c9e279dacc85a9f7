package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_defaults(t *testing.T) {
	cfg, err := Process()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "./stream", cfg.StreamDir)
	assert.Equal(t, 4*time.Second, cfg.WarmupDelay)
	assert.Equal(t, 10*time.Second, cfg.StopTimeout)
	assert.Equal(t, 15*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 10*time.Second, cfg.ProbeInternalTimeout)
	assert.Equal(t, StoreMongo, cfg.OverlayStore)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestProcess_overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("WARMUP_DELAY", "250ms")
	t.Setenv("OVERLAY_STORE", "Memory")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Process()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.WarmupDelay)
	assert.Equal(t, StoreMemory, cfg.OverlayStore)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
}

func TestProcess_rejects_invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown store", "OVERLAY_STORE", "postgres"},
		{"zero warmup", "WARMUP_DELAY", "0s"},
		{"negative rate limit", "CONTROL_RATE_LIMIT", "-1"},
		{"bad duration", "STOP_TIMEOUT", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Process()
			assert.Error(t, err)
		})
	}
}

func TestLoad_missing_file_is_not_an_error(t *testing.T) {
	err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestLoad_sets_environment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("RTSP_OVERLAY_TEST_KEY=from-file\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("RTSP_OVERLAY_TEST_KEY") })

	require.NoError(t, Load(path))
	assert.Equal(t, "from-file", os.Getenv("RTSP_OVERLAY_TEST_KEY"))
}
