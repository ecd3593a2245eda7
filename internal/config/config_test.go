package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, domain.RunModePolling, cfg.RunMode)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 30, cfg.PollMaxAttempts)
	assert.Equal(t, 2*time.Minute, cfg.StreamTimeout)
	assert.Equal(t, "gpt-4-turbo-preview", cfg.DefaultModel)
	assert.Equal(t, []string{"*"}, cfg.FrameAncestors)
	assert.NotContains(t, cfg.DatabaseURL, "cache=shared")
	assert.Contains(t, cfg.DatabaseURL, "_busy_timeout=")
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("RUN_MODE", "STREAMING")
	t.Setenv("STREAM_TIMEOUT_MS", "5000")
	t.Setenv("BACKEND_MODE", "mock")
	t.Setenv("FRAME_ANCESTORS", "https://a.example https://b.example")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, domain.RunModeStreaming, cfg.RunMode)
	assert.Equal(t, 5*time.Second, cfg.StreamTimeout)
	assert.Equal(t, "MOCK", cfg.BackendMode)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.FrameAncestors)
}
