package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "claims-auth", cfg.Service.Name)
	assert.Equal(t, 5, cfg.Auth.LockoutThreshold)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, time.Hour, cfg.Auth.ResetTokenTTL)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AUTH_LOCKOUT_THRESHOLD", "3")
	t.Setenv("AUTH_SESSION_TTL", "30m")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TRACING_ENABLED", "true")

	cfg := Load()
	assert.Equal(t, 3, cfg.Auth.LockoutThreshold)
	assert.Equal(t, 30*time.Minute, cfg.Auth.SessionTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Tracing.Enabled)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Load()
	cfg.Auth.LockoutThreshold = 0
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.Database.URL = ""
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.Tracing.SampleRate = 1.5
	assert.Error(t, cfg.Validate())
}

func TestShutdownDurations(t *testing.T) {
	t.Setenv("SHUTDOWN_DRAIN_DELAY_SECONDS", "2")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "10")

	cfg := Load()
	assert.Equal(t, 2*time.Second, cfg.GetReadinessDrainDelayDuration())
	assert.Equal(t, 10*time.Second, cfg.GetShutdownTimeoutDuration())
}
