package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, 500*time.Millisecond, cfg.Tracker.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.Tracker.SaveInterval)
	assert.Equal(t, 2.0, cfg.Tracker.SkipTolerance)
	assert.Equal(t, 0.95, cfg.Tracker.CompletionThreshold)
	assert.Equal(t, "@every 5m", cfg.Compactor.Schedule)
	assert.Equal(t, 10*time.Second, cfg.Client.Timeout)
	assert.Equal(t, "https://www.youtube.com/oembed", cfg.Player.OEmbedURL)
}

func TestLoadSecretsFromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/academy")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("WATCH_TOKEN", "token")
	t.Setenv("TRACKER_SKIP_TOLERANCE", "3.5")

	cfg, err := Load()
	require.NoError(t, err)

	dsn, err := cfg.DB.DSN()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/academy", dsn)

	secret, err := cfg.Auth.Secret()
	require.NoError(t, err)
	assert.Equal(t, []byte("s3cret"), secret)

	assert.NoError(t, cfg.Client.Validate())
	assert.Equal(t, 3.5, cfg.Tracker.SkipTolerance)
}

func TestMissingSecrets(t *testing.T) {
	var cfg Config

	_, err := cfg.DB.DSN()
	assert.ErrorIs(t, err, ErrMissingEnvironmentVariables)

	_, err = cfg.Auth.Secret()
	assert.ErrorIs(t, err, ErrMissingEnvironmentVariables)

	assert.ErrorIs(t, cfg.Client.Validate(), ErrMissingEnvironmentVariables)
	assert.False(t, cfg.Telegram.Enabled())
}
