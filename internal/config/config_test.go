package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 5*time.Second, cfg.ReactionWindow)
	assert.Equal(t, 15*time.Second, cfg.TurnTimer)
	assert.Equal(t, 10*time.Second, cfg.InitialPeekTimeout)
	assert.Equal(t, 24*time.Hour, cfg.JWTLifetime)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CABO_LISTEN_ADDR", ":9999")
	t.Setenv("CABO_REACTION_WINDOW", "2s")
	t.Setenv("CABO_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, 2*time.Second, cfg.ReactionWindow)
	assert.Equal(t, logrus.DebugLevel, cfg.ParseLogLevel())
}

func TestParseLogLevelFallback(t *testing.T) {
	cfg := Config{LogLevel: "bogus"}
	assert.Equal(t, logrus.InfoLevel, cfg.ParseLogLevel())
}
