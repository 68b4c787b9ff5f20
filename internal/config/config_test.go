package config_test

import (
	"testing"
	"time"

	"taskboard/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 3, cfg.TxMaxAttempts)
	assert.Equal(t, 25*time.Millisecond, cfg.TxRetryBackoff)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessTTL)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("TX_MAX_ATTEMPTS", "5")
	t.Setenv("TX_RETRY_BACKOFF", "100ms")
	t.Setenv("AUTH_RATE_LIMIT", "0.5")
	t.Setenv("CACHE_TTL", "not-a-duration")

	cfg := config.Load()

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 5, cfg.TxMaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.TxRetryBackoff)
	assert.Equal(t, 0.5, cfg.AuthRateLimit)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
}
