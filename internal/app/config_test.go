package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, 24*time.Hour, cfg.PendingTTL)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.False(t, cfg.UsesRedis())
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("STORE_BACKEND", " Redis ")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("PENDING_TTL", "90m")
	t.Setenv("APP_ENV", "production")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.StoreBackend)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 90*time.Minute, cfg.PendingTTL)
	assert.True(t, cfg.UsesRedis())
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 3, cfg.AsynqRedisOpt().DB)
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"unknown backend", Config{StoreBackend: "mongo", RateLimitPerMinute: 1}},
		{"postgres without dsn", Config{StoreBackend: BackendPostgres, RateLimitPerMinute: 1}},
		{"zero rate limit", Config{StoreBackend: BackendMemory}},
		{"negative ttl", Config{StoreBackend: BackendMemory, RateLimitPerMinute: 1, PendingTTL: -time.Second}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.cfg.Validate())
		})
	}
}

func TestLoadConfigRejectsMalformedDuration(t *testing.T) {
	t.Setenv("PENDING_TTL", "soon")
	_, err := LoadConfig()
	assert.Error(t, err)
}
