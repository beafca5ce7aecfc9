package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, int32(8190), cfg.HTTP.Port)
	assert.Equal(t, "127.0.0.1", cfg.HTTP.Host)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, CacheBackendSQLite, cfg.Cache.Backend)
	assert.Equal(t, DefaultCacheDir, cfg.Cache.Dir)
	assert.Empty(t, cfg.Remote.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 3, cfg.Remote.MaxRetries)
	assert.False(t, cfg.Outbox.Enabled)
	assert.Equal(t, 1, cfg.Tasks.Workers)
	assert.Equal(t, 5*time.Minute, cfg.Tasks.ReleaseAfter)
	assert.Equal(t, "*/15 * * * *", cfg.Reconcile.Schedule)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Identity.DefaultUser)
}

func TestNewConfig_Environment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("CACHE_BACKEND", "file")
	t.Setenv("REMOTE_BASE_URL", "https://api.example.com")
	t.Setenv("REMOTE_TIMEOUT", "3s")
	t.Setenv("OUTBOX_ENABLED", "true")
	t.Setenv("DEFAULT_USER", "u1")

	cfg := NewConfig()

	assert.Equal(t, int32(9000), cfg.HTTP.Port)
	assert.Equal(t, CacheBackendFile, cfg.Cache.Backend)
	assert.Equal(t, "https://api.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Remote.Timeout)
	assert.True(t, cfg.Outbox.Enabled)
	assert.Equal(t, "u1", cfg.Identity.DefaultUser)
}
