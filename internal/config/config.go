package config

import (
	"time"

	"github.com/spf13/viper"
)

type CacheBackend string

const (
	CacheBackendSQLite CacheBackend = "sqlite" // cache_entries table in the main database (default)
	CacheBackendFile   CacheBackend = "file"   // one TOML file per scope
	CacheBackendMemory CacheBackend = "memory" // nothing survives a restart
)

type (
	Config struct {
		HTTP
		Global
		Database
		Cache
		Remote
		Outbox
		Tasks
		Reconcile
		Log
		Identity
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Cache struct {
		Backend CacheBackend
		Dir     string // used by the file backend
	}
	Remote struct {
		BaseURL    string // empty disables reconciliation and remote mutations
		Timeout    time.Duration
		MaxRetries int
	}
	Outbox struct {
		Enabled bool // queue remote mutations in backlite and retry them
	}
	Tasks struct {
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Reconcile struct {
		Schedule string // Cron format, "off" disables periodic reconciliation
	}
	Log struct {
		Level  string
		Pretty bool
	}
	Identity struct {
		DefaultUser string // user signed in at startup, empty means anonymous
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8190)
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	v.SetDefault("cache_backend", string(CacheBackendSQLite))
	v.SetDefault("cache_dir", DefaultCacheDir)

	// Remote gateway defaults
	v.SetDefault("remote_base_url", "")
	v.SetDefault("remote_timeout", "10s")
	v.SetDefault("remote_max_retries", 3)

	// Outbox and task queue defaults
	v.SetDefault("outbox_enabled", false)
	v.SetDefault("task_workers", 1) // one worker keeps remote mutations in order
	v.SetDefault("task_release_after", "5m")
	v.SetDefault("task_cleanup_interval", "1h")

	v.SetDefault("reconcile_schedule", "*/15 * * * *") // Every 15 minutes

	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)

	v.SetDefault("default_user", "")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Cache: Cache{
			Backend: CacheBackend(v.GetString("CACHE_BACKEND")),
			Dir:     v.GetString("CACHE_DIR"),
		},
		Remote: Remote{
			BaseURL:    v.GetString("REMOTE_BASE_URL"),
			Timeout:    v.GetDuration("REMOTE_TIMEOUT"),
			MaxRetries: v.GetInt("REMOTE_MAX_RETRIES"),
		},
		Outbox: Outbox{
			Enabled: v.GetBool("OUTBOX_ENABLED"),
		},
		Tasks: Tasks{
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Reconcile: Reconcile{
			Schedule: v.GetString("RECONCILE_SCHEDULE"),
		},
		Log: Log{
			Level:  v.GetString("LOG_LEVEL"),
			Pretty: v.GetBool("LOG_PRETTY"),
		},
		Identity: Identity{
			DefaultUser: v.GetString("DEFAULT_USER"),
		},
	}
}
