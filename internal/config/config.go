package config

import (
	"time"

	"github.com/spf13/viper"
)

type ProfileMode string

const (
	ProfileModeAnonymous ProfileMode = "anonymous" // Single always-current profile (default)
	ProfileModeMultiple  ProfileMode = "multiple"  // Explicitly created and selected profiles
)

type (
	Config struct {
		HTTP
		Global
		Storage
		Profiles
		Providers
		Transport
		Tasks
		Sync
		Audit
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Storage struct {
		DataDir     string        // Root of profiles/ and tasks.db
		LockTimeout time.Duration // Bounded wait for document file locks
		SQLLogLevel string        // gorm log level for book databases: silent, error, warn, info
	}
	Profiles struct {
		Mode ProfileMode
	}
	Providers struct {
		File                   string // YAML provider catalog; bundled catalog when empty
		DefaultProvider        string // Overrides the catalog's default provider
		BundledCredentialsFile string // YAML credentials attached to auto-provisioned accounts
	}
	Transport struct {
		Timeout   time.Duration
		UserAgent string
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Sync struct {
		Enabled     bool
		Schedule    string // Cron format: "0 */6 * * *" = every 6 hours
		Parallelism int    // Accounts of one profile synced at once
		Timeout     time.Duration
	}
	Audit struct {
		Dir           string
		RetentionDays int // Days to keep unparsable responses (default: 30)
	}
)

// Anonymous reports whether profiles run in anonymous mode.
func (p Profiles) Anonymous() bool {
	return p.Mode != ProfileModeMultiple
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)

	v.SetDefault("data_dir", DefaultDataDir)
	v.SetDefault("lock_timeout", "1s")
	v.SetDefault("sql_log_level", "warn")

	v.SetDefault("profile_mode", string(ProfileModeAnonymous))

	v.SetDefault("providers_file", "")
	v.SetDefault("default_provider", "")
	v.SetDefault("bundled_credentials_file", "")

	v.SetDefault("transport_timeout", "30s")
	v.SetDefault("transport_user_agent", "Patron/1.0")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	// Periodic sync defaults
	v.SetDefault("sync_enabled", true)
	v.SetDefault("sync_schedule", "0 */6 * * *") // Every 6 hours
	v.SetDefault("sync_parallelism", 2)
	v.SetDefault("sync_timeout", "10m")

	v.SetDefault("audit_dir", "./audit")
	v.SetDefault("audit_retention_days", 30)

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Storage: Storage{
			DataDir:     v.GetString("DATA_DIR"),
			LockTimeout: v.GetDuration("LOCK_TIMEOUT"),
			SQLLogLevel: v.GetString("SQL_LOG_LEVEL"),
		},
		Profiles: Profiles{
			Mode: ProfileMode(v.GetString("PROFILE_MODE")),
		},
		Providers: Providers{
			File:                   v.GetString("PROVIDERS_FILE"),
			DefaultProvider:        v.GetString("DEFAULT_PROVIDER"),
			BundledCredentialsFile: v.GetString("BUNDLED_CREDENTIALS_FILE"),
		},
		Transport: Transport{
			Timeout:   v.GetDuration("TRANSPORT_TIMEOUT"),
			UserAgent: v.GetString("TRANSPORT_USER_AGENT"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Sync: Sync{
			Enabled:     v.GetBool("SYNC_ENABLED"),
			Schedule:    v.GetString("SYNC_SCHEDULE"),
			Parallelism: v.GetInt("SYNC_PARALLELISM"),
			Timeout:     v.GetDuration("SYNC_TIMEOUT"),
		},
		Audit: Audit{
			Dir:           v.GetString("AUDIT_DIR"),
			RetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
		},
	}
}
