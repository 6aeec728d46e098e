// Package config defines the top-level configuration for the bazaar watcher
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by BZW_* environment variables.
type Config struct {
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Watcher   WatcherConfig   `toml:"watcher"`
	Scan      ScanConfig      `toml:"scan"`
	Retention RetentionConfig `toml:"retention"`
	Catalog   CatalogConfig   `toml:"catalog"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the retention
// archive. Archiving is off unless Enabled is set.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// WatcherConfig holds the poll cycle parameters.
type WatcherConfig struct {
	// BaseURL is the root of the listing site; item pages live under
	// /item/<id>.
	BaseURL string `toml:"base_url"`

	// PollIntervalMinutes is the recurring cycle interval. Minimum 1.
	PollIntervalMinutes int `toml:"poll_interval_minutes"`

	// PageLoadTimeout bounds the initial page load wait per item.
	PageLoadTimeout duration `toml:"page_load_timeout"`

	// ReadyTimeout bounds the listing readiness wait; on expiry extraction
	// degrades to an empty result.
	ReadyTimeout duration `toml:"ready_timeout"`

	// ReadyPollInterval is how often rendered content is re-sampled.
	ReadyPollInterval duration `toml:"ready_poll_interval"`

	// MatchCapacity bounds the persisted match history.
	MatchCapacity int `toml:"match_capacity"`

	// Pacing between watches: a jittered delay drawn from [min, max).
	// Setting max equal to min disables the jitter.
	EmptyDelayMin duration `toml:"empty_delay_min"`
	EmptyDelayMax duration `toml:"empty_delay_max"`
	MatchDelayMin duration `toml:"match_delay_min"`
	MatchDelayMax duration `toml:"match_delay_max"`

	// DistributedLock guards the cycle with a Redis lock so two instances
	// sharing a database never poll concurrently.
	DistributedLock bool     `toml:"distributed_lock"`
	LockTTL         duration `toml:"lock_ttl"`
}

// ScanConfig holds the manual deep-scan parameters.
type ScanConfig struct {
	ReadyTimeout duration `toml:"ready_timeout"`
	RowsPerItem  int      `toml:"rows_per_item"`
	MaxVsMarket  int      `toml:"max_vs_market"`
	Delay        duration `toml:"delay"`
	Jitter       duration `toml:"jitter"`
}

// RetentionConfig holds the match retention sweep parameters.
type RetentionConfig struct {
	RetainMinutes int      `toml:"retain_minutes"`
	SweepInterval duration `toml:"sweep_interval"`
}

// CatalogConfig points at the item reference CSV. Optional; without it the
// deep scan only accepts explicit item ids.
type CatalogConfig struct {
	Path string `toml:"path"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so TOML strings like "250ms" or "15s" decode.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the shipped default values.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "bazaarwatch",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "bazaarwatch-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Watcher: WatcherConfig{
			BaseURL:             "https://weav3r.dev",
			PollIntervalMinutes: 2,
			PageLoadTimeout:     duration{30 * time.Second},
			ReadyTimeout:        duration{15 * time.Second},
			ReadyPollInterval:   duration{250 * time.Millisecond},
			MatchCapacity:       200,
			EmptyDelayMin:       duration{600 * time.Millisecond},
			EmptyDelayMax:       duration{900 * time.Millisecond},
			MatchDelayMin:       duration{800 * time.Millisecond},
			MatchDelayMax:       duration{1200 * time.Millisecond},
			DistributedLock:     false,
			LockTTL:             duration{2 * time.Minute},
		},
		Scan: ScanConfig{
			ReadyTimeout: duration{30 * time.Second},
			RowsPerItem:  20,
			MaxVsMarket:  -5,
			Delay:        duration{800 * time.Millisecond},
			Jitter:       duration{300 * time.Millisecond},
		},
		Retention: RetentionConfig{
			RetainMinutes: 30,
			SweepInterval: duration{time.Minute},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"match_found", "cycle_error"},
		},
		Mode:     "watch",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"watch":   true,
	"monitor": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: watch, monitor, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}

	// S3 — only validated when archiving is on.
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when s3 is enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when s3 is enabled")
		}
	}

	// Watcher
	if c.Watcher.BaseURL == "" {
		errs = append(errs, "watcher: base_url must not be empty")
	}
	if c.Watcher.PollIntervalMinutes < 1 {
		errs = append(errs, fmt.Sprintf("watcher: poll_interval_minutes must be >= 1, got %d", c.Watcher.PollIntervalMinutes))
	}
	if c.Watcher.MatchCapacity < 1 {
		errs = append(errs, fmt.Sprintf("watcher: match_capacity must be >= 1, got %d", c.Watcher.MatchCapacity))
	}
	if c.Watcher.ReadyTimeout.Duration <= 0 {
		errs = append(errs, "watcher: ready_timeout must be positive")
	}
	if c.Watcher.ReadyPollInterval.Duration <= 0 {
		errs = append(errs, "watcher: ready_poll_interval must be positive")
	}
	if c.Watcher.EmptyDelayMax.Duration < c.Watcher.EmptyDelayMin.Duration {
		errs = append(errs, "watcher: empty_delay_max must be >= empty_delay_min")
	}
	if c.Watcher.MatchDelayMax.Duration < c.Watcher.MatchDelayMin.Duration {
		errs = append(errs, "watcher: match_delay_max must be >= match_delay_min")
	}

	// Scan
	if c.Scan.RowsPerItem < 1 || c.Scan.RowsPerItem > 100 {
		errs = append(errs, fmt.Sprintf("scan: rows_per_item must be 1-100, got %d", c.Scan.RowsPerItem))
	}
	if c.Scan.ReadyTimeout.Duration <= 0 {
		errs = append(errs, "scan: ready_timeout must be positive")
	}

	// Retention
	if c.Retention.RetainMinutes < 1 {
		errs = append(errs, fmt.Sprintf("retention: retain_minutes must be >= 1, got %d", c.Retention.RetainMinutes))
	}
	if c.Retention.SweepInterval.Duration <= 0 {
		errs = append(errs, "retention: sweep_interval must be positive")
	}

	// Server
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	// Notify — Telegram needs both halves of its credential pair.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
