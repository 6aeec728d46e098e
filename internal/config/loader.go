package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BZW_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BZW_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "BZW_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "BZW_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BZW_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BZW_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BZW_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BZW_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BZW_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BZW_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BZW_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BZW_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "BZW_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BZW_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BZW_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BZW_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BZW_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BZW_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "BZW_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "BZW_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BZW_S3_REGION")
	setStr(&cfg.S3.Bucket, "BZW_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BZW_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BZW_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BZW_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BZW_S3_FORCE_PATH_STYLE")

	// ── Watcher ──
	setStr(&cfg.Watcher.BaseURL, "BZW_WATCHER_BASE_URL")
	setInt(&cfg.Watcher.PollIntervalMinutes, "BZW_WATCHER_POLL_INTERVAL_MINUTES")
	setDuration(&cfg.Watcher.PageLoadTimeout, "BZW_WATCHER_PAGE_LOAD_TIMEOUT")
	setDuration(&cfg.Watcher.ReadyTimeout, "BZW_WATCHER_READY_TIMEOUT")
	setDuration(&cfg.Watcher.ReadyPollInterval, "BZW_WATCHER_READY_POLL_INTERVAL")
	setInt(&cfg.Watcher.MatchCapacity, "BZW_WATCHER_MATCH_CAPACITY")
	setDuration(&cfg.Watcher.EmptyDelayMin, "BZW_WATCHER_EMPTY_DELAY_MIN")
	setDuration(&cfg.Watcher.EmptyDelayMax, "BZW_WATCHER_EMPTY_DELAY_MAX")
	setDuration(&cfg.Watcher.MatchDelayMin, "BZW_WATCHER_MATCH_DELAY_MIN")
	setDuration(&cfg.Watcher.MatchDelayMax, "BZW_WATCHER_MATCH_DELAY_MAX")
	setBool(&cfg.Watcher.DistributedLock, "BZW_WATCHER_DISTRIBUTED_LOCK")
	setDuration(&cfg.Watcher.LockTTL, "BZW_WATCHER_LOCK_TTL")

	// ── Scan ──
	setDuration(&cfg.Scan.ReadyTimeout, "BZW_SCAN_READY_TIMEOUT")
	setInt(&cfg.Scan.RowsPerItem, "BZW_SCAN_ROWS_PER_ITEM")
	setInt(&cfg.Scan.MaxVsMarket, "BZW_SCAN_MAX_VS_MARKET")
	setDuration(&cfg.Scan.Delay, "BZW_SCAN_DELAY")
	setDuration(&cfg.Scan.Jitter, "BZW_SCAN_JITTER")

	// ── Retention ──
	setInt(&cfg.Retention.RetainMinutes, "BZW_RETENTION_RETAIN_MINUTES")
	setDuration(&cfg.Retention.SweepInterval, "BZW_RETENTION_SWEEP_INTERVAL")

	// ── Catalog ──
	setStr(&cfg.Catalog.Path, "BZW_CATALOG_PATH")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "BZW_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "BZW_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BZW_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BZW_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BZW_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BZW_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BZW_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "BZW_MODE")
	setStr(&cfg.LogLevel, "BZW_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
