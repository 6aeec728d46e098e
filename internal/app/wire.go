package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/tw3b/bazaarwatch/internal/blob/s3"
	"github.com/tw3b/bazaarwatch/internal/cache/redis"
	"github.com/tw3b/bazaarwatch/internal/catalog"
	"github.com/tw3b/bazaarwatch/internal/config"
	"github.com/tw3b/bazaarwatch/internal/domain"
	"github.com/tw3b/bazaarwatch/internal/notify"
	"github.com/tw3b/bazaarwatch/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the application modes
// need. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Stores
	Watches  domain.WatchStore
	Matches  domain.MatchStore
	Settings domain.SettingsStore

	// Redis
	Locks domain.LockManager // nil unless the distributed cycle lock is on
	Bus   domain.SignalBus

	// Blob storage for the retention archive; nil when S3 is disabled.
	Blobs domain.BlobWriter

	// Notifications
	Notifier *notify.Notifier

	// Item reference data; nil when no catalog CSV is configured.
	Catalog *catalog.Catalog
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them with a cleanup function to call on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Watches = postgres.NewWatchStore(pool)
	deps.Matches = postgres.NewMatchStore(pool)
	deps.Settings = postgres.NewSettingsStore(pool, domain.Settings{
		PollIntervalMinutes: cfg.Watcher.PollIntervalMinutes,
		RetainMinutes:       cfg.Retention.RetainMinutes,
	})

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Bus = redis.NewSignalBus(redisClient)
	if cfg.Watcher.DistributedLock {
		deps.Locks = redis.NewLockManager(redisClient)
	}

	// --- S3 blob storage (retention archive) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		deps.Blobs = s3blob.NewWriter(s3Client)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Item catalog ---
	if cfg.Catalog.Path != "" {
		items, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			// A broken catalog only disables range-based scans.
			logger.Warn("wire: item catalog load failed",
				slog.String("path", cfg.Catalog.Path),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("wire: item catalog loaded",
				slog.String("path", cfg.Catalog.Path),
				slog.Int("items", items.Len()),
			)
			deps.Catalog = items
		}
	}

	return deps, cleanup, nil
}
