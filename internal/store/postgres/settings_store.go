package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tw3b/bazaarwatch/internal/domain"
)

const (
	settingPollInterval = "poll_interval_minutes"
	settingRetain       = "retain_minutes"
)

// SettingsStore implements domain.SettingsStore over a key/value table.
// Missing keys fall back to the defaults supplied at construction, so a
// fresh database behaves exactly like the shipped config.
type SettingsStore struct {
	pool     *pgxpool.Pool
	defaults domain.Settings
}

// NewSettingsStore creates a SettingsStore with the given fallback defaults.
func NewSettingsStore(pool *pgxpool.Pool, defaults domain.Settings) *SettingsStore {
	return &SettingsStore{pool: pool, defaults: defaults}
}

// Get reads the current settings, applying defaults for unset keys.
func (s *SettingsStore) Get(ctx context.Context) (domain.Settings, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, value FROM settings WHERE key = ANY($1)`,
		[]string{settingPollInterval, settingRetain})
	if err != nil {
		return domain.Settings{}, fmt.Errorf("postgres: load settings: %w", err)
	}
	defer rows.Close()

	out := s.defaults
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return domain.Settings{}, fmt.Errorf("postgres: scan setting: %w", err)
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		switch key {
		case settingPollInterval:
			out.PollIntervalMinutes = n
		case settingRetain:
			out.RetainMinutes = n
		}
	}
	if err := rows.Err(); err != nil {
		return domain.Settings{}, fmt.Errorf("postgres: load settings: %w", err)
	}
	return out, nil
}

// Put upserts both settings atomically.
func (s *SettingsStore) Put(ctx context.Context, settings domain.Settings) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin settings tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const upsert = `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

	pairs := map[string]int{
		settingPollInterval: settings.PollIntervalMinutes,
		settingRetain:       settings.RetainMinutes,
	}
	for key, value := range pairs {
		if _, err := tx.Exec(ctx, upsert, key, strconv.Itoa(value)); err != nil {
			return fmt.Errorf("postgres: upsert setting %s: %w", key, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit settings: %w", err)
	}
	return nil
}
