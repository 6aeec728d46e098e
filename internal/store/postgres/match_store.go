package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tw3b/bazaarwatch/internal/domain"
)

// MatchStore implements domain.MatchStore. The fingerprint column carries a
// unique constraint, so a record that races in twice lands exactly once.
type MatchStore struct {
	pool *pgxpool.Pool
}

// NewMatchStore creates a MatchStore backed by the given pool.
func NewMatchStore(pool *pgxpool.Pool) *MatchStore {
	return &MatchStore{pool: pool}
}

const matchColumns = `observed_at, item_id, item_name, price, quantity, seller_id, seller_name, bazaar_url`

// InsertBatch writes the records in one round trip. Fingerprint collisions
// are silently skipped.
func (s *MatchStore) InsertBatch(ctx context.Context, records []domain.MatchRecord) error {
	if len(records) == 0 {
		return nil
	}

	const query = `
		INSERT INTO matches (` + matchColumns + `, fingerprint)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (fingerprint) DO NOTHING`

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(query,
			r.ObservedAt, r.ItemID, r.ItemName, r.Price, r.Quantity,
			r.SellerID, r.SellerName, r.BazaarURL, r.Fingerprint(),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert match batch item %d: %w", i, err)
		}
	}
	return nil
}

// TruncateToCapacity deletes everything but the newest capacity records and
// returns how many rows fell off.
func (s *MatchStore) TruncateToCapacity(ctx context.Context, capacity int) (int64, error) {
	if capacity < 0 {
		capacity = 0
	}
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM matches
		WHERE id NOT IN (
			SELECT id FROM matches ORDER BY observed_at DESC, id DESC LIMIT $1
		)`, capacity)
	if err != nil {
		return 0, fmt.Errorf("postgres: truncate matches to %d: %w", capacity, err)
	}
	return tag.RowsAffected(), nil
}

// Fingerprints returns the dedup keys of every retained record.
func (s *MatchStore) Fingerprints(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT fingerprint FROM matches`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load fingerprints: %w", err)
	}
	defer rows.Close()

	fps := make(map[string]struct{})
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("postgres: scan fingerprint: %w", err)
		}
		fps[fp] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load fingerprints: %w", err)
	}
	return fps, nil
}

// ListRecent returns the newest records first, bounded by limit.
func (s *MatchStore) ListRecent(ctx context.Context, limit int) ([]domain.MatchRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+matchColumns+` FROM matches ORDER BY observed_at DESC, id DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent matches: %w", err)
	}
	defer rows.Close()
	return collectMatches(rows)
}

// ListBefore returns records observed strictly before cutoff, newest first.
func (s *MatchStore) ListBefore(ctx context.Context, cutoff time.Time) ([]domain.MatchRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE observed_at < $1 ORDER BY observed_at DESC, id DESC`,
		cutoff)
	if err != nil {
		return nil, fmt.Errorf("postgres: list matches before %s: %w", cutoff, err)
	}
	defer rows.Close()
	return collectMatches(rows)
}

// DeleteBefore removes records observed strictly before cutoff.
func (s *MatchStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM matches WHERE observed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete matches before %s: %w", cutoff, err)
	}
	return tag.RowsAffected(), nil
}

// Clear wipes the whole match history.
func (s *MatchStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM matches`); err != nil {
		return fmt.Errorf("postgres: clear matches: %w", err)
	}
	return nil
}

// Count reports the number of retained records.
func (s *MatchStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM matches`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count matches: %w", err)
	}
	return n, nil
}

func collectMatches(rows pgx.Rows) ([]domain.MatchRecord, error) {
	var records []domain.MatchRecord
	for rows.Next() {
		var r domain.MatchRecord
		err := rows.Scan(
			&r.ObservedAt, &r.ItemID, &r.ItemName, &r.Price, &r.Quantity,
			&r.SellerID, &r.SellerName, &r.BazaarURL,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan match: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read matches: %w", err)
	}
	return records, nil
}
