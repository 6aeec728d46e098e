package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tw3b/bazaarwatch/internal/domain"
)

// WatchStore implements domain.WatchStore.
type WatchStore struct {
	pool *pgxpool.Pool
}

// NewWatchStore creates a WatchStore backed by the given pool.
func NewWatchStore(pool *pgxpool.Pool) *WatchStore {
	return &WatchStore{pool: pool}
}

const watchColumns = `id, item_id, name, max_price, min_qty, position, created_at, updated_at`

// List returns all watches in position order, which is the order the poll
// cycle visits them.
func (s *WatchStore) List(ctx context.Context) ([]domain.Watch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+watchColumns+` FROM watches ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list watches: %w", err)
	}
	defer rows.Close()

	var watches []domain.Watch
	for rows.Next() {
		w, err := scanWatch(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan watch: %w", err)
		}
		watches = append(watches, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list watches: %w", err)
	}
	return watches, nil
}

// GetByID fetches a single watch.
func (s *WatchStore) GetByID(ctx context.Context, id int64) (domain.Watch, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+watchColumns+` FROM watches WHERE id = $1`, id)
	w, err := scanWatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Watch{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Watch{}, fmt.Errorf("postgres: get watch %d: %w", id, err)
	}
	return w, nil
}

// Create inserts a watch at the end of the list and returns it with its
// assigned id and position.
func (s *WatchStore) Create(ctx context.Context, w domain.Watch) (domain.Watch, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO watches (item_id, name, max_price, min_qty, position)
		VALUES ($1, $2, $3, $4,
			(SELECT COALESCE(MAX(position), 0) + 1 FROM watches))
		RETURNING `+watchColumns,
		w.ItemID, w.Name, w.MaxPrice, w.MinQty,
	)
	created, err := scanWatch(row)
	if err != nil {
		return domain.Watch{}, fmt.Errorf("postgres: create watch: %w", err)
	}
	return created, nil
}

// Update rewrites the mutable fields of a watch.
func (s *WatchStore) Update(ctx context.Context, w domain.Watch) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE watches
		SET item_id = $2, name = $3, max_price = $4, min_qty = $5, updated_at = NOW()
		WHERE id = $1`,
		w.ID, w.ItemID, w.Name, w.MaxPrice, w.MinQty,
	)
	if err != nil {
		return fmt.Errorf("postgres: update watch %d: %w", w.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a watch.
func (s *WatchStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM watches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete watch %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanWatch(row pgx.Row) (domain.Watch, error) {
	var w domain.Watch
	err := row.Scan(
		&w.ID, &w.ItemID, &w.Name, &w.MaxPrice, &w.MinQty,
		&w.Position, &w.CreatedAt, &w.UpdatedAt,
	)
	return w, err
}
