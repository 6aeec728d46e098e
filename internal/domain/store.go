package domain

import (
	"context"
	"io"
	"time"
)

// WatchStore persists watch definitions. List returns watches in their
// configured position order, which is also the order the poll cycle visits
// them in.
type WatchStore interface {
	List(ctx context.Context) ([]Watch, error)
	GetByID(ctx context.Context, id int64) (Watch, error)
	Create(ctx context.Context, w Watch) (Watch, error)
	Update(ctx context.Context, w Watch) error
	Delete(ctx context.Context, id int64) error
}

// MatchStore persists the bounded match history. ListRecent returns records
// newest first. Fingerprints returns the dedup keys of every retained record;
// a candidate offer whose fingerprint is present must not be inserted again.
type MatchStore interface {
	InsertBatch(ctx context.Context, records []MatchRecord) error
	TruncateToCapacity(ctx context.Context, capacity int) (int64, error)
	Fingerprints(ctx context.Context) (map[string]struct{}, error)
	ListRecent(ctx context.Context, limit int) ([]MatchRecord, error)
	ListBefore(ctx context.Context, cutoff time.Time) ([]MatchRecord, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
}

// Settings are the user-adjustable runtime knobs, persisted so they survive
// restarts and apply live without a config reload.
type Settings struct {
	PollIntervalMinutes int
	RetainMinutes       int
}

// SettingsStore persists Settings. Get applies configured defaults for keys
// that have never been written.
type SettingsStore interface {
	Get(ctx context.Context) (Settings, error)
	Put(ctx context.Context, s Settings) error
}

// LockManager hands out exclusive named locks with a bounded lifetime.
// Acquire returns ErrLockHeld when another owner holds the lock; the returned
// release func is safe to call exactly once.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// SignalBus is a lightweight publish/subscribe fabric for cross-process
// events. Delivery is best effort: a subscriber that was not connected when
// an event fired never sees it.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// BlobWriter stores immutable blobs, keyed by path. Used by the retention
// sweeper to archive pruned match records.
type BlobWriter interface {
	Put(ctx context.Context, path string, body io.Reader, contentType string) error
}
