// Package retention prunes match records that have aged out of the
// configured window, optionally archiving them to blob storage first.
package retention

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tw3b/bazaarwatch/internal/domain"
)

// DefaultRetain is the retention window applied when none is configured.
const DefaultRetain = 30 * time.Minute

// Sweeper periodically deletes matches older than the retention window. The
// window can be changed at runtime; the next sweep picks it up.
type Sweeper struct {
	matches  domain.MatchStore
	blobs    domain.BlobWriter // optional
	interval time.Duration
	retain   atomic.Int64 // nanoseconds
	logger   *slog.Logger
	now      func() time.Time
}

// NewSweeper builds a Sweeper. blobs may be nil to disable archiving.
func NewSweeper(matches domain.MatchStore, blobs domain.BlobWriter, retain, interval time.Duration, logger *slog.Logger) *Sweeper {
	s := &Sweeper{
		matches:  matches,
		blobs:    blobs,
		interval: interval,
		logger:   logger.With(slog.String("component", "retention")),
		now:      time.Now,
	}
	s.SetRetention(retain)
	if s.interval <= 0 {
		s.interval = time.Minute
	}
	return s
}

// SetRetention replaces the retention window. Non-positive values fall back
// to the default.
func (s *Sweeper) SetRetention(retain time.Duration) {
	if retain <= 0 {
		retain = DefaultRetain
	}
	s.retain.Store(int64(retain))
}

// Retention returns the active window.
func (s *Sweeper) Retention() time.Duration {
	return time.Duration(s.retain.Load())
}

// Run sweeps on the configured interval until ctx is cancelled. Sweep
// failures are logged, not fatal; the next tick retries.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "retention sweeper started",
		slog.Duration("interval", s.interval),
		slog.Duration("retain", s.Retention()),
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.ErrorContext(ctx, "sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// SweepOnce removes everything observed before now minus the retention
// window. When a blob writer is configured, the pruned rows are archived as
// one JSON document before deletion; an archive failure aborts the sweep so
// no record is lost.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	cutoff := s.now().Add(-s.Retention())

	expired, err := s.matches.ListBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("retention: list expired matches: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}

	if s.blobs != nil {
		if err := s.archive(ctx, cutoff, expired); err != nil {
			return err
		}
	}

	deleted, err := s.matches.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("retention: delete expired matches: %w", err)
	}
	s.logger.InfoContext(ctx, "expired matches pruned",
		slog.Int64("deleted", deleted),
		slog.Time("cutoff", cutoff),
	)
	return nil
}

func (s *Sweeper) archive(ctx context.Context, cutoff time.Time, records []domain.MatchRecord) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("retention: marshal archive: %w", err)
	}
	path := fmt.Sprintf("matches/archive/%s.json", s.now().UTC().Format("20060102T150405Z"))
	if err := s.blobs.Put(ctx, path, bytes.NewReader(payload), "application/json"); err != nil {
		return fmt.Errorf("retention: archive %d matches before %s: %w", len(records), cutoff, err)
	}
	return nil
}
