// Package scheduler owns the recurring poll trigger. Exactly one recurring
// trigger exists at a time: changing the interval stops the current ticker
// and creates a new one. Forced runs execute immediately without disturbing
// the recurring schedule.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tw3b/bazaarwatch/internal/domain"
)

const (
	// MinInterval is the floor for the recurring interval; anything lower
	// is clamped up.
	MinInterval = time.Minute

	// DefaultInterval applies when no interval was configured.
	DefaultInterval = 2 * time.Minute

	// fallbackDelay spaces out the one-shot trigger used when a forced run
	// cannot be handed to the loop.
	fallbackDelay = 250 * time.Millisecond
)

// CycleFunc runs one poll cycle.
type CycleFunc func(ctx context.Context) error

// Scheduler drives a CycleFunc on a recurring interval and on demand.
type Scheduler struct {
	run      CycleFunc
	interval time.Duration
	reconfig chan time.Duration
	force    chan chan error
	logger   *slog.Logger

	runCtx atomic.Pointer[context.Context]
}

// New builds a Scheduler. interval is clamped to MinInterval; zero selects
// DefaultInterval.
func New(run CycleFunc, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		run:      run,
		interval: Clamp(interval),
		reconfig: make(chan time.Duration, 1),
		force:    make(chan chan error),
		logger:   logger.With(slog.String("component", "scheduler")),
	}
}

// Clamp normalizes a requested interval: zero or negative becomes the
// default, anything below the minimum becomes the minimum.
func Clamp(interval time.Duration) time.Duration {
	if interval <= 0 {
		return DefaultInterval
	}
	if interval < MinInterval {
		return MinInterval
	}
	return interval
}

// Run blocks until ctx is canceled, firing cycles on schedule and serving
// reconfiguration and force requests between them. Cycles run synchronously
// inside the loop, so scheduled ticks can never overlap each other.
func (s *Scheduler) Run(ctx context.Context) error {
	s.runCtx.Store(&ctx)
	defer s.runCtx.Store(nil)

	s.logger.InfoContext(ctx, "scheduler started", slog.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case interval := <-s.reconfig:
			ticker.Stop()
			ticker = time.NewTicker(interval)
			s.interval = interval
			s.logger.InfoContext(ctx, "poll interval changed", slog.Duration("interval", interval))
		case ack := <-s.force:
			ack <- s.cycle(ctx)
		case <-ticker.C:
			_ = s.cycle(ctx)
		}
	}
}

// SetInterval replaces the recurring trigger. Stale pending requests are
// dropped so only the most recent interval wins.
func (s *Scheduler) SetInterval(interval time.Duration) {
	interval = Clamp(interval)
	for {
		select {
		case s.reconfig <- interval:
			return
		default:
			select {
			case <-s.reconfig:
			default:
			}
		}
	}
}

// ForcePoll runs a cycle now and reports its outcome. When the loop cannot
// take the request (not running, or busy inside a cycle), it falls back to
// scheduling an ad-hoc one-shot trigger and reports success; the controller's
// own guard keeps the one-shot from overlapping a running cycle.
func (s *Scheduler) ForcePoll(ctx context.Context) error {
	ack := make(chan error, 1)
	select {
	case s.force <- ack:
		select {
		case err := <-ack:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	default:
		s.logger.Info("force poll deferred to one-shot trigger")
		time.AfterFunc(fallbackDelay, func() {
			runCtx := context.Background()
			if p := s.runCtx.Load(); p != nil {
				runCtx = *p
			}
			if runCtx.Err() != nil {
				return
			}
			_ = s.cycle(runCtx)
		})
		return nil
	}
}

func (s *Scheduler) cycle(ctx context.Context) error {
	started := time.Now()
	err := s.run(ctx)
	switch {
	case errors.Is(err, domain.ErrCycleInProgress):
		s.logger.InfoContext(ctx, "cycle already in progress, trigger dropped")
	case errors.Is(err, context.Canceled):
	case err != nil:
		s.logger.ErrorContext(ctx, "poll cycle failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(started)),
		)
	}
	return err
}
