// Package poller runs the recurring poll cycle: walk the watch list in
// order, extract each item's listings, filter, dedup against the persisted
// match history, record what is new, and fan the news out.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/tw3b/bazaarwatch/internal/dedup"
	"github.com/tw3b/bazaarwatch/internal/domain"
	"github.com/tw3b/bazaarwatch/internal/extract"
	"github.com/tw3b/bazaarwatch/internal/match"
	"github.com/tw3b/bazaarwatch/internal/notify"
)

// MatchesChannel is the signal bus channel match events are published on.
const MatchesChannel = "matches"

const cycleLockKey = "bazaarwatch:poll-cycle"

// Notifier is the slice of notify.Notifier the controller needs.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config tunes pacing and retention for the controller.
type Config struct {
	// Capacity bounds the persisted match history.
	Capacity int
	// EmptyDelayMin/Max bound the jittered pause after a watch with no
	// qualifying offers. Max equal to Min disables the jitter.
	EmptyDelayMin time.Duration
	EmptyDelayMax time.Duration
	// MatchDelayMin/Max bound the longer pause after a watch that produced
	// qualifying offers.
	MatchDelayMin time.Duration
	MatchDelayMax time.Duration
	// LockTTL bounds the distributed cycle lock when a LockManager is set.
	LockTTL time.Duration
}

// Controller executes poll cycles. At most one cycle runs at a time: a
// trigger arriving while a cycle is in flight is rejected with
// domain.ErrCycleInProgress rather than queued.
type Controller struct {
	watches   domain.WatchStore
	matches   domain.MatchStore
	renderer  domain.PageRenderer
	extractor *extract.Extractor
	notifier  Notifier
	bus       domain.SignalBus   // optional
	locks     domain.LockManager // optional
	cfg       Config
	logger    *slog.Logger
	running   atomic.Bool
}

// NewController wires a Controller. bus and locks may be nil; the notifier
// may be nil when no channels are configured.
func NewController(
	watches domain.WatchStore,
	matches domain.MatchStore,
	renderer domain.PageRenderer,
	extractor *extract.Extractor,
	notifier Notifier,
	bus domain.SignalBus,
	locks domain.LockManager,
	cfg Config,
	logger *slog.Logger,
) *Controller {
	if cfg.Capacity <= 0 {
		cfg.Capacity = dedup.Capacity
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	return &Controller{
		watches:   watches,
		matches:   matches,
		renderer:  renderer,
		extractor: extractor,
		notifier:  notifier,
		bus:       bus,
		locks:     locks,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "poller")),
	}
}

// RunCycle executes one full poll cycle over the current watch list.
//
// Failures are tiered: a page or extraction failure skips only that watch; a
// failure to load the watch list or to touch the match store aborts the
// cycle. Cancellation is honored between watches, never mid-item.
func (c *Controller) RunCycle(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return domain.ErrCycleInProgress
	}
	defer c.running.Store(false)

	if c.locks != nil {
		release, err := c.locks.Acquire(ctx, cycleLockKey, c.cfg.LockTTL)
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			return domain.ErrCycleInProgress
		case err != nil:
			// A lock backend outage must not stop a single-instance
			// deployment from polling.
			c.logger.WarnContext(ctx, "cycle lock unavailable, proceeding unlocked",
				slog.String("error", err.Error()))
		default:
			defer release()
		}
	}

	watches, err := c.watches.List(ctx)
	if err != nil {
		return fmt.Errorf("poller: load watch list: %w", err)
	}
	if len(watches) == 0 {
		c.logger.DebugContext(ctx, "no watches configured, cycle is a no-op")
		return nil
	}

	started := time.Now()
	var totalNew int
	for i, w := range watches {
		if err := ctx.Err(); err != nil {
			return err
		}

		matched, newCount, err := c.pollWatch(ctx, w)
		if err != nil {
			return err
		}
		totalNew += newCount

		if i < len(watches)-1 {
			delay := c.pacingDelay(matched)
			if err := sleepCtx(ctx, delay); err != nil {
				return err
			}
		}
	}

	c.logger.InfoContext(ctx, "poll cycle complete",
		slog.Int("watches", len(watches)),
		slog.Int("new_matches", totalNew),
		slog.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// pollWatch handles one watch. The returned error is reserved for match
// store failures; page and extraction problems are logged and swallowed so
// the cycle moves on to the next watch.
func (c *Controller) pollWatch(ctx context.Context, w domain.Watch) (matched bool, newCount int, err error) {
	log := c.logger.With(slog.Int64("watch_id", w.ID), slog.Int64("item_id", w.ItemID))

	page, err := c.renderer.EnsureReady(ctx, w.ItemID)
	if err != nil {
		if ctx.Err() != nil {
			return false, 0, ctx.Err()
		}
		log.WarnContext(ctx, "page unavailable, skipping watch", slog.String("error", err.Error()))
		return false, 0, nil
	}

	offers, err := c.extractor.Listings(ctx, page)
	if err != nil {
		if ctx.Err() != nil {
			return false, 0, ctx.Err()
		}
		log.ErrorContext(ctx, "extraction failed, skipping watch", slog.String("error", err.Error()))
		return false, 0, nil
	}

	qualified := match.Qualify(offers, w)
	if len(qualified) == 0 {
		log.DebugContext(ctx, "no qualifying offers", slog.Int("offers", len(offers)))
		return false, 0, nil
	}

	seen, err := c.matches.Fingerprints(ctx)
	if err != nil {
		return true, 0, fmt.Errorf("poller: load match fingerprints: %w", err)
	}

	records := dedup.Reconcile(qualified, w, seen, time.Now().UTC())
	if len(records) == 0 {
		log.DebugContext(ctx, "all qualifying offers already recorded",
			slog.Int("qualified", len(qualified)))
		return true, 0, nil
	}

	if err := c.matches.InsertBatch(ctx, records); err != nil {
		return true, 0, fmt.Errorf("poller: insert match records: %w", err)
	}
	if _, err := c.matches.TruncateToCapacity(ctx, c.cfg.Capacity); err != nil {
		return true, 0, fmt.Errorf("poller: truncate match history: %w", err)
	}

	log.InfoContext(ctx, "new matches recorded",
		slog.Int("count", len(records)),
		slog.Int64("lowest_price", records[0].Price),
	)

	c.publish(ctx, records)
	c.announce(ctx, w, records)
	return true, len(records), nil
}

// matchEvent is the wire shape published per record on the signal bus.
type matchEvent struct {
	Type       string    `json:"type"`
	ObservedAt time.Time `json:"observed_at"`
	ItemID     int64     `json:"item_id"`
	ItemName   string    `json:"item_name"`
	Price      int64     `json:"price"`
	Quantity   int64     `json:"quantity"`
	SellerID   string    `json:"seller_id"`
	SellerName string    `json:"seller_name"`
	BazaarURL  string    `json:"bazaar_url"`
}

// publish emits one event per record. Best effort: a bus outage costs live
// updates, not recorded matches.
func (c *Controller) publish(ctx context.Context, records []domain.MatchRecord) {
	if c.bus == nil {
		return
	}
	for _, r := range records {
		payload, err := json.Marshal(matchEvent{
			Type:       "match",
			ObservedAt: r.ObservedAt,
			ItemID:     r.ItemID,
			ItemName:   r.ItemName,
			Price:      r.Price,
			Quantity:   r.Quantity,
			SellerID:   r.SellerID,
			SellerName: r.SellerName,
			BazaarURL:  r.BazaarURL,
		})
		if err != nil {
			continue
		}
		if err := c.bus.Publish(ctx, MatchesChannel, payload); err != nil {
			c.logger.WarnContext(ctx, "match event publish failed", slog.String("error", err.Error()))
			return
		}
	}
}

// announce sends one consolidated notification for the batch.
func (c *Controller) announce(ctx context.Context, w domain.Watch, records []domain.MatchRecord) {
	if c.notifier == nil {
		return
	}
	lowest := records[0].Price
	for _, r := range records[1:] {
		if r.Price < lowest {
			lowest = r.Price
		}
	}
	err := c.notifier.Notify(ctx, notify.EventMatchFound,
		notify.DealTitle(w.DisplayName()),
		notify.DealMessage(len(records), lowest),
	)
	if err != nil {
		c.logger.WarnContext(ctx, "notification failed", slog.String("error", err.Error()))
	}
}

func (c *Controller) pacingDelay(matched bool) time.Duration {
	if matched {
		return jitterBetween(c.cfg.MatchDelayMin, c.cfg.MatchDelayMax)
	}
	return jitterBetween(c.cfg.EmptyDelayMin, c.cfg.EmptyDelayMax)
}

func jitterBetween(min, max time.Duration) time.Duration {
	if min < 0 {
		min = 0
	}
	if max <= min {
		return min
	}
	return min + rand.N(max-min)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
