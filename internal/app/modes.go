package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tw3b/bazaarwatch/internal/extract"
	"github.com/tw3b/bazaarwatch/internal/poller"
	"github.com/tw3b/bazaarwatch/internal/render"
	"github.com/tw3b/bazaarwatch/internal/retention"
	"github.com/tw3b/bazaarwatch/internal/scan"
	"github.com/tw3b/bazaarwatch/internal/scheduler"
	"github.com/tw3b/bazaarwatch/internal/server"
	"github.com/tw3b/bazaarwatch/internal/server/handler"
	"github.com/tw3b/bazaarwatch/internal/server/ws"
)

// watcherStack bundles the long-running pieces of the poll loop so the modes
// can start them and hand the control surfaces to HTTP handlers.
type watcherStack struct {
	renderer *render.HTTPRenderer
	sched    *scheduler.Scheduler
	sweeper  *retention.Sweeper
}

// buildWatcherStack assembles the renderer, extractor, poll controller,
// scheduler, and retention sweeper. Persisted settings override the
// configured interval and retention when present.
func (a *App) buildWatcherStack(ctx context.Context, deps *Dependencies) *watcherStack {
	cfg := a.cfg.Watcher

	renderer := render.NewHTTPRenderer(cfg.BaseURL, cfg.PageLoadTimeout.Duration, a.logger)
	extractor := extract.New(cfg.ReadyPollInterval.Duration, cfg.ReadyTimeout.Duration)

	controller := poller.NewController(
		deps.Watches,
		deps.Matches,
		renderer,
		extractor,
		deps.Notifier,
		deps.Bus,
		deps.Locks,
		poller.Config{
			Capacity:      cfg.MatchCapacity,
			EmptyDelayMin: cfg.EmptyDelayMin.Duration,
			EmptyDelayMax: cfg.EmptyDelayMax.Duration,
			MatchDelayMin: cfg.MatchDelayMin.Duration,
			MatchDelayMax: cfg.MatchDelayMax.Duration,
			LockTTL:       cfg.LockTTL.Duration,
		},
		a.logger,
	)

	interval := time.Duration(cfg.PollIntervalMinutes) * time.Minute
	retain := time.Duration(a.cfg.Retention.RetainMinutes) * time.Minute
	if s, err := deps.Settings.Get(ctx); err != nil {
		a.logger.WarnContext(ctx, "failed to load persisted settings, using config values",
			slog.String("error", err.Error()))
	} else {
		interval = time.Duration(s.PollIntervalMinutes) * time.Minute
		retain = time.Duration(s.RetainMinutes) * time.Minute
	}

	sched := scheduler.New(controller.RunCycle, interval, a.logger)
	sweeper := retention.NewSweeper(
		deps.Matches,
		deps.Blobs,
		retain,
		a.cfg.Retention.SweepInterval.Duration,
		a.logger,
	)

	return &watcherStack{
		renderer: renderer,
		sched:    sched,
		sweeper:  sweeper,
	}
}

// WatchMode runs the watcher: recurring poll cycles, the retention sweep,
// and (unless disabled) the full HTTP API with the WebSocket match feed.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watch mode")

	g, ctx := errgroup.WithContext(ctx)

	stack := a.buildWatcherStack(ctx, deps)
	g.Go(func() error { return stack.sched.Run(ctx) })
	g.Go(func() error { return stack.sweeper.Run(ctx) })

	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "http server disabled, running headless")
		return g.Wait()
	}

	hub := ws.NewHub(deps.Bus, a.cfg.Mode, a.logger)
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	// The deep scan shares the page renderer with the poll loop but gets its
	// own extractor: scans tolerate a longer readiness wait.
	scanner := scan.NewScanner(
		stack.renderer,
		extract.New(a.cfg.Watcher.ReadyPollInterval.Duration, a.cfg.Scan.ReadyTimeout.Duration),
		a.logger,
	)

	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(a.logger),
		Watches:  handler.NewWatchHandler(deps.Watches, a.logger),
		Matches:  handler.NewMatchHandler(deps.Matches, a.logger),
		Poll:     handler.NewPollHandler(stack.sched, a.logger),
		Settings: handler.NewSettingsHandler(deps.Settings, stack.sched, stack.sweeper, a.logger),
		Scan: handler.NewScanHandler(scanner, deps.Catalog, handler.ScanDefaults{
			RowsPerItem: a.cfg.Scan.RowsPerItem,
			MaxVsMarket: a.cfg.Scan.MaxVsMarket,
			Delay:       a.cfg.Scan.Delay.Duration,
			Jitter:      a.cfg.Scan.Jitter.Duration,
		}, a.logger),
	}
	a.startHTTPServer(ctx, g, handlers, hub)

	return g.Wait()
}

// MonitorMode serves the read-side HTTP API and the WebSocket match feed
// without running poll cycles. Useful next to a watch-mode instance sharing
// the same database and Redis.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(deps.Bus, a.cfg.Mode, a.logger)
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.logger),
		Watches: handler.NewWatchHandler(deps.Watches, a.logger),
		Matches: handler.NewMatchHandler(deps.Matches, a.logger),
		// No scheduler or sweeper here; settings changes are persisted and
		// picked up by the watch-mode instance on restart.
		Settings: handler.NewSettingsHandler(deps.Settings, nil, nil, a.logger),
	}
	a.startHTTPServer(ctx, g, handlers, hub)

	return g.Wait()
}

// FullMode is an alias of WatchMode kept for deployment config parity.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	return a.WatchMode(ctx, deps)
}

// startHTTPServer adds the HTTP server goroutine plus a shutdown watcher to
// the errgroup.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, handlers server.Handlers, hub *ws.Hub) {
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, handlers, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
