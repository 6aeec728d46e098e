package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tw3b/bazaarwatch/internal/server/handler"
	"github.com/tw3b/bazaarwatch/internal/server/middleware"
	"github.com/tw3b/bazaarwatch/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
}

// Handlers aggregates the HTTP handlers the server registers. Nil handlers
// are skipped, so monitor mode can run with only the read-side endpoints.
type Handlers struct {
	Health   *handler.HealthHandler
	Watches  *handler.WatchHandler
	Matches  *handler.MatchHandler
	Poll     *handler.PollHandler
	Settings *handler.SettingsHandler
	Scan     *handler.ScanHandler
}

// Server is the headless HTTP + WebSocket API for the bazaar watcher.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer registers all routes on a ServeMux and wraps it in the logging
// and CORS middleware. The WebSocket hub is optional.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	if handlers.Health != nil {
		mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	}

	if handlers.Watches != nil {
		mux.HandleFunc("GET /api/watches", handlers.Watches.ListWatches)
		mux.HandleFunc("POST /api/watches", handlers.Watches.CreateWatch)
		mux.HandleFunc("PUT /api/watches/{id}", handlers.Watches.UpdateWatch)
		mux.HandleFunc("DELETE /api/watches/{id}", handlers.Watches.DeleteWatch)
	}

	if handlers.Matches != nil {
		mux.HandleFunc("GET /api/matches", handlers.Matches.ListMatches)
		mux.HandleFunc("POST /api/matches/clear", handlers.Matches.ClearMatches)
	}

	if handlers.Poll != nil {
		mux.HandleFunc("POST /api/poll/trigger", handlers.Poll.TriggerPoll)
	}

	if handlers.Settings != nil {
		mux.HandleFunc("GET /api/settings", handlers.Settings.GetSettings)
		mux.HandleFunc("PUT /api/settings", handlers.Settings.UpdateSettings)
	}

	if handlers.Scan != nil {
		mux.HandleFunc("POST /api/scan", handlers.Scan.RunScan)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     h,
		ReadTimeout: 15 * time.Second,
		// Deep scans hold the response open while items render one by one.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests to
// finish within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
