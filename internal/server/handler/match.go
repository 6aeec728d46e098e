package handler

import (
	"log/slog"
	"net/http"

	"github.com/tw3b/bazaarwatch/internal/domain"
)

// MatchHandler serves the match history endpoints.
type MatchHandler struct {
	matches domain.MatchStore
	logger  *slog.Logger
}

// NewMatchHandler creates a MatchHandler over the given store.
func NewMatchHandler(matches domain.MatchStore, logger *slog.Logger) *MatchHandler {
	return &MatchHandler{matches: matches, logger: logger}
}

// ListMatches returns recorded matches, newest first.
// GET /api/matches?limit=200
func (h *MatchHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 200, 500)

	records, err := h.matches.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list matches failed",
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list matches")
		return
	}
	total, err := h.matches.Count(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: count matches failed",
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to count matches")
		return
	}

	out := make([]matchJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, toMatchJSON(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"matches": out,
		"total":   total,
		"limit":   limit,
	})
}

// ClearMatches wipes the match history.
// POST /api/matches/clear
func (h *MatchHandler) ClearMatches(w http.ResponseWriter, r *http.Request) {
	if err := h.matches.Clear(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: clear matches failed",
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to clear matches")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
