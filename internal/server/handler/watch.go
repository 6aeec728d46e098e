package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tw3b/bazaarwatch/internal/domain"
)

// WatchHandler serves the watch CRUD endpoints.
type WatchHandler struct {
	watches domain.WatchStore
	logger  *slog.Logger
}

// NewWatchHandler creates a WatchHandler over the given store.
func NewWatchHandler(watches domain.WatchStore, logger *slog.Logger) *WatchHandler {
	return &WatchHandler{watches: watches, logger: logger}
}

// watchRequest is the create/update payload.
type watchRequest struct {
	ItemID   int64  `json:"item_id"`
	Name     string `json:"name"`
	MaxPrice int64  `json:"max_price"`
	MinQty   int64  `json:"min_qty"`
}

func (req watchRequest) validate() string {
	switch {
	case req.ItemID <= 0:
		return "item_id must be a positive integer"
	case req.MaxPrice <= 0:
		return "max_price must be a positive integer"
	case req.MinQty <= 0:
		return "min_qty must be a positive integer"
	}
	return ""
}

// ListWatches returns all watches in poll order.
// GET /api/watches
func (h *WatchHandler) ListWatches(w http.ResponseWriter, r *http.Request) {
	watches, err := h.watches.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list watches failed",
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list watches")
		return
	}

	out := make([]watchJSON, 0, len(watches))
	for _, watch := range watches {
		out = append(out, toWatchJSON(watch))
	}
	writeJSON(w, http.StatusOK, map[string]any{"watches": out})
}

// CreateWatch adds a watch at the end of the list.
// POST /api/watches
func (h *WatchHandler) CreateWatch(w http.ResponseWriter, r *http.Request) {
	var req watchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	created, err := h.watches.Create(r.Context(), domain.Watch{
		ItemID:   req.ItemID,
		Name:     req.Name,
		MaxPrice: req.MaxPrice,
		MinQty:   req.MinQty,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: create watch failed",
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create watch")
		return
	}
	writeJSON(w, http.StatusCreated, toWatchJSON(created))
}

// UpdateWatch rewrites an existing watch.
// PUT /api/watches/{id}
func (h *WatchHandler) UpdateWatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid watch id")
		return
	}

	var req watchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	err := h.watches.Update(r.Context(), domain.Watch{
		ID:       id,
		ItemID:   req.ItemID,
		Name:     req.Name,
		MaxPrice: req.MaxPrice,
		MinQty:   req.MinQty,
	})
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "watch not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: update watch failed",
			slog.Int64("watch_id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to update watch")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// DeleteWatch removes a watch.
// DELETE /api/watches/{id}
func (h *WatchHandler) DeleteWatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid watch id")
		return
	}

	err := h.watches.Delete(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "watch not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: delete watch failed",
			slog.Int64("watch_id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to delete watch")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
