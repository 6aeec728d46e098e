package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tw3b/bazaarwatch/internal/domain"
	"github.com/tw3b/bazaarwatch/internal/scheduler"
)

// IntervalSetter applies a new poll interval to a running scheduler.
type IntervalSetter interface {
	SetInterval(interval time.Duration)
}

// RetentionSetter applies a new retention window to a running sweeper.
type RetentionSetter interface {
	SetRetention(retain time.Duration)
}

// SettingsHandler serves the runtime settings endpoints. The scheduler and
// sweeper hooks are optional; in monitor mode settings are persisted only.
type SettingsHandler struct {
	settings  domain.SettingsStore
	sched     IntervalSetter
	retention RetentionSetter
	logger    *slog.Logger
}

// NewSettingsHandler creates a SettingsHandler. sched and retention may be nil.
func NewSettingsHandler(settings domain.SettingsStore, sched IntervalSetter, retention RetentionSetter, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, sched: sched, retention: retention, logger: logger}
}

type settingsJSON struct {
	PollIntervalMinutes int `json:"poll_interval_minutes"`
	RetainMinutes       int `json:"retain_minutes"`
}

// GetSettings returns the current persisted settings.
// GET /api/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Get(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get settings failed",
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settingsJSON{
		PollIntervalMinutes: s.PollIntervalMinutes,
		RetainMinutes:       s.RetainMinutes,
	})
}

// UpdateSettings persists new settings and applies them to the running
// scheduler and retention sweeper.
// PUT /api/settings
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsJSON
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PollIntervalMinutes < 1 {
		writeError(w, http.StatusBadRequest, "poll_interval_minutes must be at least 1")
		return
	}
	if req.RetainMinutes < 1 {
		writeError(w, http.StatusBadRequest, "retain_minutes must be at least 1")
		return
	}

	s := domain.Settings{
		PollIntervalMinutes: req.PollIntervalMinutes,
		RetainMinutes:       req.RetainMinutes,
	}
	if err := h.settings.Put(r.Context(), s); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: save settings failed",
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	if h.sched != nil {
		h.sched.SetInterval(scheduler.Clamp(time.Duration(s.PollIntervalMinutes) * time.Minute))
	}
	if h.retention != nil {
		h.retention.SetRetention(time.Duration(s.RetainMinutes) * time.Minute)
	}

	h.logger.InfoContext(r.Context(), "settings updated",
		slog.Int("poll_interval_minutes", s.PollIntervalMinutes),
		slog.Int("retain_minutes", s.RetainMinutes))
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
