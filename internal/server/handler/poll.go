package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tw3b/bazaarwatch/internal/domain"
)

// PollTrigger is the slice of the scheduler the poll handler needs.
type PollTrigger interface {
	ForcePoll(ctx context.Context) error
}

// PollHandler serves the manual poll trigger.
type PollHandler struct {
	trigger PollTrigger
	logger  *slog.Logger
}

// NewPollHandler creates a PollHandler over the given trigger.
func NewPollHandler(trigger PollTrigger, logger *slog.Logger) *PollHandler {
	return &PollHandler{trigger: trigger, logger: logger}
}

// TriggerPoll runs a poll cycle now.
// POST /api/poll/trigger
func (h *PollHandler) TriggerPoll(w http.ResponseWriter, r *http.Request) {
	err := h.trigger.ForcePoll(r.Context())
	switch {
	case errors.Is(err, domain.ErrCycleInProgress):
		writeJSON(w, http.StatusAccepted, map[string]any{
			"ok":     true,
			"detail": "poll cycle already running",
		})
	case err != nil:
		h.logger.ErrorContext(r.Context(), "handler: forced poll failed",
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "poll cycle failed")
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}
