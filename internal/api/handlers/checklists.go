package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/c21-japan/homemart-sub002/internal/notify"
	"github.com/c21-japan/homemart-sub002/pkg/logger"
)

// CompletionNotifier mails the checklist completion notice
type CompletionNotifier interface {
	ChecklistCompleted(ctx context.Context, checklistID uuid.UUID) (bool, error)
}

// ChecklistHandler serves checklist events raised by staff screens
type ChecklistHandler struct {
	notifier CompletionNotifier
	logger   *logger.Logger
}

// NewChecklistHandler creates a new checklist handler
func NewChecklistHandler(notifier CompletionNotifier, log *logger.Logger) *ChecklistHandler {
	return &ChecklistHandler{notifier: notifier, logger: log}
}

// Completed notifies the office once a checklist reaches 100%.
// POST /api/checklists/{id}/completed
func (h *ChecklistHandler) Completed(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	sent, err := h.notifier.ChecklistCompleted(r.Context(), id)
	switch {
	case errors.Is(err, notify.ErrChecklistNotFound):
		respondError(w, http.StatusNotFound, "checklist not found")
		return
	case err != nil:
		h.logger.WithError(err).WithField("checklist_id", id.String()).Error("Completion notification failed")
		respondError(w, http.StatusBadGateway, "通知の送信に失敗しました")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"notified": sent,
	})
}
