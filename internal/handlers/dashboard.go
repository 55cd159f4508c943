package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"missionrewards/internal/services"
)

type SummaryService interface {
	Summary(ctx context.Context, userID int64) (*services.Summary, error)
}

type DashboardHandler struct {
	dashboard SummaryService
	logger    *zap.Logger
}

func NewDashboardHandler(dashboard SummaryService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, logger: logger}
}

// Get returns the caller's balance with mission and redemption counters.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.dashboard.Summary(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Summary retrieved successfully.",
		"summary": s,
	})
}
