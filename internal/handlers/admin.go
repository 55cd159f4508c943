package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"missionrewards/internal/apperr"
	"missionrewards/internal/models"
	"missionrewards/internal/services"
)

type ReviewService interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
	ListPending(ctx context.Context) ([]models.MissionProgressDetail, error)
	Approve(ctx context.Context, progressID int64) (*services.ReviewResult, error)
	Reject(ctx context.Context, progressID int64) (*services.ReviewResult, error)
	Overview(ctx context.Context) (*services.Overview, error)
}

type AdminHandler struct {
	review ReviewService
	logger *zap.Logger
}

func NewAdminHandler(review ReviewService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{review: review, logger: logger}
}

// mustBeAdmin checks the current user is admin
func (h *AdminHandler) mustBeAdmin(r *http.Request) error {
	ok, err := h.review.IsAdmin(r.Context(), currentUser(r))
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("This action is restricted to administrators.")
	}
	return nil
}

// Overview godoc
// @Summary Get admin overview
// @Description Returns platform counters (admin only)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.Overview
// @Failure 403 {object} errorResponse
// @Router /admin/overview [get]
func (h *AdminHandler) Overview(w http.ResponseWriter, r *http.Request) {
	if err := h.mustBeAdmin(r); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out, err := h.review.Overview(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Pending lists proofs awaiting review, oldest first.
func (h *AdminHandler) Pending(w http.ResponseWriter, r *http.Request) {
	if err := h.mustBeAdmin(r); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	list, err := h.review.ListPending(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Pending proofs retrieved successfully.",
		"user_missions": toMissionProgressDTOs(list),
	})
}

func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.review.Approve, "Mission proof approved and points credited.")
}

func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.review.Reject, "Mission proof rejected.")
}

func (h *AdminHandler) decide(w http.ResponseWriter, r *http.Request,
	fn func(context.Context, int64) (*services.ReviewResult, error), message string) {
	if err := h.mustBeAdmin(r); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := pathID(r, "id", "User mission not found.")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := fn(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": message,
		"review":  res,
	})
}
