package handlers

import (
	"context"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"missionrewards/internal/apperr"
	"missionrewards/internal/models"
	"missionrewards/internal/services"
)

type MissionService interface {
	ListActiveForUser(ctx context.Context, userID int64, asOf time.Time) ([]models.MissionProgressDetail, error)
	GetProgress(ctx context.Context, userID, progressID int64) (*models.MissionProgressDetail, error)
	SubmitProof(ctx context.Context, userID, progressID int64, proof services.Proof) (*services.ProofSubmission, error)
	ListHistory(ctx context.Context, actingUserID, requestedUserID int64, statuses []models.MissionStatus) ([]models.MissionProgressDetail, error)
}

type MissionHandler struct {
	missions MissionService
	logger   *zap.Logger
	now      func() time.Time
}

func NewMissionHandler(missions MissionService, logger *zap.Logger) *MissionHandler {
	return &MissionHandler{missions: missions, logger: logger, now: time.Now}
}

const progressNotFound = "User mission not found or does not belong to you."

// Active lists today's missions for the caller.
// Accepts optional query param: date=YYYY-MM-DD to use instead of today (UTC).
func (h *MissionHandler) Active(w http.ResponseWriter, r *http.Request) {
	asOf := h.now().UTC()
	if ds := r.URL.Query().Get("date"); ds != "" {
		d, err := time.Parse("2006-01-02", ds)
		if err != nil {
			writeError(w, r, h.logger, apperr.Field("date", "The date does not match the format Y-m-d."))
			return
		}
		asOf = d
	}

	list, err := h.missions.ListActiveForUser(r.Context(), currentUser(r), asOf)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Active missions retrieved successfully.",
		"date":     asOf.Format("2006-01-02"),
		"missions": toMissionProgressDTOs(list),
	})
}

func (h *MissionHandler) Progress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", progressNotFound)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	d, err := h.missions.GetProgress(r.Context(), currentUser(r), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":          "Mission progress retrieved successfully.",
		"mission_progress": ToMissionProgressDTO(*d),
	})
}

type proofURLRequest struct {
	ProofURL string `json:"proof_url" validate:"required,url,max=2048"`
}

// SubmitProof accepts a multipart "proof" file, or a "proof_url" given as a
// form field or JSON.
func (h *MissionHandler) SubmitProof(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", progressNotFound)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	proof, err := h.readProof(w, r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.missions.SubmitProof(r.Context(), currentUser(r), id, proof)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Mission proof submitted successfully and is awaiting review.",
		"user_mission": ToUserMissionDTO(res.Progress),
		"proof_url":    res.ProofURL,
	})
}

func (h *MissionHandler) readProof(w http.ResponseWriter, r *http.Request) (services.Proof, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		data, contentType, err := readUpload(w, r, "proof", services.MaxProofSize)
		if err != nil {
			return services.Proof{}, err
		}
		if data != nil {
			return services.Proof{Data: data, ContentType: contentType}, nil
		}
		return services.Proof{URL: r.FormValue("proof_url")}, nil
	case "application/json":
		var req proofURLRequest
		if err := decodeJSON(r, &req); err != nil {
			return services.Proof{}, err
		}
		if err := validateStruct(req); err != nil {
			return services.Proof{}, err
		}
		return services.Proof{URL: req.ProofURL}, nil
	default:
		return services.Proof{URL: r.FormValue("proof_url")}, nil
	}
}

// History lists a user's missions, newest first. Repeated or comma separated
// status params filter by status.
func (h *MissionHandler) History(w http.ResponseWriter, r *http.Request) {
	requested, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		writeError(w, r, h.logger, apperr.Forbidden("You are not allowed to view another user's mission history."))
		return
	}

	var statuses []models.MissionStatus
	for _, raw := range r.URL.Query()["status"] {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, models.MissionStatus(s))
			}
		}
	}

	list, err := h.missions.ListHistory(r.Context(), currentUser(r), requested, statuses)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Mission history retrieved successfully.",
		"missions": toMissionProgressDTOs(list),
	})
}
