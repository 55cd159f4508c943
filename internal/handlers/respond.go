package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"missionrewards/internal/apperr"
	mw "missionrewards/internal/middleware"
)

type errorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
	Details map[string]any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindInsufficientPoints, apperr.KindInvalidState:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as the JSON error body. Unclassified errors are
// logged and hidden behind a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Unexpected("unclassified error", err)
	}
	status := statusFor(ae.Kind)
	body := errorResponse{Message: ae.Message, Errors: ae.Fields, Details: ae.Details}

	switch ae.Kind {
	case apperr.KindUnexpected:
		body.Message = "Something went wrong."
		fallthrough
	case apperr.KindUpstream:
		logger.Error("request failed",
			zap.String("kind", ae.Kind.String()),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a JSON body into v.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("The request body is empty.", nil)
		}
		return apperr.Validation("The request body is not valid JSON.", nil)
	}
	return nil
}

// currentUser returns the authenticated user's id. Routes using it sit
// behind RequireAuth.
func currentUser(r *http.Request) int64 {
	id, _ := mw.UserID(r.Context())
	return id
}

// pathID parses a positive integer URL parameter. Anything else reads as a
// missing resource.
func pathID(r *http.Request, name, notFound string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.NotFound(notFound)
	}
	return id, nil
}
