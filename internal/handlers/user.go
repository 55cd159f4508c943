package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"missionrewards/internal/apperr"
	"missionrewards/internal/services"
)

const maxPictureUpload = 10 << 20

type UserHandler struct {
	accounts Accounts
	logger   *zap.Logger
}

func NewUserHandler(accounts Accounts, logger *zap.Logger) *UserHandler {
	return &UserHandler{accounts: accounts, logger: logger}
}

// GetMe returns the current user's profile
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.accounts.GetUser(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User retrieved successfully.",
		"user":    ToUserDTO(*u),
	})
}

type updateProfileRequest struct {
	Username    *string         `json:"username" validate:"omitempty,max=255,excludes=@"`
	Email       *string         `json:"email" validate:"omitempty,email,max=255"`
	PhoneNumber *string         `json:"phone_number" validate:"omitempty,max=20"`
	BirthDate   json.RawMessage `json:"birth_date"` // YYYY-MM-DD, null clears
}

// UpdateProfile updates provided fields on the current user's profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var body updateProfileRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := validateStruct(body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	patch := services.ProfileUpdate{
		Username:    body.Username,
		Email:       body.Email,
		PhoneNumber: body.PhoneNumber,
	}
	if len(body.BirthDate) > 0 {
		birth := ""
		if !bytes.Equal(body.BirthDate, []byte("null")) {
			if err := json.Unmarshal(body.BirthDate, &birth); err != nil || birth == "" {
				writeError(w, r, h.logger, apperr.Field("birth_date", "The birth date is not a valid date."))
				return
			}
		}
		patch.BirthDate = &birth
	}

	u, err := h.accounts.UpdateProfile(r.Context(), currentUser(r), patch)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully.",
		"user":    ToUserDTO(*u),
	})
}

// UploadPicture replaces the profile picture with the multipart field "picture".
func (h *UserHandler) UploadPicture(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := readUpload(w, r, "picture", maxPictureUpload)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if data == nil {
		writeError(w, r, h.logger, apperr.Field("picture", "The picture field is required."))
		return
	}

	u, err := h.accounts.SetProfilePicture(r.Context(), currentUser(r), data, contentType)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile picture updated successfully.",
		"user":    ToUserDTO(*u),
	})
}
