package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	mw "missionrewards/internal/middleware"
	"missionrewards/internal/models"
	"missionrewards/internal/services"
)

// Accounts is the account and session service the auth and user handlers
// depend on.
type Accounts interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error)
	Login(ctx context.Context, identity, password string) (*services.AuthResult, error)
	Logout(ctx context.Context, userID int64, sessionID string) error
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	UpdateProfile(ctx context.Context, userID int64, p services.ProfileUpdate) (*models.User, error)
	SetProfilePicture(ctx context.Context, userID int64, data []byte, contentType string) (*models.User, error)
}

type AuthHandler struct {
	accounts Accounts
	logger   *zap.Logger
}

func NewAuthHandler(accounts Accounts, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, logger: logger}
}

type registerRequest struct {
	Username             string `json:"username" validate:"required,max=255,excludes=@"`
	Email                string `json:"email" validate:"required,email,max=255"`
	Password             string `json:"password" validate:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
	PhoneNumber          string `json:"phone_number" validate:"required,max=20"`
	BirthDate            string `json:"birth_date" validate:"required"`
}

type loginRequest struct {
	Identity string `json:"identity" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Message     string  `json:"message"`
	User        UserDTO `json:"user"`
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
	ExpiresAt   string  `json:"expires_at"`
}

func newAuthResponse(message string, res *services.AuthResult) authResponse {
	return authResponse{
		Message:     message,
		User:        ToUserDTO(res.User),
		AccessToken: res.Token,
		TokenType:   "Bearer",
		ExpiresAt:   res.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

// Register godoc
// @Summary Register a new user
// @Description Creates the account, assigns every mission and returns a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param body body registerRequest true "Registration data"
// @Success 201 {object} authResponse
// @Failure 422 {object} errorResponse
// @Router /register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.accounts.Register(r.Context(), services.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
		BirthDate:   req.BirthDate,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAuthResponse("User registered successfully and missions assigned.", res))
}

// Login godoc
// @Summary Log in
// @Description Accepts an email or username; previous sessions are revoked
// @Tags auth
// @Accept json
// @Produce json
// @Param body body loginRequest true "Credentials"
// @Success 200 {object} authResponse
// @Failure 401 {object} errorResponse
// @Router /login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.accounts.Login(r.Context(), req.Identity, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newAuthResponse("User logged in successfully.", res))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Logout(r.Context(), currentUser(r), mw.SessionID(r.Context())); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully logged out."})
}
