package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"missionrewards/internal/apperr"
	"missionrewards/internal/auth"
	"missionrewards/internal/crypto"
	"missionrewards/internal/models"
	"missionrewards/internal/storage"
)

const userColumns = `id, username, email, password_hash, phone_number, birth_date, points, profile_picture, is_admin, created_at, updated_at`

const (
	dateLayout         = "2006-01-02"
	maxPictureSize     = 10 << 20
	uniqueViolation    = "23505"
	usersEmailKey      = "users_email_key"
	usersUsernameKey   = "users_username_key"
	invalidCredentials = "Invalid login credentials."
)

var pictureContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

// AccountService handles registration, sessions and profile changes.
type AccountService struct {
	db      *sqlx.DB
	tracker *MissionTracker
	tokens  *auth.Tokens
	store   storage.Store
	logger  *zap.Logger
}

func NewAccountService(db *sqlx.DB, tracker *MissionTracker, tokens *auth.Tokens, store storage.Store, logger *zap.Logger) *AccountService {
	return &AccountService{db: db, tracker: tracker, tokens: tokens, store: store, logger: logger}
}

type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	PhoneNumber string
	BirthDate   string // YYYY-MM-DD or RFC3339
}

// ProfileUpdate holds optional changes. A nil field is left untouched and an
// empty BirthDate clears it.
type ProfileUpdate struct {
	Username    *string
	Email       *string
	PhoneNumber *string
	BirthDate   *string
}

// AuthResult is a user with a freshly issued bearer token.
type AuthResult struct {
	User      models.User
	Token     string
	ExpiresAt time.Time
}

// Usernames never contain "@" so they cannot be mistaken for an email at
// login.
const usernameAtMessage = "The username may not contain the @ character."

// Register creates the user, assigns every mission and opens a session in a
// single transaction.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)

	if strings.Contains(in.Username, "@") {
		return nil, apperr.Field("username", usernameAtMessage)
	}
	birth, err := parseDate(in.BirthDate)
	if err != nil {
		return nil, apperr.Field("birth_date", "The birth date is not a valid date.")
	}

	hash, err := crypto.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Unexpected("could not hash password", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperr.Unexpected("could not start transaction", err)
	}
	defer tx.Rollback()

	var u models.User
	err = tx.QueryRowxContext(ctx, `INSERT INTO users (username, email, password_hash, phone_number, birth_date, points)
		VALUES ($1, $2, $3, $4, $5, 0)
		RETURNING `+userColumns,
		in.Username, in.Email, hash, in.PhoneNumber, birth).StructScan(&u)
	if err != nil {
		if verr := uniqueFieldError(err); verr != nil {
			return nil, verr
		}
		return nil, apperr.Unexpected("could not create user", err)
	}

	assigned, err := s.tracker.InitializeForNewUser(ctx, tx, u.ID)
	if err != nil {
		return nil, err
	}

	token, exp, err := s.openSession(ctx, tx, u.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Unexpected("could not commit registration", err)
	}

	s.logger.Info("user registered",
		zap.Int64("user_id", u.ID),
		zap.Int64("missions_assigned", assigned),
	)
	return &AuthResult{User: u, Token: token, ExpiresAt: exp}, nil
}

// Login checks credentials by email or username, revokes the user's other
// sessions and opens a new one. An email match wins over a username that
// happens to equal it.
func (s *AccountService) Login(ctx context.Context, identity, password string) (*AuthResult, error) {
	identity = strings.TrimSpace(identity)
	var u models.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = $1 OR username = $2
		ORDER BY (email = $1) DESC LIMIT 1`,
		strings.ToLower(identity), identity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.Unauthorized(invalidCredentials)
		}
		return nil, apperr.Unexpected("could not load user", err)
	}
	if !crypto.CheckPassword(u.PasswordHash, password) {
		return nil, apperr.Unauthorized(invalidCredentials)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperr.Unexpected("could not start transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`, u.ID); err != nil {
		return nil, apperr.Unexpected("could not revoke sessions", err)
	}
	token, exp, err := s.openSession(ctx, tx, u.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.Unexpected("could not commit login", err)
	}

	s.logger.Info("user logged in", zap.Int64("user_id", u.ID))
	return &AuthResult{User: u, Token: token, ExpiresAt: exp}, nil
}

// Logout revokes one session. Revoking an already revoked session is a no-op.
func (s *AccountService) Logout(ctx context.Context, userID int64, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET revoked_at = NOW()
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL`, sessionID, userID)
	if err != nil {
		return apperr.Unexpected("could not revoke session", err)
	}
	return nil
}

// SessionActive reports whether the session exists, belongs to userID and
// is neither revoked nor expired.
func (s *AccountService) SessionActive(ctx context.Context, userID int64, sessionID string) (bool, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return false, nil
	}
	var active bool
	err := s.db.GetContext(ctx, &active, `SELECT EXISTS (
		SELECT 1 FROM sessions
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL AND expires_at > NOW()
	)`, sessionID, userID)
	if err != nil {
		return false, fmt.Errorf("check session: %w", err)
	}
	return active, nil
}

func (s *AccountService) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var u models.User
	if err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("User not found.")
		}
		return nil, apperr.Unexpected("could not load user", err)
	}
	return &u, nil
}

// UpdateProfile applies the non-nil fields of p.
func (s *AccountService) UpdateProfile(ctx context.Context, userID int64, p ProfileUpdate) (*models.User, error) {
	setClauses := []string{}
	args := []interface{}{}
	fields := map[string]string{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s=$%d", column, len(args)))
	}

	if p.Username != nil {
		v := strings.TrimSpace(*p.Username)
		if v == "" || len(v) > 255 {
			fields["username"] = "The username must be between 1 and 255 characters."
		} else if strings.Contains(v, "@") {
			fields["username"] = usernameAtMessage
		}
		add("username", v)
	}
	if p.Email != nil {
		v := strings.ToLower(strings.TrimSpace(*p.Email))
		if _, err := mail.ParseAddress(v); err != nil || len(v) > 255 {
			fields["email"] = "The email must be a valid email address."
		}
		add("email", v)
	}
	if p.PhoneNumber != nil {
		v := strings.TrimSpace(*p.PhoneNumber)
		if v == "" || len(v) > 20 {
			fields["phone_number"] = "The phone number must be between 1 and 20 characters."
		}
		add("phone_number", v)
	}
	if p.BirthDate != nil {
		v := strings.TrimSpace(*p.BirthDate)
		if v == "" {
			setClauses = append(setClauses, "birth_date=NULL")
		} else if d, err := parseDate(v); err != nil {
			fields["birth_date"] = "The birth date is not a valid date."
		} else {
			add("birth_date", d)
		}
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("The given data was invalid.", fields)
	}
	if len(setClauses) == 0 {
		return s.GetUser(ctx, userID)
	}

	args = append(args, userID)
	query := fmt.Sprintf(`UPDATE users SET %s, updated_at=NOW() WHERE id=$%d RETURNING %s`,
		strings.Join(setClauses, ", "), len(args), userColumns)

	var u models.User
	if err := s.db.QueryRowxContext(ctx, query, args...).StructScan(&u); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("User not found.")
		}
		if verr := uniqueFieldError(err); verr != nil {
			return nil, verr
		}
		return nil, apperr.Unexpected("could not update profile", err)
	}
	return &u, nil
}

// SetProfilePicture stores a new avatar and replaces the old one.
func (s *AccountService) SetProfilePicture(ctx context.Context, userID int64, data []byte, contentType string) (*models.User, error) {
	contentType = (Proof{ContentType: contentType}).normalize().ContentType
	switch {
	case len(data) == 0:
		return nil, apperr.Field("picture", "The picture field is required.")
	case len(data) > maxPictureSize:
		return nil, apperr.Field("picture", fmt.Sprintf("The picture may not be greater than %d kilobytes.", maxPictureSize>>10))
	case !pictureContentTypes[contentType]:
		return nil, apperr.Field("picture", "The picture must be a file of type: jpeg, png, jpg.")
	}

	current, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	url, err := s.store.Put(ctx, fmt.Sprintf("avatars/%d", userID), data, contentType)
	if err != nil {
		return nil, apperr.Upstream("Could not store profile picture.", err)
	}

	var u models.User
	err = s.db.QueryRowxContext(ctx, `UPDATE users SET profile_picture=$1, updated_at=NOW() WHERE id=$2 RETURNING `+userColumns,
		url, userID).StructScan(&u)
	if err != nil {
		deleteDetached(ctx, s.store, s.logger, url)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("User not found.")
		}
		return nil, apperr.Unexpected("could not save profile picture", err)
	}

	if current.ProfilePicture != nil && *current.ProfilePicture != "" {
		deleteDetached(ctx, s.store, s.logger, *current.ProfilePicture)
	}
	return &u, nil
}

func (s *AccountService) openSession(ctx context.Context, ex sqlx.ExecerContext, userID int64) (string, time.Time, error) {
	sessionID := uuid.NewString()
	token, exp, err := s.tokens.Issue(userID, sessionID)
	if err != nil {
		return "", time.Time{}, apperr.Unexpected("could not issue token", err)
	}
	if _, err := ex.ExecContext(ctx, `INSERT INTO sessions (id, user_id, expires_at) VALUES ($1, $2, $3)`,
		sessionID, userID, exp); err != nil {
		return "", time.Time{}, apperr.Unexpected("could not open session", err)
	}
	return token, exp, nil
}

// parseDate accepts a calendar date or an RFC3339 timestamp and keeps only
// the date part.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(dateLayout, s); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// uniqueFieldError maps a unique violation on users to a field error.
func uniqueFieldError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case usersEmailKey:
		return apperr.Field("email", "The email has already been taken.")
	case usersUsernameKey:
		return apperr.Field("username", "The username has already been taken.")
	}
	return nil
}
