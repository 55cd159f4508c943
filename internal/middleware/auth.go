package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"missionrewards/internal/auth"
)

type ctxKey int

const (
	userIDKey ctxKey = iota
	sessionIDKey
	identitySlotKey
)

// identity lets the request logger see who was authenticated further down
// the chain.
type identity struct {
	userID int64
}

func withIdentitySlot(ctx context.Context, id *identity) context.Context {
	return context.WithValue(ctx, identitySlotKey, id)
}

// SessionChecker reports whether a session is still usable.
type SessionChecker interface {
	SessionActive(ctx context.Context, userID int64, sessionID string) (bool, error)
}

type AuthMiddleware struct {
	tokens   *auth.Tokens
	sessions SessionChecker
	logger   *zap.Logger
}

func NewAuthMiddleware(tokens *auth.Tokens, sessions SessionChecker, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, sessions: sessions, logger: logger}
}

// RequireAuth accepts a bearer token whose session has not been revoked and
// stores the caller's identity in the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		if !strings.HasPrefix(authz, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}
		claims, err := m.tokens.Parse(strings.TrimSpace(strings.TrimPrefix(authz, "Bearer ")))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}
		active, err := m.sessions.SessionActive(r.Context(), claims.UserID, claims.SessionID)
		if err != nil {
			m.logger.Error("session lookup failed", zap.Int64("user_id", claims.UserID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Something went wrong.")
			return
		}
		if !active {
			writeError(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims.UserID, claims.SessionID)))
	})
}

// WithIdentity returns ctx carrying the authenticated user and session.
func WithIdentity(ctx context.Context, userID int64, sessionID string) context.Context {
	if slot, ok := ctx.Value(identitySlotKey).(*identity); ok {
		slot.userID = userID
	}
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// UserID returns the authenticated user's id, if any.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
