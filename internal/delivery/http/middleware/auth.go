package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	h "merchpos/internal/delivery/http/helpers"
	"merchpos/internal/domain"
)

type contextKey string

const (
	userIDKey    contextKey = "userID"
	userKey      contextKey = "user"
	requestIDKey contextKey = "requestID"
)

// AdminKeyHeader carries the maintenance key checked by RequireAdminKey.
const AdminKeyHeader = "X-Admin-Key"

// SetUserID returns a context with the user ID set. Used by auth middleware.
func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated user ID from the context, if present.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}

// SetUser returns a context carrying the loaded user and its ID.
func SetUser(ctx context.Context, user *domain.User) context.Context {
	ctx = SetUserID(ctx, user.ID)
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user loaded by RequireRole, if present.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(userKey).(*domain.User)
	return u, ok && u != nil
}

// RequireAuth returns a wrapper that validates the Bearer token and sets the user ID in the request context.
// If the token is missing or invalid, it responds with 401 and does not call next.
func RequireAuth(verifier domain.TokenVerifier, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "missing authorization header")
				return
			}
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) {
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "invalid authorization format")
				return
			}
			token := strings.TrimSpace(auth[len(prefix):])
			if token == "" {
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "missing token")
				return
			}
			userID, err := verifier.Verify(token)
			if err != nil {
				logger.DebugContext(r.Context(), "token rejected", "err", err)
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "invalid or expired token")
				return
			}
			r = r.WithContext(SetUserID(r.Context(), userID))
			next(w, r)
		}
	}
}

// UserLoader loads the account behind an authenticated user ID.
type UserLoader interface {
	Me(ctx context.Context, userID string) (*domain.User, error)
}

// RequireRole returns a wrapper that loads the authenticated user and requires an
// active account whose role is at least minRole. It must run after RequireAuth.
// The role is read from storage rather than the token so approvals and deletions apply immediately.
func RequireRole(users UserLoader, minRole string, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok || userID == "" {
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
				return
			}
			user, err := users.Me(r.Context(), userID)
			if err != nil {
				if errors.Is(err, domain.ErrUserNotFound) {
					h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "account no longer exists")
					return
				}
				logger.ErrorContext(r.Context(), "load user", "path", r.URL.Path, "method", r.Method, "err", err)
				h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, "failed to load user")
				return
			}
			if !user.IsActive() {
				h.WriteJSONError(w, http.StatusForbidden, h.ErrCodeForbidden, "account is pending approval")
				return
			}
			if !domain.RoleAtLeast(user.Role, minRole) {
				h.WriteJSONError(w, http.StatusForbidden, h.ErrCodeForbidden, "requires "+minRole+" role")
				return
			}
			next(w, r.WithContext(SetUser(r.Context(), user)))
		}
	}
}

// RequireAdminKey returns a wrapper that checks the X-Admin-Key header against key.
// An empty key disables the wrapped endpoint.
func RequireAdminKey(key string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				h.WriteJSONError(w, http.StatusForbidden, h.ErrCodeForbidden, "maintenance endpoints are disabled")
				return
			}
			got := r.Header.Get(AdminKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "invalid admin key")
				return
			}
			next(w, r)
		}
	}
}
