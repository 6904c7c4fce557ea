package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/medibook/appointment-booking/internal/user"
	"github.com/medibook/appointment-booking/pkg/logging"
)

type contextKey string

const (
	requestIDKey   contextKey = "request_id"
	currentUserKey contextKey = "current_user"
)

// RequestIDMiddleware adds a unique request ID to each request context
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware logs each request with method, path, status,
// duration and request ID.
func LoggingMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration", time.Since(start).String(),
				"request_id", GetRequestID(r.Context()),
			)
		})
	}
}

// IdentityMiddleware resolves the caller from the X-User-ID header set
// by the auth gateway and stores the user in the request context.
// Token issuance and verification live outside this service.
func IdentityMiddleware(users user.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("X-User-ID")
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid_user_id", "X-User-ID must be a valid UUID")
				return
			}

			u, err := users.GetByID(r.Context(), id)
			if err != nil {
				if errors.Is(err, user.ErrUserNotFound) {
					writeError(w, http.StatusUnauthorized, "unknown_user", "no user for X-User-ID")
					return
				}
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
				return
			}
			if !u.IsActive {
				writeError(w, http.StatusForbidden, "inactive_user", "account is deactivated")
				return
			}

			ctx := context.WithValue(r.Context(), currentUserKey, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// CurrentUser retrieves the authenticated user from context.
func CurrentUser(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(currentUserKey).(*user.User)
	return u, ok
}

// requireRole fetches the caller and checks their role. It writes the
// error response itself and returns nil when the request must stop.
func requireRole(w http.ResponseWriter, r *http.Request, roles ...user.Role) *user.User {
	u, ok := CurrentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "X-User-ID header required")
		return nil
	}
	for _, role := range roles {
		if u.Role == role {
			return u
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", "insufficient role for this operation")
	return nil
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
