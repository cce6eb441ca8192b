package devserver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/izposoja/internal/auth"
	"github.com/erazemk/izposoja/internal/inventory"
	"github.com/erazemk/izposoja/internal/model"
)

type contextKey string

const claimsKey contextKey = "claims"

// authMiddleware validates the bearer token and rejects banned or deleted
// accounts.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			jsonError(w, http.StatusUnauthorized, "missing or invalid authorization header")
			return
		}

		claims, err := auth.ValidateTokenAt(s.secret, strings.TrimPrefix(header, "Bearer "), s.clock.Now())
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		user, err := s.store.GetUser(r.Context(), claims.UserID)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if user == nil {
			jsonError(w, http.StatusUnauthorized, "account no longer exists")
			return
		}
		if user.Status == model.UserStatusBanned {
			jsonError(w, http.StatusForbidden, "account is banned")
			return
		}
		// The stored role wins over the one in the token.
		claims.Role = user.Role

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole returns middleware that checks if the user has at least the given role.
func RequireRole(minimum model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				jsonError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			if !model.RoleAtLeast(claims.Role, minimum) {
				jsonError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetClaims retrieves the JWT claims from the context.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

func actorOf(r *http.Request) inventory.Actor {
	c := GetClaims(r.Context())
	if c == nil {
		return inventory.Actor{}
	}
	return inventory.Actor{
		Operator: model.Operator{ID: c.UserID, Name: c.Name, Contact: c.Contact},
		Role:     c.Role,
	}
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs HTTP requests with method, path, status, and duration.
func LoggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.RequestURI(),
			"status", rec.status,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}
