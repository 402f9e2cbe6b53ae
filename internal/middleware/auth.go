package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/swiftel/request-handler/internal/app/domain/user"
	"github.com/swiftel/request-handler/internal/auth"
	"github.com/swiftel/request-handler/internal/errors"
	"github.com/swiftel/request-handler/pkg/logger"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Parse(token string) (*auth.Claims, error)
}

// AuthMiddleware authenticates requests with a bearer JWT.
type AuthMiddleware struct {
	verifier  TokenVerifier
	logger    *logger.Logger
	skipPaths map[string]bool
}

// NewAuthMiddleware creates an authentication middleware. Requests to
// skipPaths pass through unauthenticated.
func NewAuthMiddleware(verifier TokenVerifier, log *logger.Logger, skipPaths []string) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	skip := make(map[string]bool, len(skipPaths))
	for _, path := range skipPaths {
		skip[path] = true
	}
	return &AuthMiddleware{verifier: verifier, logger: log, skipPaths: skip}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.respondError(w, r, errors.InvalidToken(nil).WithDetails("reason", "missing Authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.respondError(w, r, errors.InvalidToken(nil).WithDetails("reason", "invalid Authorization header format"))
			return
		}

		claims, err := m.verifier.Parse(parts[1])
		if err != nil {
			m.logger.WithError(err).WithField("path", r.URL.Path).Warn("token validation failed")
			m.respondError(w, r, err)
			return
		}

		ctx := WithIdentity(r.Context(), claims.UserID, claims.Name, user.Role(claims.Role))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole guards a handler so only the given roles may reach it.
func RequireRole(roles ...user.Role) func(http.Handler) http.Handler {
	allowed := make(map[user.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allowed[GetRole(r.Context())] {
				writeServiceError(w, errors.Unauthorized("insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("authentication failed", err)
	}
	writeServiceError(w, serviceErr)
}

func writeServiceError(w http.ResponseWriter, serviceErr *errors.ServiceError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(serviceErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    serviceErr.Code,
		"message": serviceErr.Message,
		"details": serviceErr.Details,
	})
}
