// Package middleware provides HTTP middleware for the waitlist API.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/waitlist/internal/auth"
	"github.com/DukeRupert/waitlist/internal/domain"
	"github.com/DukeRupert/waitlist/internal/handler"
	"github.com/DukeRupert/waitlist/internal/service"
	"github.com/DukeRupert/waitlist/internal/session"
)

// GetAccount retrieves the authenticated account from the context.
// Returns nil if no account is authenticated.
var GetAccount = auth.GetAccount

// =============================================================================
// AuthMiddleware
// =============================================================================

// AuthMiddleware resolves session tokens into accounts.
//
// Create one instance and use its methods as middleware.
type AuthMiddleware struct {
	accountService service.AccountService
	logger         *slog.Logger
	isSecure       bool // Whether to set Secure flag on cookies (true in production)
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(accountService service.AccountService, logger *slog.Logger, isSecure bool) *AuthMiddleware {
	return &AuthMiddleware{
		accountService: accountService,
		logger:         logger,
		isSecure:       isSecure,
	}
}

// WithAccount loads the account for the request's session token, if any, and
// stores it in the context. It always calls next.
//
// The token is read from the session cookie, or from an
// "Authorization: Bearer <token>" header for non-browser clients.
//
//	Request -> WithAccount -> Handler
//	           |
//	           +-> Read cookie or bearer token
//	           +-> Validate session (if present)
//	           +-> Set account in context (if valid)
//	           +-> Call next handler (always)
func (m *AuthMiddleware) WithAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, fromCookie := sessionToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		account, err := m.accountService.GetBySessionToken(r.Context(), token)
		if err != nil {
			if domain.ErrorCode(err) != domain.EUNAUTHORIZED {
				m.logger.Error("failed to resolve session", "error", err, "path", r.URL.Path)
			}
			if fromCookie {
				session.ClearCookie(w, m.isSecure)
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.SetAccount(r.Context(), account)))
	})
}

// RequireAccount rejects requests without an authenticated account with a
// 401 JSON error. It must run after WithAccount.
//
//	mux.Handle("GET /api/projects", authMw.WithAccount(authMw.RequireAccount(h)))
func (m *AuthMiddleware) RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetAccount(r.Context()) == nil {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Protected is WithAccount followed by RequireAccount.
func (m *AuthMiddleware) Protected(next http.Handler) http.Handler {
	return m.WithAccount(m.RequireAccount(next))
}

// sessionToken returns the raw token and whether it came from the cookie.
func sessionToken(r *http.Request) (string, bool) {
	if cookie, err := r.Cookie(session.CookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	authz := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authz, "Bearer "); ok {
		return strings.TrimSpace(token), false
	}
	return "", false
}

// =============================================================================
// Middleware Stack Helpers
// =============================================================================

// Stack composes multiple middleware functions into a single middleware.
//
// The first middleware in the list is the outermost (runs first on request,
// last on response).
//
//	stack := Stack(loggingMw.Handler, authMw.WithAccount, authMw.RequireAccount)
//	mux.Handle("GET /api/projects", stack(projectsHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
