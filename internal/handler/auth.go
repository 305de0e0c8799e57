// Package handler contains the JSON HTTP handlers for the waitlist API.
//
// Handlers decode requests, call a service, and write either a JSON body or a
// JSON error via ErrorResponse. They hold no business rules.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/waitlist/internal/auth"
	"github.com/DukeRupert/waitlist/internal/domain"
	"github.com/DukeRupert/waitlist/internal/service"
	"github.com/DukeRupert/waitlist/internal/session"
)

// AuthHandler handles account registration and sessions.
//
// Routes:
//   - POST /api/auth/register -> Register
//   - POST /api/auth/login    -> Login
//   - POST /api/auth/logout   -> Logout
//   - GET  /api/me            -> Me
type AuthHandler struct {
	accounts service.AccountService
	logger   *slog.Logger
	isSecure bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(accounts service.AccountService, logger *slog.Logger, isSecure bool) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		logger:   logger,
		isSecure: isSecure,
	}
}

// RegisterRoutes registers auth routes. Login and registration are wrapped
// by their own rate limiters; logout and me require an account.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, protected, limitLogin, limitRegister func(http.Handler) http.Handler) {
	mux.Handle("POST /api/auth/register", limitRegister(http.HandlerFunc(h.Register)))
	mux.Handle("POST /api/auth/login", limitLogin(http.HandlerFunc(h.Login)))
	mux.Handle("POST /api/auth/logout", protected(http.HandlerFunc(h.Logout)))
	mux.Handle("GET /api/me", protected(http.HandlerFunc(h.Me)))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// sessionResponse is returned by register and login. The token is also set
// as a cookie; API clients send it back as a bearer token.
type sessionResponse struct {
	Account *domain.Account `json:"account"`
	Token   string          `json:"token"`
}

// Register creates an account and signs it in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	const op = "AuthHandler.Register"

	var params domain.RegisterParams
	if err := decodeJSON(w, r, op, &params); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if _, err := h.accounts.Register(r.Context(), params); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.accounts.Login(r.Context(), params.Email, params.Password)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	session.SetCookie(w, result.Token, h.isSecure)
	writeJSON(w, http.StatusCreated, sessionResponse{Account: result.Account, Token: result.Token})
}

// Login authenticates an account and starts a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "AuthHandler.Login"

	var req loginRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	session.SetCookie(w, result.Token, h.isSecure)
	writeJSON(w, http.StatusOK, sessionResponse{Account: result.Account, Token: result.Token})
}

// Logout ends the current session. The cookie is cleared even if the
// session was already gone.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := ""
	if c, err := r.Cookie(session.CookieName); err == nil {
		token = c.Value
	} else if bearer, ok := bearerToken(r); ok {
		token = bearer
	}

	if token != "" {
		if err := h.accounts.Logout(r.Context(), token); err != nil {
			h.logger.Error("failed to delete session", "error", err)
		}
	}

	session.ClearCookie(w, h.isSecure)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	account, ok := currentAccount(w, r, h.logger)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// currentAccount returns the authenticated account or writes a 401.
func currentAccount(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*domain.Account, bool) {
	account := auth.GetAccount(r.Context())
	if account == nil {
		UnauthorizedResponse(w, r, logger)
		return nil, false
	}
	return account, true
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return "", false
	}
	return h[len(prefix):], true
}
