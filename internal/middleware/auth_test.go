package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DukeRupert/waitlist/internal/domain"
	"github.com/DukeRupert/waitlist/internal/session"
	"github.com/google/uuid"
)

// =============================================================================
// Mock AccountService Implementation
// =============================================================================

// mockAccountService implements the service.AccountService interface for testing.
type mockAccountService struct {
	GetBySessionTokenFunc func(ctx context.Context, token string) (*domain.Account, error)
}

func (m *mockAccountService) Register(ctx context.Context, params domain.RegisterParams) (*domain.Account, error) {
	return nil, errors.New("not implemented")
}

func (m *mockAccountService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	return nil, errors.New("not implemented")
}

func (m *mockAccountService) Logout(ctx context.Context, token string) error {
	return nil
}

func (m *mockAccountService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return nil, errors.New("not implemented")
}

func (m *mockAccountService) GetBySessionToken(ctx context.Context, token string) (*domain.Account, error) {
	if m.GetBySessionTokenFunc != nil {
		return m.GetBySessionTokenFunc(ctx, token)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAccountService) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	return 0, errors.New("not implemented")
}

// =============================================================================
// Test Helpers
// =============================================================================

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAuthMiddleware(mock *mockAccountService) *AuthMiddleware {
	return NewAuthMiddleware(mock, newTestLogger(), false)
}

func acceptToken(valid string, account *domain.Account) *mockAccountService {
	return &mockAccountService{
		GetBySessionTokenFunc: func(ctx context.Context, token string) (*domain.Account, error) {
			if token == valid {
				return account, nil
			}
			return nil, domain.Unauthorized("AccountService.GetBySessionToken", "Invalid session")
		},
	}
}

// captureAccount returns a handler recording the account it saw.
func captureAccount(got **domain.Account) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = GetAccount(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

// =============================================================================
// WithAccount Tests
// =============================================================================

func TestWithAccount_NoToken_ContinuesWithoutAccount(t *testing.T) {
	mw := newTestAuthMiddleware(&mockAccountService{})

	var got *domain.Account
	rec := httptest.NewRecorder()
	mw.WithAccount(captureAccount(&got)).ServeHTTP(rec, httptest.NewRequest("GET", "/api/p/rocket", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if got != nil {
		t.Errorf("expected no account, got %+v", got)
	}
}

func TestWithAccount_ValidCookie_SetsAccount(t *testing.T) {
	account := &domain.Account{ID: uuid.New(), Email: "owner@example.com"}
	mw := newTestAuthMiddleware(acceptToken("good-token", account))

	req := httptest.NewRequest("GET", "/api/projects", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "good-token"})

	var got *domain.Account
	mw.WithAccount(captureAccount(&got)).ServeHTTP(httptest.NewRecorder(), req)

	if got == nil || got.ID != account.ID {
		t.Errorf("expected account %s in context, got %+v", account.ID, got)
	}
}

func TestWithAccount_BearerToken_SetsAccount(t *testing.T) {
	account := &domain.Account{ID: uuid.New(), Email: "owner@example.com"}
	mw := newTestAuthMiddleware(acceptToken("api-token", account))

	req := httptest.NewRequest("GET", "/api/projects", nil)
	req.Header.Set("Authorization", "Bearer api-token")

	var got *domain.Account
	mw.WithAccount(captureAccount(&got)).ServeHTTP(httptest.NewRecorder(), req)

	if got == nil || got.ID != account.ID {
		t.Errorf("expected account from bearer token, got %+v", got)
	}
}

func TestWithAccount_InvalidCookie_ClearsAndContinues(t *testing.T) {
	mw := newTestAuthMiddleware(acceptToken("good-token", nil))

	req := httptest.NewRequest("GET", "/api/projects", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "stale-token"})
	rec := httptest.NewRecorder()

	var got *domain.Account
	mw.WithAccount(captureAccount(&got)).ServeHTTP(rec, req)

	if got != nil {
		t.Errorf("expected no account, got %+v", got)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected handler to run, got %d", rec.Code)
	}

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("expected session cookie to be cleared")
	}
}

func TestWithAccount_InvalidBearer_DoesNotClearCookie(t *testing.T) {
	mw := newTestAuthMiddleware(acceptToken("good-token", nil))

	req := httptest.NewRequest("GET", "/api/projects", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()

	var got *domain.Account
	mw.WithAccount(captureAccount(&got)).ServeHTTP(rec, req)

	if len(rec.Result().Cookies()) != 0 {
		t.Errorf("expected no Set-Cookie for bearer auth, got %v", rec.Result().Cookies())
	}
}

// =============================================================================
// RequireAccount Tests
// =============================================================================

func TestProtected_WithAccount_ContinuesToHandler(t *testing.T) {
	account := &domain.Account{ID: uuid.New()}
	mw := newTestAuthMiddleware(acceptToken("good-token", account))

	req := httptest.NewRequest("GET", "/api/projects", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "good-token"})
	rec := httptest.NewRecorder()

	var got *domain.Account
	mw.Protected(captureAccount(&got)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if got != account {
		t.Errorf("expected account in context")
	}
}

func TestRequireAccount_NoAccount_Returns401JSON(t *testing.T) {
	mw := newTestAuthMiddleware(&mockAccountService{})

	called := false
	req := httptest.NewRequest("GET", "/api/projects", nil)
	rec := httptest.NewRecorder()
	mw.RequireAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rec, req)

	if called {
		t.Error("handler should not be called without an account")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON error, got content type %q", ct)
	}
}

// =============================================================================
// Stack Tests
// =============================================================================

func TestStack_Order(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	Stack(mark("a"), mark("b"), mark("c"))(okHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("expected a,b,c got %v", order)
	}
}
