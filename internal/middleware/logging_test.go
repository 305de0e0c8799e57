package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

// =============================================================================
// Request Logging Middleware Tests
// =============================================================================

func serveLogged(t *testing.T, status int, req *http.Request) (string, *httptest.ResponseRecorder) {
	t.Helper()
	var buf bytes.Buffer
	mw := NewRequestLoggingMiddleware(slog.New(slog.NewTextHandler(&buf, nil)))

	rec := httptest.NewRecorder()
	mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})).ServeHTTP(rec, req)

	return buf.String(), rec
}

func TestRequestLoggingMiddleware_LogsBasicInfo(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/projects", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	req.Header.Set("User-Agent", "Mozilla/5.0 TestBrowser")

	logOutput, _ := serveLogged(t, http.StatusOK, req)

	for _, want := range []string{"GET", "/api/projects", "status=200", "duration_ms", "192.168.1.1", "TestBrowser", "request_id="} {
		if !strings.Contains(logOutput, want) {
			t.Errorf("log should contain %q, got: %s", want, logOutput)
		}
	}
}

func TestRequestLoggingMiddleware_LogsClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/p/rocket", nil)
	req.RemoteAddr = "10.0.0.1:8080"
	req.Header.Set("X-Forwarded-For", "203.0.113.195, 10.0.0.1")

	logOutput, _ := serveLogged(t, http.StatusOK, req)

	if !strings.Contains(logOutput, "ip=203.0.113.195") {
		t.Errorf("log should contain client IP from X-Forwarded-For, got: %s", logOutput)
	}
}

func TestRequestLoggingMiddleware_LogsErrorStatus(t *testing.T) {
	logOutput, _ := serveLogged(t, http.StatusInternalServerError, httptest.NewRequest("POST", "/api/projects", nil))

	if !strings.Contains(logOutput, "status=500") {
		t.Errorf("log should contain 500 status, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "level=WARN") {
		t.Errorf("5xx should log at WARN level, got: %s", logOutput)
	}
}

func TestRequestLoggingMiddleware_RedactsSensitiveQueryParams(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/p/rocket?ref=ABCD2345&token=secrettoken123&utm_source=x", nil)

	logOutput, _ := serveLogged(t, http.StatusOK, req)

	if strings.Contains(logOutput, "secrettoken123") || strings.Contains(logOutput, "ABCD2345") {
		t.Errorf("log should not contain sensitive values, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "utm_source=x") {
		t.Errorf("log should keep harmless params, got: %s", logOutput)
	}
}

func TestRequestLoggingMiddleware_AssignsRequestID(t *testing.T) {
	var seen string
	mw := NewRequestLoggingMiddleware(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	rec := httptest.NewRecorder()
	mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	})).ServeHTTP(rec, httptest.NewRequest("GET", "/api/me", nil))

	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("expected a UUID request id in context, got %q", seen)
	}
	if got := rec.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("response header %q does not match context id %q", got, seen)
	}
}

func TestRequestLoggingMiddleware_RequestIDFromHeader(t *testing.T) {
	incoming := uuid.NewString()

	req := httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set(RequestIDHeader, incoming)
	_, rec := serveLogged(t, http.StatusOK, req)
	if got := rec.Header().Get(RequestIDHeader); got != incoming {
		t.Errorf("expected incoming id to be kept, got %q", got)
	}

	req = httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set(RequestIDHeader, "not a uuid\r\nX-Evil: 1")
	_, rec = serveLogged(t, http.StatusOK, req)
	if got := rec.Header().Get(RequestIDHeader); got == "" || strings.Contains(got, "Evil") {
		t.Errorf("expected invalid id to be replaced, got %q", got)
	}
}

func TestRequestLoggingMiddleware_ExcludesNoisyPaths(t *testing.T) {
	for _, path := range []string{"/health", "/metrics", "/files/logos/abc.jpg"} {
		logOutput, rec := serveLogged(t, http.StatusOK, httptest.NewRequest("GET", path, nil))
		if logOutput != "" {
			t.Errorf("%s should not be logged, got: %s", path, logOutput)
		}
		if rec.Header().Get(RequestIDHeader) == "" {
			t.Errorf("%s should still get a request id", path)
		}
	}
}

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		path, query, want string
	}{
		{"/api/p/x", "", "/api/p/x"},
		{"/api/p/x", "ref=AAAA", "/api/p/x?ref=[REDACTED]"},
		{"/api/p/x", "Password=a&page=2", "/api/p/x?Password=[REDACTED]&page=2"},
		{"/api/p/x", "flag", "/api/p/x"},
	}
	for _, tt := range tests {
		if got := sanitizePath(tt.path, tt.query); got != tt.want {
			t.Errorf("sanitizePath(%q, %q) = %q, want %q", tt.path, tt.query, got, tt.want)
		}
	}
}
