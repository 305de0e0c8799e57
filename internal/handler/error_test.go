package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DukeRupert/waitlist/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) JSONError {
	t.Helper()
	var body JSONError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return body
}

// =============================================================================
// Status Mapping
// =============================================================================

func TestErrorResponse_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid", domain.Invalid("op", "bad"), http.StatusBadRequest, domain.EINVALID},
		{"unauthorized", domain.Unauthorized("op", "who"), http.StatusUnauthorized, domain.EUNAUTHORIZED},
		{"payment", domain.PaymentRequired("op", "pay"), http.StatusPaymentRequired, domain.EPAYMENT},
		{"gate inactive", domain.SubscriptionInactive("op"), http.StatusForbidden, domain.EFORBIDDEN},
		{"gate limit", domain.LimitReached("op", "projects", 3), http.StatusForbidden, domain.EFORBIDDEN},
		{"not found", domain.NotFound("op", "project", "x"), http.StatusNotFound, domain.ENOTFOUND},
		{"conflict", domain.Conflict("op", "dup"), http.StatusConflict, domain.ECONFLICT},
		{"rate limit", domain.RateLimit("op"), http.StatusTooManyRequests, domain.ERATELIMIT},
		{"wrapped", fmt.Errorf("outer: %w", domain.Conflict("op", "dup")), http.StatusConflict, domain.ECONFLICT},
		{"plain", errors.New("boom"), http.StatusInternalServerError, domain.EINTERNAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ErrorResponse(rec, httptest.NewRequest("GET", "/api/x", nil), testLogger(), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.code, decodeError(t, rec).Error.Code)
		})
	}
}

func TestErrorResponse_GateMessages(t *testing.T) {
	rec := httptest.NewRecorder()
	ErrorResponse(rec, httptest.NewRequest("POST", "/api/projects", nil), testLogger(), domain.SubscriptionInactive("ProjectService.Create"))
	assert.Contains(t, decodeError(t, rec).Error.Message, "renew")

	rec = httptest.NewRecorder()
	ErrorResponse(rec, httptest.NewRequest("POST", "/api/projects", nil), testLogger(), domain.LimitReached("ProjectService.Create", "projects", 3))
	assert.Contains(t, decodeError(t, rec).Error.Message, "upgrade")
}

// =============================================================================
// Error Response Tests - Security Focus
// =============================================================================

func TestValidationErrorResponse_DoesNotExposeOperationName(t *testing.T) {
	ve := domain.NewValidationError("AccountService.Register", "email", "Email is required")

	rec := httptest.NewRecorder()
	ErrorResponse(rec, httptest.NewRequest("POST", "/api/auth/register", nil), testLogger(), ve)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), "AccountService")

	body := decodeError(t, rec)
	assert.Equal(t, domain.EINVALID, body.Error.Code)
	assert.Equal(t, "Validation failed", body.Error.Message)
	assert.Equal(t, "Email is required", body.Error.Fields["email"])
}

func TestErrorResponse_InternalErrorHidesDetails(t *testing.T) {
	err := domain.Internal(errors.New("pq: connection refused to 10.0.0.5:5432"), "WaitlistService.Join", "failed to count signups")

	rec := httptest.NewRecorder()
	ErrorResponse(rec, httptest.NewRequest("POST", "/api/p/rocket/join", nil), testLogger(), err)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	for _, leak := range []string{"pq:", "10.0.0.5", "WaitlistService", "count signups"} {
		assert.NotContains(t, rec.Body.String(), leak)
	}
}

func TestErrorResponse_NotFoundDoesNotExposeInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	NotFoundResponse(rec, httptest.NewRequest("GET", "/api/projects/x", nil), testLogger())

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, strings.Contains(rec.Body.String(), "sql"))
}

func TestDecodeJSON_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"syntax", `{"email":`},
		{"type", `{"email": 42}`},
		{"unknown field", `{"email":"a@b.c","admin":true}`},
		{"too large", `{"email":"` + strings.Repeat("a", maxJSONBody) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst struct {
				Email string `json:"email"`
			}
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/api/x", strings.NewReader(tt.body))

			err := decodeJSON(rec, req, "test", &dst)
			require.Error(t, err)
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
		})
	}
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/x?limit=500&offset=10&bad=-1", nil)

	n, err := queryInt(req, "limit", defaultPageSize, maxPageSize)
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, n)

	n, err = queryInt(req, "offset", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	n, err = queryInt(req, "missing", 7, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = queryInt(req, "bad", 0, 0)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}
