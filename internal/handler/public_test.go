package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DukeRupert/waitlist/internal/domain"
	"github.com/DukeRupert/waitlist/internal/service"
	"github.com/DukeRupert/waitlist/internal/session"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicHandler_Landing_IssuesVisitorCookie(t *testing.T) {
	var sessions []string
	experiments := &mockExperimentService{
		AssignFunc: func(ctx context.Context, slug, sessionID string) (*service.LandingPage, error) {
			assert.Equal(t, "rocket", slug)
			sessions = append(sessions, sessionID)
			return &service.LandingPage{
				Project: &domain.Project{Name: "Rocket", Slug: slug},
				Variant: &domain.Variant{Name: "B", Headline: "Launch faster"},
			}, nil
		},
	}
	h := NewPublicHandler(experiments, &mockWaitlistService{}, testLogger(), false)
	routes := func(mux *http.ServeMux) { h.RegisterRoutes(mux, passthrough) }

	rec := serve(routes, httptest.NewRequest("GET", "/api/p/rocket", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"headline":"Launch faster"`)

	var visitor *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.VisitorCookieName {
			visitor = c
		}
	}
	require.NotNil(t, visitor)
	_, err := uuid.Parse(visitor.Value)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, visitor.Value, sessions[0])

	// A returning visitor keeps the same id and gets no new cookie.
	req := httptest.NewRequest("GET", "/api/p/rocket", nil)
	req.AddCookie(visitor)
	rec = serve(routes, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
	require.Len(t, sessions, 2)
	assert.Equal(t, sessions[0], sessions[1])
}

func TestPublicHandler_Landing_ReplacesUnusableVisitorCookie(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"too long", strings.Repeat("a", 200)},
		{"blank", "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			experiments := &mockExperimentService{
				AssignFunc: func(ctx context.Context, slug, sessionID string) (*service.LandingPage, error) {
					if strings.TrimSpace(sessionID) == "" || len(sessionID) > service.MaxSessionIDLength {
						return nil, domain.Invalid("ExperimentService.Assign", "A valid session id is required")
					}
					got = sessionID
					return &service.LandingPage{Project: &domain.Project{Slug: slug}}, nil
				},
			}
			h := NewPublicHandler(experiments, &mockWaitlistService{}, testLogger(), false)

			req := httptest.NewRequest("GET", "/api/p/rocket", nil)
			req.AddCookie(&http.Cookie{Name: session.VisitorCookieName, Value: tt.value})
			rec := serve(func(mux *http.ServeMux) { h.RegisterRoutes(mux, passthrough) }, req)
			require.Equal(t, http.StatusOK, rec.Code)

			cookies := rec.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, session.VisitorCookieName, cookies[0].Name)
			_, err := uuid.Parse(cookies[0].Value)
			require.NoError(t, err)
			assert.Equal(t, cookies[0].Value, got)
		})
	}
}

func TestPublicHandler_Landing_UnknownSlug(t *testing.T) {
	experiments := &mockExperimentService{
		AssignFunc: func(ctx context.Context, slug, sessionID string) (*service.LandingPage, error) {
			return nil, domain.NotFound("ExperimentService.Assign", "project", slug)
		},
	}
	h := NewPublicHandler(experiments, &mockWaitlistService{}, testLogger(), false)

	rec := serve(func(mux *http.ServeMux) { h.RegisterRoutes(mux, passthrough) }, httptest.NewRequest("GET", "/api/p/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublicHandler_Join(t *testing.T) {
	tests := []struct {
		name         string
		target       string
		body         string
		wantReferral string
	}{
		{"body code", "/api/p/rocket/join", `{"email":"a@example.com","referral_code":"ABCD2345"}`, "ABCD2345"},
		{"query fallback", "/api/p/rocket/join?ref=QRST6789", `{"email":"a@example.com"}`, "QRST6789"},
		{"body wins", "/api/p/rocket/join?ref=QRST6789", `{"email":"a@example.com","referral_code":"ABCD2345"}`, "ABCD2345"},
		{"no code", "/api/p/rocket/join", `{"email":"a@example.com"}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got domain.JoinParams
			waitlist := &mockWaitlistService{
				JoinFunc: func(ctx context.Context, params domain.JoinParams) (*domain.JoinResult, error) {
					got = params
					return &domain.JoinResult{
						Signup:      &domain.Signup{Email: params.Email, Position: 7, ReferralCode: "NEWCODE2"},
						ReferralURL: "https://app.example.com/p/rocket?ref=NEWCODE2",
						Referred:    params.ReferralCode != "",
					}, nil
				},
			}
			h := NewPublicHandler(&mockExperimentService{}, waitlist, testLogger(), false)

			rec := serve(func(mux *http.ServeMux) { h.RegisterRoutes(mux, passthrough) }, jsonRequest("POST", tt.target, tt.body))

			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			assert.Equal(t, "rocket", got.ProjectSlug)
			assert.Equal(t, tt.wantReferral, got.ReferralCode)

			var result domain.JoinResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
			assert.Equal(t, 7, result.Signup.Position)
		})
	}
}

func TestPublicHandler_Join_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"waitlist full", domain.LimitReached("WaitlistService.Join", "waitlist signups", 100), http.StatusForbidden},
		{"owner lapsed", domain.SubscriptionInactive("WaitlistService.Join"), http.StatusForbidden},
		{"duplicate", domain.Conflict("WaitlistService.Join", "This email is already on the waitlist"), http.StatusConflict},
		{"bad email", domain.NewValidationError("WaitlistService.Join", "email", "Enter a valid email"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			waitlist := &mockWaitlistService{
				JoinFunc: func(ctx context.Context, params domain.JoinParams) (*domain.JoinResult, error) {
					return nil, tt.err
				},
			}
			h := NewPublicHandler(&mockExperimentService{}, waitlist, testLogger(), false)

			rec := serve(func(mux *http.ServeMux) { h.RegisterRoutes(mux, passthrough) }, jsonRequest("POST", "/api/p/rocket/join", `{"email":"a@example.com"}`))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestPublicHandler_Join_RateLimited(t *testing.T) {
	deny := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ErrorResponse(w, r, testLogger(), domain.RateLimit("test"))
		})
	}
	h := NewPublicHandler(&mockExperimentService{}, &mockWaitlistService{}, testLogger(), false)

	rec := serve(func(mux *http.ServeMux) { h.RegisterRoutes(mux, deny) }, jsonRequest("POST", "/api/p/rocket/join", `{"email":"a@example.com"}`))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, domain.RateLimitMessage, decodeError(t, rec).Error.Message)
}

func TestPublicHandler_Status(t *testing.T) {
	waitlist := &mockWaitlistService{
		StatusFunc: func(ctx context.Context, referralCode string) (*domain.SignupStatus, error) {
			if referralCode != "ABCD2345" {
				return nil, domain.NotFound("WaitlistService.Status", "signup", referralCode)
			}
			return &domain.SignupStatus{
				ProjectName:   "Rocket",
				Position:      3,
				TotalSignups:  40,
				ReferralCount: 5,
				ReferralCode:  referralCode,
				Standing:      domain.CalculateStanding(5, 3),
			}, nil
		},
	}
	h := NewPublicHandler(&mockExperimentService{}, waitlist, testLogger(), false)
	routes := func(mux *http.ServeMux) { h.RegisterRoutes(mux, passthrough) }

	rec := serve(routes, httptest.NewRequest("GET", "/api/waitlist/ABCD2345", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tier":"silver"`)
	assert.Contains(t, rec.Body.String(), `"points":357`)

	rec = serve(routes, httptest.NewRequest("GET", "/api/waitlist/NOPE", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublicHandler_Plans(t *testing.T) {
	h := NewPublicHandler(&mockExperimentService{}, &mockWaitlistService{}, testLogger(), false)

	rec := serve(func(mux *http.ServeMux) { h.RegisterRoutes(mux, passthrough) }, httptest.NewRequest("GET", "/api/plans", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Plans           []domain.Plan `json:"plans"`
		GracePeriodDays int           `json:"grace_period_days"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Plans, 3)
	assert.Equal(t, domain.PlanFree, body.Plans[0].Tier)
	assert.Equal(t, domain.Unlimited, body.Plans[2].Limits.MaxProjects)
	assert.Equal(t, 10, body.GracePeriodDays)
}

// =============================================================================
// HealthHandler Tests
// =============================================================================

type fakePinger struct{ err error }

func (p fakePinger) PingContext(ctx context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		db         Pinger
		wantStatus int
	}{
		{"no database", nil, http.StatusOK},
		{"database up", fakePinger{}, http.StatusOK},
		{"database down", fakePinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.db, testLogger())

			rec := serve(h.RegisterRoutes, httptest.NewRequest("GET", "/health", nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
