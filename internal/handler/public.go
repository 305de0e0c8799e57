package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/DukeRupert/waitlist/internal/domain"
	"github.com/DukeRupert/waitlist/internal/service"
	"github.com/DukeRupert/waitlist/internal/session"
	"github.com/google/uuid"
)

// PublicHandler serves the unauthenticated waitlist endpoints.
//
// Routes:
//   - GET  /api/p/{slug}         -> Landing
//   - POST /api/p/{slug}/join    -> Join (rate limited)
//   - GET  /api/waitlist/{code}  -> Status
//   - GET  /api/plans            -> Plans
type PublicHandler struct {
	experiments service.ExperimentService
	waitlist    service.WaitlistService
	logger      *slog.Logger
	isSecure    bool
}

// NewPublicHandler creates a new PublicHandler.
func NewPublicHandler(experiments service.ExperimentService, waitlist service.WaitlistService, logger *slog.Logger, isSecure bool) *PublicHandler {
	return &PublicHandler{
		experiments: experiments,
		waitlist:    waitlist,
		logger:      logger,
		isSecure:    isSecure,
	}
}

// RegisterRoutes registers public routes. limitJoin wraps the join endpoint.
func (h *PublicHandler) RegisterRoutes(mux *http.ServeMux, limitJoin func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /api/p/{slug}", h.Landing)
	mux.Handle("POST /api/p/{slug}/join", limitJoin(http.HandlerFunc(h.Join)))
	mux.HandleFunc("GET /api/waitlist/{code}", h.Status)
	mux.HandleFunc("GET /api/plans", h.Plans)
}

// Landing resolves a project's landing page for the visitor.
//
// Visitors are identified by the wl_session cookie, which is issued on the
// first visit and reissued when the stored value is unusable. The same
// visitor keeps seeing the same variant while the variant list is unchanged.
func (h *PublicHandler) Landing(w http.ResponseWriter, r *http.Request) {
	visitorID := session.VisitorID(r)
	if visitorID == "" {
		visitorID = uuid.NewString()
		session.SetVisitorCookie(w, visitorID, h.isSecure)
	}

	page, err := h.experiments.Assign(r.Context(), r.PathValue("slug"), visitorID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Join adds an email to a project's waitlist.
//
// The referral code may come in the body or as ?ref= on the URL. A full
// waitlist or lapsed owner subscription yields 403; a repeated email 409.
func (h *PublicHandler) Join(w http.ResponseWriter, r *http.Request) {
	const op = "PublicHandler.Join"

	var params domain.JoinParams
	if err := decodeJSON(w, r, op, &params); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	params.ProjectSlug = r.PathValue("slug")
	if params.ReferralCode == "" {
		params.ReferralCode = r.URL.Query().Get("ref")
	}

	result, err := h.waitlist.Join(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// Status returns a signup's position and standing by referral code.
func (h *PublicHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.waitlist.Status(r.Context(), r.PathValue("code"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Plans lists the purchasable tiers and their limits.
func (h *PublicHandler) Plans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"plans":             domain.Plans(),
		"grace_period_days": domain.GracePeriodDays,
	})
}

// =============================================================================
// Health
// =============================================================================

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports service liveness and database reachability.
type HealthHandler struct {
	db     Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a new HealthHandler. db may be nil.
func NewHealthHandler(db Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

// RegisterRoutes registers GET /health.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
}

// Health returns 200 when the database answers within two seconds, 503 otherwise.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
