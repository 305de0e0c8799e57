package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/waitlist/internal/domain"
	"github.com/DukeRupert/waitlist/internal/service"
)

// defaultLeaderboardSize is used when no limit is given.
const defaultLeaderboardSize = 10

// SignupHandler serves an owner's view of a project's waitlist.
//
// Routes (all authenticated):
//   - GET  /api/projects/{id}/signups     -> List
//   - GET  /api/projects/{id}/leaderboard -> Leaderboard
//   - POST /api/projects/{id}/recompute   -> Recompute
//   - POST /api/projects/{id}/export      -> RequestExport
//   - GET  /api/exports/{id}              -> GetExport
type SignupHandler struct {
	waitlist service.WaitlistService
	exports  service.ExportService
	logger   *slog.Logger
}

// NewSignupHandler creates a new SignupHandler.
func NewSignupHandler(waitlist service.WaitlistService, exports service.ExportService, logger *slog.Logger) *SignupHandler {
	return &SignupHandler{
		waitlist: waitlist,
		exports:  exports,
		logger:   logger,
	}
}

// RegisterRoutes registers signup routes behind the protected middleware.
func (h *SignupHandler) RegisterRoutes(mux *http.ServeMux, protected func(http.Handler) http.Handler) {
	mux.Handle("GET /api/projects/{id}/signups", protected(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/projects/{id}/leaderboard", protected(http.HandlerFunc(h.Leaderboard)))
	mux.Handle("POST /api/projects/{id}/recompute", protected(http.HandlerFunc(h.Recompute)))
	mux.Handle("POST /api/projects/{id}/export", protected(http.HandlerFunc(h.RequestExport)))
	mux.Handle("GET /api/exports/{id}", protected(http.HandlerFunc(h.GetExport)))
}

// List returns a page of signups. Query: limit (default 50, max 200), offset.
func (h *SignupHandler) List(w http.ResponseWriter, r *http.Request) {
	account, ok := currentAccount(w, r, h.logger)
	if !ok {
		return
	}
	projectID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultPageSize, maxPageSize)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	offset, err := queryInt(r, "offset", 0, 0)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.waitlist.List(r.Context(), domain.ListSignupsParams{
		ProjectID: projectID,
		AccountID: account.ID,
		Limit:     int32(limit),
		Offset:    int32(offset),
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"signups":     result.Signups,
		"total_count": result.TotalCount,
		"limit":       result.Limit,
		"offset":      result.Offset,
		"has_more":    result.HasMore(),
	})
}

// Leaderboard returns the top signups by points. Query: limit (default 10, max 200).
func (h *SignupHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	account, ok := currentAccount(w, r, h.logger)
	if !ok {
		return
	}
	projectID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultLeaderboardSize, maxPageSize)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	signups, err := h.waitlist.Leaderboard(r.Context(), projectID, account.ID, limit)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signups": signups})
}

// Recompute re-derives every signup's standing from its counters.
func (h *SignupHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	account, ok := currentAccount(w, r, h.logger)
	if !ok {
		return
	}
	projectID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	updated, err := h.waitlist.RecomputeStandings(r.Context(), projectID, account.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

// RequestExport queues a CSV export and returns it in the pending state.
func (h *SignupHandler) RequestExport(w http.ResponseWriter, r *http.Request) {
	account, ok := currentAccount(w, r, h.logger)
	if !ok {
		return
	}
	projectID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	export, err := h.exports.Request(r.Context(), projectID, account.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, export)
}

// GetExport returns an export, including its download URL once completed.
func (h *SignupHandler) GetExport(w http.ResponseWriter, r *http.Request) {
	account, ok := currentAccount(w, r, h.logger)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	export, err := h.exports.Get(r.Context(), id, account.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, export)
}
