package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/waitlist/internal/domain"
	"github.com/DukeRupert/waitlist/internal/service"
)

// CampaignHandler serves email campaign endpoints.
//
// Routes (all authenticated):
//   - GET  /api/projects/{id}/campaigns -> List
//   - POST /api/projects/{id}/campaigns -> Create
//   - GET  /api/campaigns/{id}          -> Get
//   - POST /api/campaigns/{id}/send     -> Send
type CampaignHandler struct {
	campaigns service.CampaignService
	logger    *slog.Logger
}

// NewCampaignHandler creates a new CampaignHandler.
func NewCampaignHandler(campaigns service.CampaignService, logger *slog.Logger) *CampaignHandler {
	return &CampaignHandler{
		campaigns: campaigns,
		logger:    logger,
	}
}

// RegisterRoutes registers campaign routes behind the protected middleware.
func (h *CampaignHandler) RegisterRoutes(mux *http.ServeMux, protected func(http.Handler) http.Handler) {
	mux.Handle("GET /api/projects/{id}/campaigns", protected(http.HandlerFunc(h.List)))
	mux.Handle("POST /api/projects/{id}/campaigns", protected(http.HandlerFunc(h.Create)))
	mux.Handle("GET /api/campaigns/{id}", protected(http.HandlerFunc(h.Get)))
	mux.Handle("POST /api/campaigns/{id}/send", protected(http.HandlerFunc(h.Send)))
}

// List returns a project's campaigns.
func (h *CampaignHandler) List(w http.ResponseWriter, r *http.Request) {
	account, ok := currentAccount(w, r, h.logger)
	if !ok {
		return
	}
	projectID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	campaigns, err := h.campaigns.List(r.Context(), projectID, account.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaigns": campaigns})
}

// Create saves a draft campaign.
func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "CampaignHandler.Create"

	account, ok := currentAccount(w, r, h.logger)
	if !ok {
		return
	}
	projectID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var params domain.CreateCampaignParams
	if err := decodeJSON(w, r, op, &params); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	params.ProjectID = projectID
	params.AccountID = account.ID

	campaign, err := h.campaigns.Create(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

// Get returns one campaign with its delivery counts.
func (h *CampaignHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, ok := currentAccount(w, r, h.logger)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	campaign, err := h.campaigns.Get(r.Context(), id, account.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

// Send queues a campaign for delivery by the worker.
func (h *CampaignHandler) Send(w http.ResponseWriter, r *http.Request) {
	account, ok := currentAccount(w, r, h.logger)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	campaign, err := h.campaigns.Send(r.Context(), id, account.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, campaign)
}
