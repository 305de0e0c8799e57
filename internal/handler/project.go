package handler

import (
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/DukeRupert/waitlist/internal/domain"
	"github.com/DukeRupert/waitlist/internal/service"
)

// maxLogoRequest bounds the whole logo request, multipart overhead included.
const maxLogoRequest = service.MaxLogoUploadBytes + 64<<10

// ProjectHandler serves project management endpoints for owners.
//
// Routes (all authenticated):
//   - GET    /api/projects               -> List
//   - POST   /api/projects               -> Create
//   - GET    /api/projects/{id}          -> Get
//   - PUT    /api/projects/{id}          -> Update
//   - DELETE /api/projects/{id}          -> Delete
//   - GET    /api/projects/{id}/variants -> Variants
//   - PUT    /api/projects/{id}/variants -> SetVariants
//   - GET    /api/projects/{id}/stats    -> Stats
//   - POST   /api/projects/{id}/logo     -> UploadLogo
type ProjectHandler struct {
	projects    service.ProjectService
	experiments service.ExperimentService
	logger      *slog.Logger
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(projects service.ProjectService, experiments service.ExperimentService, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{
		projects:    projects,
		experiments: experiments,
		logger:      logger,
	}
}

// RegisterRoutes registers project routes behind the protected middleware.
func (h *ProjectHandler) RegisterRoutes(mux *http.ServeMux, protected func(http.Handler) http.Handler) {
	mux.Handle("GET /api/projects", protected(http.HandlerFunc(h.List)))
	mux.Handle("POST /api/projects", protected(http.HandlerFunc(h.Create)))
	mux.Handle("GET /api/projects/{id}", protected(http.HandlerFunc(h.Get)))
	mux.Handle("PUT /api/projects/{id}", protected(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE /api/projects/{id}", protected(http.HandlerFunc(h.Delete)))
	mux.Handle("GET /api/projects/{id}/variants", protected(http.HandlerFunc(h.Variants)))
	mux.Handle("PUT /api/projects/{id}/variants", protected(http.HandlerFunc(h.SetVariants)))
	mux.Handle("GET /api/projects/{id}/stats", protected(http.HandlerFunc(h.Stats)))
	mux.Handle("POST /api/projects/{id}/logo", protected(http.HandlerFunc(h.UploadLogo)))
}

// List returns the account's projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	account, ok := currentAccount(w, r, h.logger)
	if !ok {
		return
	}

	projects, err := h.projects.List(r.Context(), account.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// Create creates a project. A closed subscription gate yields 403.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "ProjectHandler.Create"

	account, ok := currentAccount(w, r, h.logger)
	if !ok {
		return
	}

	var params domain.CreateProjectParams
	if err := decodeJSON(w, r, op, &params); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	params.AccountID = account.ID

	project, err := h.projects.Create(r.Context(), account, params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// Get returns one project.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, ok := currentAccount(w, r, h.logger)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	project, err := h.projects.Get(r.Context(), id, account.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// Update replaces a project's editable settings.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "ProjectHandler.Update"

	account, ok := currentAccount(w, r, h.logger)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var params domain.UpdateProjectParams
	if err := decodeJSON(w, r, op, &params); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	params.ID = id
	params.AccountID = account.ID

	project, err := h.projects.Update(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// Delete removes a project.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	account, ok := currentAccount(w, r, h.logger)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.projects.Delete(r.Context(), id, account.ID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Variants returns the project's A/B variants.
func (h *ProjectHandler) Variants(w http.ResponseWriter, r *http.Request) {
	account, ok := currentAccount(w, r, h.logger)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	variants, err := h.projects.Variants(r.Context(), id, account.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	total, _ := domain.ValidateTraffic(variants)
	writeJSON(w, http.StatusOK, domain.SetVariantsResult{Variants: variants, TrafficTotal: total})
}

type setVariantsRequest struct {
	Variants []domain.VariantInput `json:"variants"`
}

// SetVariants replaces the variant list. Weights not summing to 100 are
// accepted and reported through the warning field.
func (h *ProjectHandler) SetVariants(w http.ResponseWriter, r *http.Request) {
	const op = "ProjectHandler.SetVariants"

	account, ok := currentAccount(w, r, h.logger)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req setVariantsRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.projects.SetVariants(r.Context(), id, account.ID, req.Variants)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type variantStatsResponse struct {
	domain.VariantStats
	ConversionRate float64 `json:"conversion_rate"`
}

// Stats returns views, conversions and conversion rate per variant.
func (h *ProjectHandler) Stats(w http.ResponseWriter, r *http.Request) {
	account, ok := currentAccount(w, r, h.logger)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	stats, err := h.experiments.Stats(r.Context(), id, account.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]variantStatsResponse, len(stats))
	for i, s := range stats {
		out[i] = variantStatsResponse{VariantStats: s, ConversionRate: s.ConversionRate()}
	}
	writeJSON(w, http.StatusOK, map[string]any{"variants": out})
}

// UploadLogo accepts either a multipart form with a "logo" file part or a
// raw image body, and returns the stored logo URL.
func (h *ProjectHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	const op = "ProjectHandler.UploadLogo"

	account, ok := currentAccount(w, r, h.logger)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxLogoRequest)

	body, contentType, err := logoPart(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Wrap(err, domain.EINVALID, op, "Upload a JPEG, PNG or GIF image as the request body or a \"logo\" form field"))
		return
	}
	defer body.Close()

	url, err := h.projects.UploadLogo(r.Context(), id, account.ID, body, contentType)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"logo_url": url})
}

// logoPart returns the image stream and its declared content type.
func logoPart(r *http.Request) (io.ReadCloser, string, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, "", err
	}
	if mediaType != "multipart/form-data" {
		return r.Body, mediaType, nil
	}

	file, header, err := r.FormFile("logo")
	if err != nil {
		return nil, "", err
	}
	return file, header.Header.Get("Content-Type"), nil
}
