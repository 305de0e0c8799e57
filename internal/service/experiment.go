package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/DukeRupert/waitlist/internal/domain"
	"github.com/DukeRupert/waitlist/internal/metrics"
	"github.com/DukeRupert/waitlist/internal/repository"
	"github.com/DukeRupert/waitlist/internal/session"
	"github.com/google/uuid"
)

// MaxSessionIDLength bounds visitor session identifiers.
const MaxSessionIDLength = session.MaxVisitorIDLength

// LandingPage is what a visitor sees on a project's public page.
type LandingPage struct {
	Project *domain.Project `json:"project"`
	Variant *domain.Variant `json:"variant,omitempty"`
}

// ExperimentService assigns visitors to A/B variants and reports results.
type ExperimentService interface {
	// Assign resolves the landing page for a visitor session. When A/B
	// testing is enabled and variants exist, the session is bucketed and an
	// exposure is recorded. Repeated calls with the same session return the
	// same variant.
	Assign(ctx context.Context, slug, sessionID string) (*LandingPage, error)

	// Stats returns views and conversions per variant for the project owner.
	Stats(ctx context.Context, projectID, accountID uuid.UUID) ([]domain.VariantStats, error)
}

type experimentService struct {
	store  repository.Store
	logger *slog.Logger
}

// NewExperimentService creates a new ExperimentService instance.
func NewExperimentService(store repository.Store, logger *slog.Logger) ExperimentService {
	return &experimentService{
		store:  store,
		logger: logger,
	}
}

func (s *experimentService) Assign(ctx context.Context, slug, sessionID string) (*LandingPage, error) {
	const op = "ExperimentService.Assign"

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || len(sessionID) > MaxSessionIDLength {
		return nil, domain.Invalid(op, "A valid session id is required")
	}

	row, err := s.store.GetProjectBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "project", slug)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve project")
	}
	project := projectFromRepo(row)
	page := &LandingPage{Project: project}

	if !project.ABTestingEnabled {
		return page, nil
	}

	rows, err := s.store.ListVariantsByProjectID(ctx, project.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list variants")
	}

	a := domain.SelectVariant(variantsFromRepo(rows), sessionID)
	if !a.OK {
		return page, nil
	}

	if a.Fallback {
		s.logger.Warn("variant weights do not cover bucket, using first variant",
			"project_id", project.ID,
			"bucket", a.Bucket,
			"variant_id", a.Variant.ID,
		)
	}

	// A failed exposure write only skews stats; the visitor still gets a page.
	added, err := s.store.RecordVariantExposure(ctx, repository.RecordVariantExposureParams{
		VariantID: a.Variant.ID,
		SessionID: sessionID,
	})
	if err != nil {
		s.logger.Error("failed to record variant exposure",
			"project_id", project.ID,
			"variant_id", a.Variant.ID,
			"error", err,
		)
	} else if added > 0 {
		// Counted once per session, matching the views in Stats.
		metrics.VariantAssigned(a.Fallback)
	}

	v := a.Variant
	page.Variant = &v
	return page, nil
}

func (s *experimentService) Stats(ctx context.Context, projectID, accountID uuid.UUID) ([]domain.VariantStats, error) {
	const op = "ExperimentService.Stats"

	_, err := s.store.GetProjectByIDAndAccountID(ctx, repository.GetProjectByIDAndAccountIDParams{
		ID:        projectID,
		AccountID: accountID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "project", projectID.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve project")
	}

	rows, err := s.store.GetVariantStats(ctx, projectID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to load variant stats")
	}

	out := make([]domain.VariantStats, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.VariantStats{
			VariantID:   r.ID,
			Name:        r.Name,
			Traffic:     int(r.Traffic),
			Views:       r.Views,
			Conversions: r.Conversions,
		})
	}
	return out, nil
}
