package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/DukeRupert/waitlist/internal/domain"
	"github.com/DukeRupert/waitlist/internal/repository"
	"github.com/DukeRupert/waitlist/internal/storage"
	"github.com/google/uuid"
)

// maxSlugAttempts bounds the suffix search for a free slug.
const maxSlugAttempts = 20

// ProjectService manages waitlist projects and their A/B variants.
type ProjectService interface {
	// Create creates a project if the account's plan allows another one.
	// Returns domain.EFORBIDDEN when the subscription gate is closed.
	Create(ctx context.Context, account *domain.Account, params domain.CreateProjectParams) (*domain.Project, error)

	// List returns the account's projects, newest first.
	List(ctx context.Context, accountID uuid.UUID) ([]domain.Project, error)

	// Get returns a project owned by the account.
	Get(ctx context.Context, id, accountID uuid.UUID) (*domain.Project, error)

	// GetBySlug returns a project by its public slug.
	GetBySlug(ctx context.Context, slug string) (*domain.Project, error)

	// Update changes a project's settings.
	Update(ctx context.Context, params domain.UpdateProjectParams) (*domain.Project, error)

	// Delete removes a project and everything under it.
	Delete(ctx context.Context, id, accountID uuid.UUID) error

	// Variants returns the project's variants in order.
	Variants(ctx context.Context, id, accountID uuid.UUID) ([]domain.Variant, error)

	// SetVariants replaces the project's variant list. Inputs carrying an
	// existing variant ID are updated in place, others are created, and
	// variants left out are deleted. Weights that do not sum to 100 are
	// saved with a warning.
	SetVariants(ctx context.Context, id, accountID uuid.UUID, inputs []domain.VariantInput) (*domain.SetVariantsResult, error)

	// UploadLogo normalizes and stores a logo, returning its URL.
	UploadLogo(ctx context.Context, id, accountID uuid.UUID, data io.Reader, contentType string) (string, error)
}

type projectService struct {
	store         repository.Store
	subscriptions SubscriptionService
	storage       storage.Storage
	logos         LogoProcessor
	logger        *slog.Logger
}

// NewProjectService creates a new ProjectService instance.
func NewProjectService(
	store repository.Store,
	subscriptions SubscriptionService,
	storage storage.Storage,
	logos LogoProcessor,
	logger *slog.Logger,
) ProjectService {
	return &projectService{
		store:         store,
		subscriptions: subscriptions,
		storage:       storage,
		logos:         logos,
		logger:        logger,
	}
}

func validateProjectFields(op, name, color string) error {
	var verr *domain.ValidationError
	if name == "" {
		verr = domain.NewValidationError(op, "name", "Name is required")
	} else if len(name) > domain.MaxProjectNameLength {
		verr = domain.NewValidationError(op, "name", fmt.Sprintf("Name must be %d characters or less", domain.MaxProjectNameLength))
	}
	if color != "" && !domain.ValidHexColor(color) {
		if verr == nil {
			verr = domain.NewValidationError(op, "primary_color", "Color must look like #RRGGBB")
		} else {
			domain.AddFieldError(verr, "primary_color", "Color must look like #RRGGBB")
		}
	}
	if verr != nil {
		return verr
	}
	return nil
}

// Create creates a project after the subscription gate passes.
func (s *projectService) Create(ctx context.Context, account *domain.Account, params domain.CreateProjectParams) (*domain.Project, error) {
	const op = "ProjectService.Create"

	params.Name = strings.TrimSpace(params.Name)
	params.Description = strings.TrimSpace(params.Description)
	if err := validateProjectFields(op, params.Name, params.PrimaryColor); err != nil {
		return nil, err
	}
	if params.PrimaryColor == "" {
		params.PrimaryColor = domain.DefaultPrimaryColor
	}

	slug, err := s.uniqueSlug(ctx, op, params.Name)
	if err != nil {
		return nil, err
	}

	// Count and insert run under the account row lock.
	var row repository.Project
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		if err := q.LockAccountForProjectCreation(ctx, account.ID); err != nil {
			return err
		}
		if err := s.subscriptions.CheckProjectCreation(ctx, q, account.ID); err != nil {
			return err
		}

		created, err := q.CreateProject(ctx, repository.CreateProjectParams{
			AccountID:    account.ID,
			Name:         params.Name,
			Slug:         slug,
			Description:  domain.ToNullString(params.Description),
			PrimaryColor: params.PrimaryColor,
		})
		if err != nil {
			if repository.IsUniqueViolation(err) {
				return domain.Conflict(op, "A project with that name already exists")
			}
			return err
		}
		row = created
		return nil
	})
	if err != nil {
		return nil, txError(err, op, "Failed to create project")
	}

	s.logger.Info("project created", "project_id", row.ID, "account_id", account.ID, "slug", slug)
	return projectFromRepo(row), nil
}

// uniqueSlug returns the slugified name, suffixed with -2, -3, ... if taken.
func (s *projectService) uniqueSlug(ctx context.Context, op, name string) (string, error) {
	base := domain.Slugify(name)
	if base == "" {
		base = "waitlist"
	}

	candidate := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		exists, err := s.store.ProjectSlugExists(ctx, candidate)
		if err != nil {
			return "", domain.Internal(err, op, "Failed to check slug availability")
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", domain.Conflict(op, "Could not find a free URL for this project name")
}

// List returns the account's projects.
func (s *projectService) List(ctx context.Context, accountID uuid.UUID) ([]domain.Project, error) {
	const op = "ProjectService.List"

	rows, err := s.store.ListProjectsByAccountID(ctx, accountID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list projects")
	}

	projects := make([]domain.Project, 0, len(rows))
	for _, r := range rows {
		projects = append(projects, *projectFromRepo(r))
	}
	return projects, nil
}

func (s *projectService) getOwned(ctx context.Context, op string, id, accountID uuid.UUID) (*domain.Project, error) {
	row, err := s.store.GetProjectByIDAndAccountID(ctx, repository.GetProjectByIDAndAccountIDParams{
		ID:        id,
		AccountID: accountID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "project", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve project")
	}
	return projectFromRepo(row), nil
}

// Get returns a project owned by the account.
func (s *projectService) Get(ctx context.Context, id, accountID uuid.UUID) (*domain.Project, error) {
	return s.getOwned(ctx, "ProjectService.Get", id, accountID)
}

// GetBySlug returns a project by its slug.
func (s *projectService) GetBySlug(ctx context.Context, slug string) (*domain.Project, error) {
	const op = "ProjectService.GetBySlug"

	row, err := s.store.GetProjectBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "project", slug)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve project")
	}
	return projectFromRepo(row), nil
}

// Update changes a project's settings.
func (s *projectService) Update(ctx context.Context, params domain.UpdateProjectParams) (*domain.Project, error) {
	const op = "ProjectService.Update"

	params.Name = strings.TrimSpace(params.Name)
	params.Description = strings.TrimSpace(params.Description)
	if err := validateProjectFields(op, params.Name, params.PrimaryColor); err != nil {
		return nil, err
	}
	if params.PrimaryColor == "" {
		params.PrimaryColor = domain.DefaultPrimaryColor
	}

	row, err := s.store.UpdateProject(ctx, repository.UpdateProjectParams{
		ID:               params.ID,
		AccountID:        params.AccountID,
		Name:             params.Name,
		Description:      domain.ToNullString(params.Description),
		PrimaryColor:     params.PrimaryColor,
		AbTestingEnabled: params.ABTestingEnabled,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "project", params.ID.String())
		}
		return nil, domain.Internal(err, op, "Failed to update project")
	}

	s.logger.Info("project updated", "project_id", row.ID, "ab_testing", row.AbTestingEnabled)
	return projectFromRepo(row), nil
}

// Delete removes a project owned by the account.
func (s *projectService) Delete(ctx context.Context, id, accountID uuid.UUID) error {
	const op = "ProjectService.Delete"

	n, err := s.store.DeleteProjectByIDAndAccountID(ctx, repository.DeleteProjectByIDAndAccountIDParams{
		ID:        id,
		AccountID: accountID,
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to delete project")
	}
	if n == 0 {
		return domain.NotFound(op, "project", id.String())
	}

	s.logger.Info("project deleted", "project_id", id, "account_id", accountID)
	return nil
}

// Variants returns the project's variants.
func (s *projectService) Variants(ctx context.Context, id, accountID uuid.UUID) ([]domain.Variant, error) {
	const op = "ProjectService.Variants"

	if _, err := s.getOwned(ctx, op, id, accountID); err != nil {
		return nil, err
	}

	rows, err := s.store.ListVariantsByProjectID(ctx, id)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list variants")
	}
	return variantsFromRepo(rows), nil
}

// SetVariants reconciles the variant list in a single transaction. Editing a
// variant keeps its ID so recorded exposures and conversions survive.
func (s *projectService) SetVariants(ctx context.Context, id, accountID uuid.UUID, inputs []domain.VariantInput) (*domain.SetVariantsResult, error) {
	const op = "ProjectService.SetVariants"

	seen := make(map[uuid.UUID]bool, len(inputs))
	for i, in := range inputs {
		if strings.TrimSpace(in.Name) == "" {
			return nil, domain.NewValidationError(op, fmt.Sprintf("variants[%d].name", i), "Name is required")
		}
		if in.Traffic < 0 || in.Traffic > domain.TrafficTotal {
			return nil, domain.NewValidationError(op, fmt.Sprintf("variants[%d].traffic", i), "Traffic must be between 0 and 100")
		}
		if in.ID != nil {
			if seen[*in.ID] {
				return nil, domain.NewValidationError(op, fmt.Sprintf("variants[%d].id", i), "Variant listed more than once")
			}
			seen[*in.ID] = true
		}
	}

	if _, err := s.getOwned(ctx, op, id, accountID); err != nil {
		return nil, err
	}

	var saved []repository.Variant
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		existing, err := q.ListVariantsByProjectID(ctx, id)
		if err != nil {
			return err
		}
		owned := make(map[uuid.UUID]bool, len(existing))
		for _, v := range existing {
			owned[v.ID] = true
		}

		keep := make([]uuid.UUID, 0, len(seen))
		for i, in := range inputs {
			if in.ID == nil {
				continue
			}
			if !owned[*in.ID] {
				return domain.NewValidationError(op, fmt.Sprintf("variants[%d].id", i), "Variant does not belong to this project")
			}
			keep = append(keep, *in.ID)
		}

		deleted, err := q.DeleteVariantsExcept(ctx, repository.DeleteVariantsExceptParams{ProjectID: id, Keep: keep})
		if err != nil {
			return err
		}
		if deleted > 0 {
			s.logger.Info("variants removed", "project_id", id, "count", deleted)
		}

		// Updates run before inserts so new rows never take a position
		// still held by a kept variant.
		saved = make([]repository.Variant, len(inputs))
		for i, in := range inputs {
			if in.ID == nil {
				continue
			}
			v, err := q.UpdateVariant(ctx, repository.UpdateVariantParams{
				ID:          *in.ID,
				ProjectID:   id,
				Name:        strings.TrimSpace(in.Name),
				Traffic:     int32(in.Traffic),
				Position:    int32(i),
				Headline:    domain.ToNullString(in.Headline),
				Description: domain.ToNullString(in.Description),
				CtaText:     domain.ToNullString(in.CTAText),
			})
			if err != nil {
				return err
			}
			saved[i] = v
		}
		for i, in := range inputs {
			if in.ID != nil {
				continue
			}
			v, err := q.CreateVariant(ctx, repository.CreateVariantParams{
				ProjectID:   id,
				Name:        strings.TrimSpace(in.Name),
				Traffic:     int32(in.Traffic),
				Position:    int32(i),
				Headline:    domain.ToNullString(in.Headline),
				Description: domain.ToNullString(in.Description),
				CtaText:     domain.ToNullString(in.CTAText),
			})
			if err != nil {
				return err
			}
			saved[i] = v
		}
		return nil
	})
	if err != nil {
		return nil, txError(err, op, "Failed to save variants")
	}

	variants := variantsFromRepo(saved)
	total, ok := domain.ValidateTraffic(variants)
	result := &domain.SetVariantsResult{Variants: variants, TrafficTotal: total}
	if !ok && len(variants) > 0 {
		result.Warning = fmt.Sprintf("Traffic adds up to %d%%, not 100%%. Visitors outside the allocated range see the first variant.", total)
		s.logger.Warn("variant traffic does not sum to 100", "project_id", id, "total", total)
	}

	s.logger.Info("variants updated", "project_id", id, "count", len(variants))
	return result, nil
}

// UploadLogo validates, normalizes and stores a project logo.
func (s *projectService) UploadLogo(ctx context.Context, id, accountID uuid.UUID, data io.Reader, contentType string) (string, error) {
	const op = "ProjectService.UploadLogo"

	if !storage.IsAllowedLogoType(contentType) {
		return "", domain.Invalid(op, "Logo must be a JPEG, PNG or GIF image")
	}

	project, err := s.getOwned(ctx, op, id, accountID)
	if err != nil {
		return "", err
	}

	raw, err := io.ReadAll(io.LimitReader(data, MaxLogoUploadBytes+1))
	if err != nil {
		return "", domain.Internal(err, op, "Failed to read upload")
	}
	if len(raw) > MaxLogoUploadBytes {
		return "", domain.Invalid(op, "Logo must be 5 MB or smaller")
	}

	normalized, err := s.logos.Normalize(bytes.NewReader(raw), LogoMaxSize)
	if err != nil {
		return "", domain.Wrap(err, domain.EINVALID, op, "Could not read the uploaded image")
	}

	key := storage.LogoKey(project.ID)
	err = s.storage.Put(ctx, key, bytes.NewReader(normalized), storage.PutOptions{
		ContentType: storage.ContentTypeJPEG,
		Public:      true,
	})
	if err != nil {
		return "", domain.Internal(err, op, "Failed to store logo")
	}

	url, err := s.storage.URL(ctx, key, 0)
	if err != nil {
		return "", domain.Internal(err, op, "Failed to build logo URL")
	}

	if err := s.store.UpdateProjectLogo(ctx, repository.UpdateProjectLogoParams{
		ID:      project.ID,
		LogoURL: domain.ToNullString(url),
	}); err != nil {
		return "", domain.Internal(err, op, "Failed to save logo")
	}

	s.logger.Info("project logo updated", "project_id", project.ID, "bytes", len(normalized))
	return url, nil
}
