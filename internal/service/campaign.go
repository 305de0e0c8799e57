package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/DukeRupert/waitlist/internal/domain"
	"github.com/DukeRupert/waitlist/internal/repository"
	"github.com/DukeRupert/waitlist/internal/worker"
	"github.com/google/uuid"
)

// CampaignService manages email campaigns to a project's waitlist.
type CampaignService interface {
	// Create saves a draft campaign.
	Create(ctx context.Context, params domain.CreateCampaignParams) (*domain.Campaign, error)

	// List returns a project's campaigns, newest first.
	List(ctx context.Context, projectID, accountID uuid.UUID) ([]domain.Campaign, error)

	// Get returns one campaign if the account owns its project.
	Get(ctx context.Context, id, accountID uuid.UUID) (*domain.Campaign, error)

	// Send queues a draft or failed campaign for delivery.
	// Returns domain.EINVALID if the campaign is already queued, sending or sent.
	Send(ctx context.Context, id, accountID uuid.UUID) (*domain.Campaign, error)
}

type campaignService struct {
	store  repository.Store
	logger *slog.Logger
}

// NewCampaignService creates a new CampaignService instance.
func NewCampaignService(store repository.Store, logger *slog.Logger) CampaignService {
	return &campaignService{
		store:  store,
		logger: logger,
	}
}

func (s *campaignService) ensureOwner(ctx context.Context, op string, projectID, accountID uuid.UUID) error {
	_, err := s.store.GetProjectByIDAndAccountID(ctx, repository.GetProjectByIDAndAccountIDParams{
		ID:        projectID,
		AccountID: accountID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "project", projectID.String())
		}
		return domain.Internal(err, op, "Failed to retrieve project")
	}
	return nil
}

func (s *campaignService) Create(ctx context.Context, params domain.CreateCampaignParams) (*domain.Campaign, error) {
	const op = "CampaignService.Create"

	params.Subject = strings.TrimSpace(params.Subject)
	params.Body = strings.TrimSpace(params.Body)

	var verr *domain.ValidationError
	if params.Subject == "" {
		verr = domain.NewValidationError(op, "subject", "Subject is required")
	} else if len(params.Subject) > domain.MaxCampaignSubjectLength {
		verr = domain.NewValidationError(op, "subject", "Subject must be 200 characters or less")
	}
	if params.Body == "" {
		if verr == nil {
			verr = domain.NewValidationError(op, "body", "Body is required")
		} else {
			verr.Fields["body"] = "Body is required"
		}
	}
	if verr != nil {
		return nil, verr
	}

	if err := s.ensureOwner(ctx, op, params.ProjectID, params.AccountID); err != nil {
		return nil, err
	}

	row, err := s.store.CreateCampaign(ctx, repository.CreateCampaignParams{
		ProjectID: params.ProjectID,
		Subject:   params.Subject,
		Body:      params.Body,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to create campaign")
	}

	s.logger.Info("campaign created", "campaign_id", row.ID, "project_id", row.ProjectID)
	return campaignFromRepo(row), nil
}

func (s *campaignService) List(ctx context.Context, projectID, accountID uuid.UUID) ([]domain.Campaign, error) {
	const op = "CampaignService.List"

	if err := s.ensureOwner(ctx, op, projectID, accountID); err != nil {
		return nil, err
	}

	rows, err := s.store.ListCampaignsByProjectID(ctx, projectID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list campaigns")
	}

	out := make([]domain.Campaign, 0, len(rows))
	for _, r := range rows {
		out = append(out, *campaignFromRepo(r))
	}
	return out, nil
}

func (s *campaignService) Get(ctx context.Context, id, accountID uuid.UUID) (*domain.Campaign, error) {
	const op = "CampaignService.Get"

	row, err := s.store.GetCampaignByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "campaign", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve campaign")
	}

	// Someone else's campaign is reported as missing.
	if err := s.ensureOwner(ctx, op, row.ProjectID, accountID); err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			return nil, domain.NotFound(op, "campaign", id.String())
		}
		return nil, err
	}
	return campaignFromRepo(row), nil
}

// Send marks the campaign queued and enqueues delivery in one transaction.
func (s *campaignService) Send(ctx context.Context, id, accountID uuid.UUID) (*domain.Campaign, error) {
	const op = "CampaignService.Send"

	campaign, err := s.Get(ctx, id, accountID)
	if err != nil {
		return nil, err
	}

	if err := campaign.TransitionTo(domain.CampaignQueued); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, domain.ErrorMessage(err))
	}

	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		if err := q.UpdateCampaignStatus(ctx, repository.UpdateCampaignStatusParams{
			ID:     campaign.ID,
			Status: string(campaign.Status),
		}); err != nil {
			return err
		}
		_, err := worker.EnqueueSendCampaign(ctx, q, campaign.ID, accountID)
		return err
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to queue campaign")
	}

	s.logger.Info("campaign queued", "campaign_id", campaign.ID, "project_id", campaign.ProjectID)
	return campaign, nil
}
