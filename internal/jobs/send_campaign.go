package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DukeRupert/waitlist/internal/domain"
	"github.com/DukeRupert/waitlist/internal/email"
	"github.com/DukeRupert/waitlist/internal/metrics"
	"github.com/DukeRupert/waitlist/internal/repository"
	"github.com/DukeRupert/waitlist/internal/worker"
	"github.com/google/uuid"
)

// SendCampaignHandler delivers a queued campaign to every signup of its project.
type SendCampaignHandler struct {
	queries      repository.Querier
	emailService email.EmailService
	logger       *slog.Logger
	now          func() time.Time
}

// NewSendCampaignHandler creates a new handler for campaign delivery jobs.
func NewSendCampaignHandler(
	queries repository.Querier,
	emailService email.EmailService,
	logger *slog.Logger,
) *SendCampaignHandler {
	return &SendCampaignHandler{
		queries:      queries,
		emailService: emailService,
		logger:       logger,
		now:          time.Now,
	}
}

// Type returns the job type identifier.
func (h *SendCampaignHandler) Type() string {
	return worker.JobTypeSendCampaign
}

// Handle executes the campaign delivery job.
//
// Individual delivery failures are counted, not retried. Only storage errors
// make the job retry, and a retry resumes a campaign left in 'sending'.
//
// Each outcome is recorded per signup, so a resumed or re-queued campaign
// skips recipients already sent to. Delivery is still at-least-once: if the
// job dies between sending a message and recording it, that one recipient
// is emailed again on retry.
func (h *SendCampaignHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.SendCampaignPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.Permanentf("invalid payload: %w", err)
	}

	campaign, err := h.queries.GetCampaignByID(ctx, p.CampaignID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return worker.Permanentf("campaign not found: %s", p.CampaignID)
		}
		return fmt.Errorf("fetch campaign: %w", err)
	}

	project, err := h.queries.GetProjectByIDAndAccountID(ctx, repository.GetProjectByIDAndAccountIDParams{
		ID:        campaign.ProjectID,
		AccountID: p.AccountID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return worker.Permanentf("project %s not owned by account %s", campaign.ProjectID, p.AccountID)
		}
		return fmt.Errorf("fetch project: %w", err)
	}

	logger := h.logger.With("campaign_id", campaign.ID, "project_id", project.ID)

	switch domain.CampaignStatus(campaign.Status) {
	case domain.CampaignQueued:
		err := h.queries.UpdateCampaignStatus(ctx, repository.UpdateCampaignStatusParams{
			ID:     campaign.ID,
			Status: string(domain.CampaignSending),
		})
		if err != nil {
			return fmt.Errorf("mark campaign sending: %w", err)
		}
	case domain.CampaignSending:
		logger.Warn("Resuming campaign left in sending state")
	case domain.CampaignSent:
		logger.Info("Campaign already sent, skipping")
		return nil
	default:
		return worker.Permanentf("campaign %s is %s, not queued", campaign.ID, campaign.Status)
	}

	signups, err := h.queries.ListAllSignupsByProjectID(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("list signups: %w", err)
	}

	deliveries, err := h.queries.ListCampaignDeliveries(ctx, campaign.ID)
	if err != nil {
		return fmt.Errorf("list deliveries: %w", err)
	}
	done := make(map[uuid.UUID]bool, len(deliveries))
	for _, d := range deliveries {
		if domain.DeliveryStatus(d.Status) == domain.DeliverySent {
			done[d.SignupID] = true
		}
	}

	logger.Info("Sending campaign", "recipients", len(signups), "already_sent", len(done))

	var sent, failed int32
	for _, s := range signups {
		if done[s.ID] {
			sent++
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		err := h.emailService.SendCampaignEmail(ctx, email.CampaignMessage{
			To:           s.Email,
			ProjectName:  project.Name,
			Subject:      campaign.Subject,
			Body:         campaign.Body,
			ReferralCode: s.ReferralCode,
		})
		metrics.CampaignEmailSent(err == nil)

		status := domain.DeliverySent
		if err != nil {
			status = domain.DeliveryFailed
			failed++
			logger.Warn("Campaign email failed", "signup_id", s.ID, "error", err)
		} else {
			sent++
		}

		if err := h.queries.RecordCampaignDelivery(ctx, repository.RecordCampaignDeliveryParams{
			CampaignID: campaign.ID,
			SignupID:   s.ID,
			Status:     string(status),
		}); err != nil {
			return fmt.Errorf("record delivery: %w", err)
		}
	}

	status := domain.CampaignSent
	if sent == 0 && failed > 0 {
		status = domain.CampaignFailed
	}

	err = h.queries.CompleteCampaign(ctx, repository.CompleteCampaignParams{
		ID:          campaign.ID,
		Status:      string(status),
		SentCount:   sent,
		FailedCount: failed,
		SentAt:      sql.NullTime{Time: h.now(), Valid: true},
	})
	if err != nil {
		return fmt.Errorf("complete campaign: %w", err)
	}

	logger.Info("Campaign finished",
		"status", status,
		"sent", sent,
		"failed", failed,
	)
	return nil
}

var _ worker.JobHandler = (*SendCampaignHandler)(nil)
