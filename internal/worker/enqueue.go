package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DukeRupert/waitlist/internal/repository"
	"github.com/google/uuid"
)

// Job type constants - these must match the JobHandler.Type() values
const (
	JobTypeSendCampaign  = "send_campaign"
	JobTypeExportSignups = "export_signups"
)

// Priority constants for job scheduling
const (
	PriorityLow    = 0
	PriorityNormal = 10
	PriorityHigh   = 20
)

// SendCampaignPayload is the payload for campaign delivery jobs.
type SendCampaignPayload struct {
	CampaignID uuid.UUID `json:"campaign_id"`
	AccountID  uuid.UUID `json:"account_id"`
}

// ExportSignupsPayload is the payload for CSV export jobs.
type ExportSignupsPayload struct {
	ExportID  uuid.UUID `json:"export_id"`
	ProjectID uuid.UUID `json:"project_id"`
	AccountID uuid.UUID `json:"account_id"`
}

// Enqueuer is the subset of repository.Querier needed to add jobs. Passing a
// transactional Querier enqueues atomically with the caller's writes.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, arg repository.EnqueueJobParams) (repository.Job, error)
}

// EnqueueOption is a functional option for customizing job enqueue parameters.
type EnqueueOption func(*repository.EnqueueJobParams)

// WithPriority sets the job priority.
func WithPriority(priority int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.Priority = priority
	}
}

// WithMaxAttempts sets the maximum number of retry attempts.
func WithMaxAttempts(attempts int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.MaxAttempts = attempts
	}
}

// WithDelay schedules the job to run after a delay.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.ScheduledAt = time.Now().Add(delay)
	}
}

// EnqueueJob marshals payload and inserts a pending job.
func EnqueueJob(
	ctx context.Context,
	q Enqueuer,
	jobType string,
	payload interface{},
	opts ...EnqueueOption,
) (repository.Job, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return repository.Job{}, fmt.Errorf("marshal payload: %w", err)
	}

	params := repository.EnqueueJobParams{
		JobType:     jobType,
		Payload:     payloadJSON,
		Priority:    PriorityNormal,
		MaxAttempts: 3,
		ScheduledAt: time.Now(),
	}
	for _, opt := range opts {
		opt(&params)
	}

	job, err := q.EnqueueJob(ctx, params)
	if err != nil {
		return repository.Job{}, fmt.Errorf("enqueue job: %w", err)
	}
	return job, nil
}

// EnqueueSendCampaign enqueues delivery of a queued campaign.
func EnqueueSendCampaign(
	ctx context.Context,
	q Enqueuer,
	campaignID uuid.UUID,
	accountID uuid.UUID,
	opts ...EnqueueOption,
) (repository.Job, error) {
	payload := SendCampaignPayload{
		CampaignID: campaignID,
		AccountID:  accountID,
	}
	return EnqueueJob(ctx, q, JobTypeSendCampaign, payload, opts...)
}

// EnqueueExportSignups enqueues a CSV export of a project's signups.
func EnqueueExportSignups(
	ctx context.Context,
	q Enqueuer,
	exportID uuid.UUID,
	projectID uuid.UUID,
	accountID uuid.UUID,
	opts ...EnqueueOption,
) (repository.Job, error) {
	payload := ExportSignupsPayload{
		ExportID:  exportID,
		ProjectID: projectID,
		AccountID: accountID,
	}
	return EnqueueJob(ctx, q, JobTypeExportSignups, payload, opts...)
}
