package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

const campaignColumns = `id, project_id, subject, body, status, sent_count, failed_count, sent_at, created_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (Campaign, error) {
	var i Campaign
	err := row.Scan(
		&i.ID,
		&i.ProjectID,
		&i.Subject,
		&i.Body,
		&i.Status,
		&i.SentCount,
		&i.FailedCount,
		&i.SentAt,
		&i.CreatedAt,
	)
	return i, err
}

const createCampaign = `-- name: CreateCampaign :one
INSERT INTO campaigns (project_id, subject, body)
VALUES ($1, $2, $3)
RETURNING ` + campaignColumns

type CreateCampaignParams struct {
	ProjectID uuid.UUID `json:"project_id"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
}

func (q *Queries) CreateCampaign(ctx context.Context, arg CreateCampaignParams) (Campaign, error) {
	return scanCampaign(q.db.QueryRowContext(ctx, createCampaign, arg.ProjectID, arg.Subject, arg.Body))
}

const getCampaignByID = `-- name: GetCampaignByID :one
SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`

func (q *Queries) GetCampaignByID(ctx context.Context, id uuid.UUID) (Campaign, error) {
	return scanCampaign(q.db.QueryRowContext(ctx, getCampaignByID, id))
}

const listCampaignsByProjectID = `-- name: ListCampaignsByProjectID :many
SELECT ` + campaignColumns + ` FROM campaigns
WHERE project_id = $1
ORDER BY created_at DESC`

func (q *Queries) ListCampaignsByProjectID(ctx context.Context, projectID uuid.UUID) ([]Campaign, error) {
	rows, err := q.db.QueryContext(ctx, listCampaignsByProjectID, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Campaign
	for rows.Next() {
		i, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateCampaignStatus = `-- name: UpdateCampaignStatus :exec
UPDATE campaigns SET status = $2 WHERE id = $1`

type UpdateCampaignStatusParams struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

func (q *Queries) UpdateCampaignStatus(ctx context.Context, arg UpdateCampaignStatusParams) error {
	_, err := q.db.ExecContext(ctx, updateCampaignStatus, arg.ID, arg.Status)
	return err
}

const completeCampaign = `-- name: CompleteCampaign :exec
UPDATE campaigns
SET status = $2, sent_count = $3, failed_count = $4, sent_at = $5
WHERE id = $1`

type CompleteCampaignParams struct {
	ID          uuid.UUID    `json:"id"`
	Status      string       `json:"status"`
	SentCount   int32        `json:"sent_count"`
	FailedCount int32        `json:"failed_count"`
	SentAt      sql.NullTime `json:"sent_at"`
}

func (q *Queries) CompleteCampaign(ctx context.Context, arg CompleteCampaignParams) error {
	_, err := q.db.ExecContext(ctx, completeCampaign,
		arg.ID,
		arg.Status,
		arg.SentCount,
		arg.FailedCount,
		arg.SentAt,
	)
	return err
}

const recordCampaignDelivery = `-- name: RecordCampaignDelivery :exec
INSERT INTO campaign_deliveries (campaign_id, signup_id, status)
VALUES ($1, $2, $3)
ON CONFLICT (campaign_id, signup_id) DO UPDATE SET status = EXCLUDED.status`

type RecordCampaignDeliveryParams struct {
	CampaignID uuid.UUID `json:"campaign_id"`
	SignupID   uuid.UUID `json:"signup_id"`
	Status     string    `json:"status"`
}

func (q *Queries) RecordCampaignDelivery(ctx context.Context, arg RecordCampaignDeliveryParams) error {
	_, err := q.db.ExecContext(ctx, recordCampaignDelivery, arg.CampaignID, arg.SignupID, arg.Status)
	return err
}

const listCampaignDeliveries = `-- name: ListCampaignDeliveries :many
SELECT campaign_id, signup_id, status, created_at FROM campaign_deliveries
WHERE campaign_id = $1`

func (q *Queries) ListCampaignDeliveries(ctx context.Context, campaignID uuid.UUID) ([]CampaignDelivery, error) {
	rows, err := q.db.QueryContext(ctx, listCampaignDeliveries, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CampaignDelivery
	for rows.Next() {
		var i CampaignDelivery
		if err := rows.Scan(&i.CampaignID, &i.SignupID, &i.Status, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
