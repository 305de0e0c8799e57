package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

const exportColumns = `id, project_id, status, storage_key, row_count, completed_at, created_at`

func scanExport(row interface{ Scan(...interface{}) error }) (Export, error) {
	var i Export
	err := row.Scan(
		&i.ID,
		&i.ProjectID,
		&i.Status,
		&i.StorageKey,
		&i.RowCount,
		&i.CompletedAt,
		&i.CreatedAt,
	)
	return i, err
}

const createExport = `-- name: CreateExport :one
INSERT INTO exports (project_id) VALUES ($1)
RETURNING ` + exportColumns

func (q *Queries) CreateExport(ctx context.Context, projectID uuid.UUID) (Export, error) {
	return scanExport(q.db.QueryRowContext(ctx, createExport, projectID))
}

const getExportByID = `-- name: GetExportByID :one
SELECT ` + exportColumns + ` FROM exports WHERE id = $1`

func (q *Queries) GetExportByID(ctx context.Context, id uuid.UUID) (Export, error) {
	return scanExport(q.db.QueryRowContext(ctx, getExportByID, id))
}

const completeExport = `-- name: CompleteExport :exec
UPDATE exports
SET status = $2, storage_key = $3, row_count = $4, completed_at = NOW()
WHERE id = $1`

type CompleteExportParams struct {
	ID         uuid.UUID      `json:"id"`
	Status     string         `json:"status"`
	StorageKey sql.NullString `json:"storage_key"`
	RowCount   int32          `json:"row_count"`
}

func (q *Queries) CompleteExport(ctx context.Context, arg CompleteExportParams) error {
	_, err := q.db.ExecContext(ctx, completeExport, arg.ID, arg.Status, arg.StorageKey, arg.RowCount)
	return err
}
