package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

const variantColumns = `id, project_id, name, traffic, position, headline, description,
    cta_text, overrides, created_at`

func scanVariant(row interface{ Scan(...interface{}) error }) (Variant, error) {
	var i Variant
	err := row.Scan(
		&i.ID,
		&i.ProjectID,
		&i.Name,
		&i.Traffic,
		&i.Position,
		&i.Headline,
		&i.Description,
		&i.CtaText,
		&i.Overrides,
		&i.CreatedAt,
	)
	return i, err
}

const createVariant = `-- name: CreateVariant :one
INSERT INTO variants (project_id, name, traffic, position, headline, description, cta_text, overrides)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + variantColumns

type CreateVariantParams struct {
	ProjectID   uuid.UUID             `json:"project_id"`
	Name        string                `json:"name"`
	Traffic     int32                 `json:"traffic"`
	Position    int32                 `json:"position"`
	Headline    sql.NullString        `json:"headline"`
	Description sql.NullString        `json:"description"`
	CtaText     sql.NullString        `json:"cta_text"`
	Overrides   pqtype.NullRawMessage `json:"overrides"`
}

func (q *Queries) CreateVariant(ctx context.Context, arg CreateVariantParams) (Variant, error) {
	row := q.db.QueryRowContext(ctx, createVariant,
		arg.ProjectID,
		arg.Name,
		arg.Traffic,
		arg.Position,
		arg.Headline,
		arg.Description,
		arg.CtaText,
		arg.Overrides,
	)
	return scanVariant(row)
}

const listVariantsByProjectID = `-- name: ListVariantsByProjectID :many
SELECT ` + variantColumns + ` FROM variants
WHERE project_id = $1
ORDER BY position`

func (q *Queries) ListVariantsByProjectID(ctx context.Context, projectID uuid.UUID) ([]Variant, error) {
	rows, err := q.db.QueryContext(ctx, listVariantsByProjectID, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Variant
	for rows.Next() {
		i, err := scanVariant(rows)
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

const updateVariant = `-- name: UpdateVariant :one
UPDATE variants
SET name = $3, traffic = $4, position = $5, headline = $6, description = $7, cta_text = $8
WHERE id = $1 AND project_id = $2
RETURNING ` + variantColumns

type UpdateVariantParams struct {
	ID          uuid.UUID      `json:"id"`
	ProjectID   uuid.UUID      `json:"project_id"`
	Name        string         `json:"name"`
	Traffic     int32          `json:"traffic"`
	Position    int32          `json:"position"`
	Headline    sql.NullString `json:"headline"`
	Description sql.NullString `json:"description"`
	CtaText     sql.NullString `json:"cta_text"`
}

func (q *Queries) UpdateVariant(ctx context.Context, arg UpdateVariantParams) (Variant, error) {
	row := q.db.QueryRowContext(ctx, updateVariant,
		arg.ID,
		arg.ProjectID,
		arg.Name,
		arg.Traffic,
		arg.Position,
		arg.Headline,
		arg.Description,
		arg.CtaText,
	)
	return scanVariant(row)
}

const deleteVariantsExcept = `-- name: DeleteVariantsExcept :execrows
DELETE FROM variants
WHERE project_id = $1 AND id <> ALL($2::uuid[])`

type DeleteVariantsExceptParams struct {
	ProjectID uuid.UUID   `json:"project_id"`
	Keep      []uuid.UUID `json:"keep"`
}

// DeleteVariantsExcept removes a project's variants whose id is not in Keep.
// Exposures cascade and converted signups lose their variant_id.
func (q *Queries) DeleteVariantsExcept(ctx context.Context, arg DeleteVariantsExceptParams) (int64, error) {
	keep := make([]string, len(arg.Keep))
	for i, id := range arg.Keep {
		keep[i] = id.String()
	}
	result, err := q.db.ExecContext(ctx, deleteVariantsExcept, arg.ProjectID, pq.Array(keep))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const recordVariantExposure = `-- name: RecordVariantExposure :execrows
INSERT INTO variant_exposures (variant_id, session_id)
VALUES ($1, $2)
ON CONFLICT (variant_id, session_id) DO NOTHING`

type RecordVariantExposureParams struct {
	VariantID uuid.UUID `json:"variant_id"`
	SessionID string    `json:"session_id"`
}

func (q *Queries) RecordVariantExposure(ctx context.Context, arg RecordVariantExposureParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, recordVariantExposure, arg.VariantID, arg.SessionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getVariantStats = `-- name: GetVariantStats :many
SELECT v.id, v.name, v.traffic,
    (SELECT COUNT(*) FROM variant_exposures e WHERE e.variant_id = v.id) AS views,
    (SELECT COUNT(*) FROM signups s WHERE s.variant_id = v.id) AS conversions
FROM variants v
WHERE v.project_id = $1
ORDER BY v.position`

type GetVariantStatsRow struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Traffic     int32     `json:"traffic"`
	Views       int64     `json:"views"`
	Conversions int64     `json:"conversions"`
}

func (q *Queries) GetVariantStats(ctx context.Context, projectID uuid.UUID) ([]GetVariantStatsRow, error) {
	rows, err := q.db.QueryContext(ctx, getVariantStats, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetVariantStatsRow
	for rows.Next() {
		var i GetVariantStatsRow
		if err := rows.Scan(&i.ID, &i.Name, &i.Traffic, &i.Views, &i.Conversions); err != nil {
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
