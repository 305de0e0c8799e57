package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

const projectColumns = `id, account_id, name, slug, description, logo_url, primary_color,
    ab_testing_enabled, created_at, updated_at`

func scanProject(row interface{ Scan(...interface{}) error }) (Project, error) {
	var i Project
	err := row.Scan(
		&i.ID,
		&i.AccountID,
		&i.Name,
		&i.Slug,
		&i.Description,
		&i.LogoURL,
		&i.PrimaryColor,
		&i.AbTestingEnabled,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createProject = `-- name: CreateProject :one
INSERT INTO projects (account_id, name, slug, description, primary_color)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + projectColumns

type CreateProjectParams struct {
	AccountID    uuid.UUID      `json:"account_id"`
	Name         string         `json:"name"`
	Slug         string         `json:"slug"`
	Description  sql.NullString `json:"description"`
	PrimaryColor string         `json:"primary_color"`
}

func (q *Queries) CreateProject(ctx context.Context, arg CreateProjectParams) (Project, error) {
	row := q.db.QueryRowContext(ctx, createProject,
		arg.AccountID,
		arg.Name,
		arg.Slug,
		arg.Description,
		arg.PrimaryColor,
	)
	return scanProject(row)
}

const getProjectByID = `-- name: GetProjectByID :one
SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

func (q *Queries) GetProjectByID(ctx context.Context, id uuid.UUID) (Project, error) {
	return scanProject(q.db.QueryRowContext(ctx, getProjectByID, id))
}

const getProjectByIDAndAccountID = `-- name: GetProjectByIDAndAccountID :one
SELECT ` + projectColumns + ` FROM projects WHERE id = $1 AND account_id = $2`

type GetProjectByIDAndAccountIDParams struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
}

func (q *Queries) GetProjectByIDAndAccountID(ctx context.Context, arg GetProjectByIDAndAccountIDParams) (Project, error) {
	return scanProject(q.db.QueryRowContext(ctx, getProjectByIDAndAccountID, arg.ID, arg.AccountID))
}

const getProjectBySlug = `-- name: GetProjectBySlug :one
SELECT ` + projectColumns + ` FROM projects WHERE slug = $1`

func (q *Queries) GetProjectBySlug(ctx context.Context, slug string) (Project, error) {
	return scanProject(q.db.QueryRowContext(ctx, getProjectBySlug, slug))
}

const listProjectsByAccountID = `-- name: ListProjectsByAccountID :many
SELECT ` + projectColumns + ` FROM projects
WHERE account_id = $1
ORDER BY created_at DESC`

func (q *Queries) ListProjectsByAccountID(ctx context.Context, accountID uuid.UUID) ([]Project, error) {
	rows, err := q.db.QueryContext(ctx, listProjectsByAccountID, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Project
	for rows.Next() {
		i, err := scanProject(rows)
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

const countProjectsByAccountID = `-- name: CountProjectsByAccountID :one
SELECT COUNT(*) FROM projects WHERE account_id = $1`

func (q *Queries) CountProjectsByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	row := q.db.QueryRowContext(ctx, countProjectsByAccountID, accountID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const projectSlugExists = `-- name: ProjectSlugExists :one
SELECT EXISTS (SELECT 1 FROM projects WHERE slug = $1)`

func (q *Queries) ProjectSlugExists(ctx context.Context, slug string) (bool, error) {
	row := q.db.QueryRowContext(ctx, projectSlugExists, slug)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

const updateProject = `-- name: UpdateProject :one
UPDATE projects
SET name = $3,
    description = $4,
    primary_color = $5,
    ab_testing_enabled = $6,
    updated_at = NOW()
WHERE id = $1 AND account_id = $2
RETURNING ` + projectColumns

type UpdateProjectParams struct {
	ID               uuid.UUID      `json:"id"`
	AccountID        uuid.UUID      `json:"account_id"`
	Name             string         `json:"name"`
	Description      sql.NullString `json:"description"`
	PrimaryColor     string         `json:"primary_color"`
	AbTestingEnabled bool           `json:"ab_testing_enabled"`
}

func (q *Queries) UpdateProject(ctx context.Context, arg UpdateProjectParams) (Project, error) {
	row := q.db.QueryRowContext(ctx, updateProject,
		arg.ID,
		arg.AccountID,
		arg.Name,
		arg.Description,
		arg.PrimaryColor,
		arg.AbTestingEnabled,
	)
	return scanProject(row)
}

const updateProjectLogo = `-- name: UpdateProjectLogo :exec
UPDATE projects SET logo_url = $2, updated_at = NOW() WHERE id = $1`

type UpdateProjectLogoParams struct {
	ID      uuid.UUID      `json:"id"`
	LogoURL sql.NullString `json:"logo_url"`
}

func (q *Queries) UpdateProjectLogo(ctx context.Context, arg UpdateProjectLogoParams) error {
	_, err := q.db.ExecContext(ctx, updateProjectLogo, arg.ID, arg.LogoURL)
	return err
}

const deleteProjectByIDAndAccountID = `-- name: DeleteProjectByIDAndAccountID :execrows
DELETE FROM projects WHERE id = $1 AND account_id = $2`

type DeleteProjectByIDAndAccountIDParams struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
}

func (q *Queries) DeleteProjectByIDAndAccountID(ctx context.Context, arg DeleteProjectByIDAndAccountIDParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteProjectByIDAndAccountID, arg.ID, arg.AccountID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
