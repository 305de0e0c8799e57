package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const signupColumns = `id, project_id, email, name, referral_code, referred_by, referral_count,
    position, tier, points, badges, variant_id, created_at`

func scanSignup(row interface{ Scan(...interface{}) error }) (Signup, error) {
	var i Signup
	err := row.Scan(
		&i.ID,
		&i.ProjectID,
		&i.Email,
		&i.Name,
		&i.ReferralCode,
		&i.ReferredBy,
		&i.ReferralCount,
		&i.Position,
		&i.Tier,
		&i.Points,
		pq.Array(&i.Badges),
		&i.VariantID,
		&i.CreatedAt,
	)
	return i, err
}

func scanSignups(rows *sql.Rows) ([]Signup, error) {
	defer rows.Close()
	var items []Signup
	for rows.Next() {
		i, err := scanSignup(rows)
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

const lockProjectForSignup = `-- name: LockProjectForSignup :exec
SELECT id FROM projects WHERE id = $1 FOR UPDATE`

// LockProjectForSignup serializes position assignment within a project for
// the rest of the transaction.
func (q *Queries) LockProjectForSignup(ctx context.Context, projectID uuid.UUID) error {
	row := q.db.QueryRowContext(ctx, lockProjectForSignup, projectID)
	var id uuid.UUID
	return row.Scan(&id)
}

const createSignup = `-- name: CreateSignup :one
INSERT INTO signups (project_id, email, name, referral_code, referred_by, position, tier, points, badges, variant_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + signupColumns

type CreateSignupParams struct {
	ProjectID    uuid.UUID      `json:"project_id"`
	Email        string         `json:"email"`
	Name         sql.NullString `json:"name"`
	ReferralCode string         `json:"referral_code"`
	ReferredBy   uuid.NullUUID  `json:"referred_by"`
	Position     int32          `json:"position"`
	Tier         string         `json:"tier"`
	Points       int32          `json:"points"`
	Badges       []string       `json:"badges"`
	VariantID    uuid.NullUUID  `json:"variant_id"`
}

func (q *Queries) CreateSignup(ctx context.Context, arg CreateSignupParams) (Signup, error) {
	row := q.db.QueryRowContext(ctx, createSignup,
		arg.ProjectID,
		arg.Email,
		arg.Name,
		arg.ReferralCode,
		arg.ReferredBy,
		arg.Position,
		arg.Tier,
		arg.Points,
		pq.Array(arg.Badges),
		arg.VariantID,
	)
	return scanSignup(row)
}

const getSignupByReferralCode = `-- name: GetSignupByReferralCode :one
SELECT ` + signupColumns + ` FROM signups WHERE referral_code = $1`

func (q *Queries) GetSignupByReferralCode(ctx context.Context, referralCode string) (Signup, error) {
	return scanSignup(q.db.QueryRowContext(ctx, getSignupByReferralCode, referralCode))
}

const getSignupByProjectIDAndEmail = `-- name: GetSignupByProjectIDAndEmail :one
SELECT ` + signupColumns + ` FROM signups WHERE project_id = $1 AND LOWER(email) = LOWER($2)`

type GetSignupByProjectIDAndEmailParams struct {
	ProjectID uuid.UUID `json:"project_id"`
	Email     string    `json:"email"`
}

func (q *Queries) GetSignupByProjectIDAndEmail(ctx context.Context, arg GetSignupByProjectIDAndEmailParams) (Signup, error) {
	return scanSignup(q.db.QueryRowContext(ctx, getSignupByProjectIDAndEmail, arg.ProjectID, arg.Email))
}

const referralCodeExists = `-- name: ReferralCodeExists :one
SELECT EXISTS (SELECT 1 FROM signups WHERE referral_code = $1)`

func (q *Queries) ReferralCodeExists(ctx context.Context, referralCode string) (bool, error) {
	row := q.db.QueryRowContext(ctx, referralCodeExists, referralCode)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

const countSignupsByProjectID = `-- name: CountSignupsByProjectID :one
SELECT COUNT(*) FROM signups WHERE project_id = $1`

func (q *Queries) CountSignupsByProjectID(ctx context.Context, projectID uuid.UUID) (int64, error) {
	row := q.db.QueryRowContext(ctx, countSignupsByProjectID, projectID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const incrementReferralCount = `-- name: IncrementReferralCount :one
UPDATE signups
SET referral_count = referral_count + 1
WHERE id = $1
RETURNING ` + signupColumns

func (q *Queries) IncrementReferralCount(ctx context.Context, id uuid.UUID) (Signup, error) {
	return scanSignup(q.db.QueryRowContext(ctx, incrementReferralCount, id))
}

const updateSignupStanding = `-- name: UpdateSignupStanding :exec
UPDATE signups
SET tier = $2, points = $3, badges = $4
WHERE id = $1`

type UpdateSignupStandingParams struct {
	ID     uuid.UUID `json:"id"`
	Tier   string    `json:"tier"`
	Points int32     `json:"points"`
	Badges []string  `json:"badges"`
}

func (q *Queries) UpdateSignupStanding(ctx context.Context, arg UpdateSignupStandingParams) error {
	_, err := q.db.ExecContext(ctx, updateSignupStanding, arg.ID, arg.Tier, arg.Points, pq.Array(arg.Badges))
	return err
}

const listSignupsByProjectID = `-- name: ListSignupsByProjectID :many
SELECT ` + signupColumns + ` FROM signups
WHERE project_id = $1
ORDER BY position
LIMIT $2 OFFSET $3`

type ListSignupsByProjectIDParams struct {
	ProjectID uuid.UUID `json:"project_id"`
	Limit     int32     `json:"limit"`
	Offset    int32     `json:"offset"`
}

func (q *Queries) ListSignupsByProjectID(ctx context.Context, arg ListSignupsByProjectIDParams) ([]Signup, error) {
	rows, err := q.db.QueryContext(ctx, listSignupsByProjectID, arg.ProjectID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return scanSignups(rows)
}

const listAllSignupsByProjectID = `-- name: ListAllSignupsByProjectID :many
SELECT ` + signupColumns + ` FROM signups
WHERE project_id = $1
ORDER BY position`

func (q *Queries) ListAllSignupsByProjectID(ctx context.Context, projectID uuid.UUID) ([]Signup, error) {
	rows, err := q.db.QueryContext(ctx, listAllSignupsByProjectID, projectID)
	if err != nil {
		return nil, err
	}
	return scanSignups(rows)
}

const listLeaderboard = `-- name: ListLeaderboard :many
SELECT ` + signupColumns + ` FROM signups
WHERE project_id = $1
ORDER BY points DESC, position
LIMIT $2`

type ListLeaderboardParams struct {
	ProjectID uuid.UUID `json:"project_id"`
	Limit     int32     `json:"limit"`
}

func (q *Queries) ListLeaderboard(ctx context.Context, arg ListLeaderboardParams) ([]Signup, error) {
	rows, err := q.db.QueryContext(ctx, listLeaderboard, arg.ProjectID, arg.Limit)
	if err != nil {
		return nil, err
	}
	return scanSignups(rows)
}
