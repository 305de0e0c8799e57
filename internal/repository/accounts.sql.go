package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const accountColumns = `id, email, password_hash, name, plan_tier, subscription_status,
    subscription_end_date, stripe_customer_id, stripe_subscription_id, created_at, updated_at`

func scanAccount(row interface{ Scan(...interface{}) error }) (Account, error) {
	var i Account
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.PasswordHash,
		&i.Name,
		&i.PlanTier,
		&i.SubscriptionStatus,
		&i.SubscriptionEndDate,
		&i.StripeCustomerID,
		&i.StripeSubscriptionID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createAccount = `-- name: CreateAccount :one
INSERT INTO accounts (email, password_hash, name)
VALUES ($1, $2, $3)
RETURNING ` + accountColumns

type CreateAccountParams struct {
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	Name         string `json:"name"`
}

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error) {
	row := q.db.QueryRowContext(ctx, createAccount, arg.Email, arg.PasswordHash, arg.Name)
	return scanAccount(row)
}

const getAccountByID = `-- name: GetAccountByID :one
SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

func (q *Queries) GetAccountByID(ctx context.Context, id uuid.UUID) (Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, getAccountByID, id))
}

const lockAccountForProjectCreation = `-- name: LockAccountForProjectCreation :exec
SELECT id FROM accounts WHERE id = $1 FOR UPDATE`

// LockAccountForProjectCreation serializes project quota checks for an
// account for the rest of the transaction.
func (q *Queries) LockAccountForProjectCreation(ctx context.Context, id uuid.UUID) error {
	row := q.db.QueryRowContext(ctx, lockAccountForProjectCreation, id)
	var locked uuid.UUID
	return row.Scan(&locked)
}

const getAccountByEmail = `-- name: GetAccountByEmail :one
SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(email) = LOWER($1)`

func (q *Queries) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, getAccountByEmail, email))
}

const getAccountByStripeCustomerID = `-- name: GetAccountByStripeCustomerID :one
SELECT ` + accountColumns + ` FROM accounts WHERE stripe_customer_id = $1`

func (q *Queries) GetAccountByStripeCustomerID(ctx context.Context, stripeCustomerID string) (Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, getAccountByStripeCustomerID, stripeCustomerID))
}

const updateAccountStripeCustomer = `-- name: UpdateAccountStripeCustomer :exec
UPDATE accounts
SET stripe_customer_id = $2, updated_at = NOW()
WHERE id = $1`

type UpdateAccountStripeCustomerParams struct {
	ID               uuid.UUID      `json:"id"`
	StripeCustomerID sql.NullString `json:"stripe_customer_id"`
}

func (q *Queries) UpdateAccountStripeCustomer(ctx context.Context, arg UpdateAccountStripeCustomerParams) error {
	_, err := q.db.ExecContext(ctx, updateAccountStripeCustomer, arg.ID, arg.StripeCustomerID)
	return err
}

const updateAccountSubscription = `-- name: UpdateAccountSubscription :exec
UPDATE accounts
SET plan_tier = $2,
    subscription_status = $3,
    subscription_end_date = $4,
    stripe_subscription_id = COALESCE($5, stripe_subscription_id),
    updated_at = NOW()
WHERE id = $1`

type UpdateAccountSubscriptionParams struct {
	ID                   uuid.UUID      `json:"id"`
	PlanTier             string         `json:"plan_tier"`
	SubscriptionStatus   string         `json:"subscription_status"`
	SubscriptionEndDate  sql.NullTime   `json:"subscription_end_date"`
	StripeSubscriptionID sql.NullString `json:"stripe_subscription_id"`
}

func (q *Queries) UpdateAccountSubscription(ctx context.Context, arg UpdateAccountSubscriptionParams) error {
	_, err := q.db.ExecContext(ctx, updateAccountSubscription,
		arg.ID,
		arg.PlanTier,
		arg.SubscriptionStatus,
		arg.SubscriptionEndDate,
		arg.StripeSubscriptionID,
	)
	return err
}

const expireLapsedSubscriptions = `-- name: ExpireLapsedSubscriptions :execrows
UPDATE accounts
SET subscription_status = 'expired', updated_at = NOW()
WHERE subscription_status = 'active'
  AND subscription_end_date IS NOT NULL
  AND subscription_end_date < $1`

func (q *Queries) ExpireLapsedSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, expireLapsedSubscriptions, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
