package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type Account struct {
	ID                   uuid.UUID      `json:"id"`
	Email                string         `json:"email"`
	PasswordHash         string         `json:"password_hash"`
	Name                 string         `json:"name"`
	PlanTier             string         `json:"plan_tier"`
	SubscriptionStatus   string         `json:"subscription_status"`
	SubscriptionEndDate  sql.NullTime   `json:"subscription_end_date"`
	StripeCustomerID     sql.NullString `json:"stripe_customer_id"`
	StripeSubscriptionID sql.NullString `json:"stripe_subscription_id"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

type Campaign struct {
	ID          uuid.UUID    `json:"id"`
	ProjectID   uuid.UUID    `json:"project_id"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	Status      string       `json:"status"`
	SentCount   int32        `json:"sent_count"`
	FailedCount int32        `json:"failed_count"`
	SentAt      sql.NullTime `json:"sent_at"`
	CreatedAt   time.Time    `json:"created_at"`
}

type CampaignDelivery struct {
	CampaignID uuid.UUID `json:"campaign_id"`
	SignupID   uuid.UUID `json:"signup_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

type Export struct {
	ID          uuid.UUID      `json:"id"`
	ProjectID   uuid.UUID      `json:"project_id"`
	Status      string         `json:"status"`
	StorageKey  sql.NullString `json:"storage_key"`
	RowCount    int32          `json:"row_count"`
	CompletedAt sql.NullTime   `json:"completed_at"`
	CreatedAt   time.Time      `json:"created_at"`
}

type Job struct {
	ID           uuid.UUID       `json:"id"`
	JobType      string          `json:"job_type"`
	Payload      json.RawMessage `json:"payload"`
	Status       string          `json:"status"`
	Priority     int32           `json:"priority"`
	Attempts     int32           `json:"attempts"`
	MaxAttempts  int32           `json:"max_attempts"`
	ScheduledAt  time.Time       `json:"scheduled_at"`
	StartedAt    sql.NullTime    `json:"started_at"`
	CompletedAt  sql.NullTime    `json:"completed_at"`
	ErrorMessage sql.NullString  `json:"error_message"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Project struct {
	ID               uuid.UUID      `json:"id"`
	AccountID        uuid.UUID      `json:"account_id"`
	Name             string         `json:"name"`
	Slug             string         `json:"slug"`
	Description      sql.NullString `json:"description"`
	LogoURL          sql.NullString `json:"logo_url"`
	PrimaryColor     string         `json:"primary_color"`
	AbTestingEnabled bool           `json:"ab_testing_enabled"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

type Session struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	TokenHash string    `json:"token_hash"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type Signup struct {
	ID            uuid.UUID      `json:"id"`
	ProjectID     uuid.UUID      `json:"project_id"`
	Email         string         `json:"email"`
	Name          sql.NullString `json:"name"`
	ReferralCode  string         `json:"referral_code"`
	ReferredBy    uuid.NullUUID  `json:"referred_by"`
	ReferralCount int32          `json:"referral_count"`
	Position      int32          `json:"position"`
	Tier          string         `json:"tier"`
	Points        int32          `json:"points"`
	Badges        []string       `json:"badges"`
	VariantID     uuid.NullUUID  `json:"variant_id"`
	CreatedAt     time.Time      `json:"created_at"`
}

type Variant struct {
	ID          uuid.UUID             `json:"id"`
	ProjectID   uuid.UUID             `json:"project_id"`
	Name        string                `json:"name"`
	Traffic     int32                 `json:"traffic"`
	Position    int32                 `json:"position"`
	Headline    sql.NullString        `json:"headline"`
	Description sql.NullString        `json:"description"`
	CtaText     sql.NullString        `json:"cta_text"`
	Overrides   pqtype.NullRawMessage `json:"overrides"`
	CreatedAt   time.Time             `json:"created_at"`
}
