package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Querier interface {
	// Accounts
	CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error)
	GetAccountByID(ctx context.Context, id uuid.UUID) (Account, error)
	LockAccountForProjectCreation(ctx context.Context, id uuid.UUID) error
	GetAccountByEmail(ctx context.Context, email string) (Account, error)
	GetAccountByStripeCustomerID(ctx context.Context, stripeCustomerID string) (Account, error)
	UpdateAccountStripeCustomer(ctx context.Context, arg UpdateAccountStripeCustomerParams) error
	UpdateAccountSubscription(ctx context.Context, arg UpdateAccountSubscriptionParams) error
	ExpireLapsedSubscriptions(ctx context.Context, now time.Time) (int64, error)

	// Sessions
	CreateSession(ctx context.Context, arg CreateSessionParams) (Session, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (Session, error)
	DeleteSession(ctx context.Context, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)

	// Projects
	CreateProject(ctx context.Context, arg CreateProjectParams) (Project, error)
	GetProjectByID(ctx context.Context, id uuid.UUID) (Project, error)
	GetProjectByIDAndAccountID(ctx context.Context, arg GetProjectByIDAndAccountIDParams) (Project, error)
	GetProjectBySlug(ctx context.Context, slug string) (Project, error)
	ListProjectsByAccountID(ctx context.Context, accountID uuid.UUID) ([]Project, error)
	CountProjectsByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error)
	ProjectSlugExists(ctx context.Context, slug string) (bool, error)
	UpdateProject(ctx context.Context, arg UpdateProjectParams) (Project, error)
	UpdateProjectLogo(ctx context.Context, arg UpdateProjectLogoParams) error
	DeleteProjectByIDAndAccountID(ctx context.Context, arg DeleteProjectByIDAndAccountIDParams) (int64, error)

	// Variants
	CreateVariant(ctx context.Context, arg CreateVariantParams) (Variant, error)
	ListVariantsByProjectID(ctx context.Context, projectID uuid.UUID) ([]Variant, error)
	UpdateVariant(ctx context.Context, arg UpdateVariantParams) (Variant, error)
	DeleteVariantsExcept(ctx context.Context, arg DeleteVariantsExceptParams) (int64, error)
	RecordVariantExposure(ctx context.Context, arg RecordVariantExposureParams) (int64, error)
	GetVariantStats(ctx context.Context, projectID uuid.UUID) ([]GetVariantStatsRow, error)

	// Signups
	LockProjectForSignup(ctx context.Context, projectID uuid.UUID) error
	CreateSignup(ctx context.Context, arg CreateSignupParams) (Signup, error)
	GetSignupByReferralCode(ctx context.Context, referralCode string) (Signup, error)
	GetSignupByProjectIDAndEmail(ctx context.Context, arg GetSignupByProjectIDAndEmailParams) (Signup, error)
	ReferralCodeExists(ctx context.Context, referralCode string) (bool, error)
	CountSignupsByProjectID(ctx context.Context, projectID uuid.UUID) (int64, error)
	IncrementReferralCount(ctx context.Context, id uuid.UUID) (Signup, error)
	UpdateSignupStanding(ctx context.Context, arg UpdateSignupStandingParams) error
	ListSignupsByProjectID(ctx context.Context, arg ListSignupsByProjectIDParams) ([]Signup, error)
	ListAllSignupsByProjectID(ctx context.Context, projectID uuid.UUID) ([]Signup, error)
	ListLeaderboard(ctx context.Context, arg ListLeaderboardParams) ([]Signup, error)

	// Campaigns
	CreateCampaign(ctx context.Context, arg CreateCampaignParams) (Campaign, error)
	GetCampaignByID(ctx context.Context, id uuid.UUID) (Campaign, error)
	ListCampaignsByProjectID(ctx context.Context, projectID uuid.UUID) ([]Campaign, error)
	UpdateCampaignStatus(ctx context.Context, arg UpdateCampaignStatusParams) error
	CompleteCampaign(ctx context.Context, arg CompleteCampaignParams) error
	RecordCampaignDelivery(ctx context.Context, arg RecordCampaignDeliveryParams) error
	ListCampaignDeliveries(ctx context.Context, campaignID uuid.UUID) ([]CampaignDelivery, error)

	// Exports
	CreateExport(ctx context.Context, projectID uuid.UUID) (Export, error)
	GetExportByID(ctx context.Context, id uuid.UUID) (Export, error)
	CompleteExport(ctx context.Context, arg CompleteExportParams) error

	// Jobs
	EnqueueJob(ctx context.Context, arg EnqueueJobParams) (Job, error)
	DequeueJob(ctx context.Context) (Job, error)
	UpdateJobStarted(ctx context.Context, id uuid.UUID) error
	UpdateJobCompleted(ctx context.Context, id uuid.UUID) error
	UpdateJobFailed(ctx context.Context, arg UpdateJobFailedParams) error
	RecoverStaleJobs(ctx context.Context, thresholdSeconds float64) (int64, error)
}

var _ Querier = (*Queries)(nil)
