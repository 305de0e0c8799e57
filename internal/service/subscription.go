package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/waitlist/internal/domain"
	"github.com/DukeRupert/waitlist/internal/metrics"
	"github.com/DukeRupert/waitlist/internal/repository"
	"github.com/google/uuid"
)

// Gate names used in logs and metrics.
const (
	gateProjects = "projects"
	gateSignups  = "signups"
)

// SubscriptionService manages plan state and enforces plan limits.
type SubscriptionService interface {
	// Usage returns the account's plan, consumption and grace state.
	Usage(ctx context.Context, accountID uuid.UUID) (*domain.UsageSummary, error)

	// LinkCustomer stores the Stripe customer for an account.
	LinkCustomer(ctx context.Context, accountID uuid.UUID, customerID string) error

	// GetAccountByCustomer looks up the account for a Stripe customer.
	GetAccountByCustomer(ctx context.Context, customerID string) (*domain.Account, error)

	// ApplyPayment records a confirmed payment for the account.
	ApplyPayment(ctx context.Context, accountID uuid.UUID, tier domain.PlanTier, periodEnd time.Time, stripeSubID string) error

	// Cancel marks the subscription cancelled, keeping its end date.
	Cancel(ctx context.Context, accountID uuid.UUID) error

	// ExpireLapsed moves active subscriptions past their end date to expired.
	ExpireLapsed(ctx context.Context) (int64, error)

	// CheckProjectCreation returns nil if the account may create another project.
	// q lets callers run the count inside their own transaction.
	CheckProjectCreation(ctx context.Context, q repository.Querier, accountID uuid.UUID) error

	// CheckSignupCapacity returns nil if the project may accept another signup.
	// q lets callers run the count inside their own transaction.
	CheckSignupCapacity(ctx context.Context, q repository.Querier, projectID, ownerID uuid.UUID) error
}

type subscriptionService struct {
	store  repository.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewSubscriptionService creates a new SubscriptionService instance.
func NewSubscriptionService(store repository.Store, logger *slog.Logger) SubscriptionService {
	return &subscriptionService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (s *subscriptionService) loadAccount(ctx context.Context, q repository.Querier, op string, accountID uuid.UUID) (*domain.Account, error) {
	row, err := q.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "account", accountID.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve account")
	}
	return accountFromRepo(row), nil
}

// Usage returns the account's plan usage summary.
func (s *subscriptionService) Usage(ctx context.Context, accountID uuid.UUID) (*domain.UsageSummary, error) {
	const op = "SubscriptionService.Usage"

	account, err := s.loadAccount(ctx, s.store, op, accountID)
	if err != nil {
		return nil, err
	}

	count, err := s.store.CountProjectsByAccountID(ctx, accountID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to count projects")
	}

	now := s.now()
	sub := account.Subscription
	return &domain.UsageSummary{
		Subscription:     sub,
		Limits:           sub.Limits(),
		ProjectsUsed:     int(count),
		Active:           sub.IsActive(now),
		InGracePeriod:    sub.InGracePeriod(now),
		GraceDaysLeft:    sub.DaysLeftInGrace(now),
		CanCreateProject: sub.CanCreateProject(int(count), now),
	}, nil
}

// LinkCustomer stores the Stripe customer ID on the account.
func (s *subscriptionService) LinkCustomer(ctx context.Context, accountID uuid.UUID, customerID string) error {
	const op = "SubscriptionService.LinkCustomer"

	err := s.store.UpdateAccountStripeCustomer(ctx, repository.UpdateAccountStripeCustomerParams{
		ID:               accountID,
		StripeCustomerID: domain.ToNullString(customerID),
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to link billing customer")
	}

	s.logger.Info("billing customer linked", "account_id", accountID, "customer_id", customerID)
	return nil
}

// GetAccountByCustomer retrieves the account for a Stripe customer ID.
func (s *subscriptionService) GetAccountByCustomer(ctx context.Context, customerID string) (*domain.Account, error) {
	const op = "SubscriptionService.GetAccountByCustomer"

	row, err := s.store.GetAccountByStripeCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "account", customerID)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve account")
	}
	account := accountFromRepo(row)
	account.PasswordHash = ""
	return account, nil
}

func (s *subscriptionService) save(ctx context.Context, op string, accountID uuid.UUID, sub domain.Subscription) error {
	err := s.store.UpdateAccountSubscription(ctx, repository.UpdateAccountSubscriptionParams{
		ID:                   accountID,
		PlanTier:             string(sub.Tier),
		SubscriptionStatus:   string(sub.Status),
		SubscriptionEndDate:  domain.ToNullTime(sub.EndDate),
		StripeSubscriptionID: domain.ToNullString(sub.StripeSubID),
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to update subscription")
	}
	return nil
}

// ApplyPayment sets the tier, activates the subscription and advances the end date.
func (s *subscriptionService) ApplyPayment(ctx context.Context, accountID uuid.UUID, tier domain.PlanTier, periodEnd time.Time, stripeSubID string) error {
	const op = "SubscriptionService.ApplyPayment"

	if _, err := domain.ParsePlanTier(string(tier)); err != nil {
		return domain.Wrap(err, domain.EINVALID, op, "Unknown plan tier")
	}

	account, err := s.loadAccount(ctx, s.store, op, accountID)
	if err != nil {
		return err
	}

	sub := account.Subscription
	sub.ApplyPayment(tier, periodEnd)
	if stripeSubID != "" {
		sub.StripeSubID = stripeSubID
	}
	if err := s.save(ctx, op, accountID, sub); err != nil {
		return err
	}

	s.logger.Info("subscription payment applied",
		"account_id", accountID,
		"tier", tier,
		"period_end", periodEnd,
	)
	return nil
}

// Cancel marks the subscription cancelled. The grace period still runs from the end date.
func (s *subscriptionService) Cancel(ctx context.Context, accountID uuid.UUID) error {
	const op = "SubscriptionService.Cancel"

	account, err := s.loadAccount(ctx, s.store, op, accountID)
	if err != nil {
		return err
	}

	sub := account.Subscription
	sub.Cancel()
	if err := s.save(ctx, op, accountID, sub); err != nil {
		return err
	}

	s.logger.Info("subscription cancelled", "account_id", accountID, "end_date", sub.EndDate)
	return nil
}

// ExpireLapsed marks every active subscription whose end date has passed as expired.
func (s *subscriptionService) ExpireLapsed(ctx context.Context) (int64, error) {
	const op = "SubscriptionService.ExpireLapsed"

	n, err := s.store.ExpireLapsedSubscriptions(ctx, s.now())
	if err != nil {
		return 0, domain.Internal(err, op, "Failed to expire subscriptions")
	}

	if n > 0 {
		metrics.SubscriptionsExpired.Add(float64(n))
		s.logger.Info("lapsed subscriptions expired", "count", n)
	}
	return n, nil
}

// CheckProjectCreation applies the project gate with the account's current project count.
func (s *subscriptionService) CheckProjectCreation(ctx context.Context, q repository.Querier, accountID uuid.UUID) error {
	const op = "SubscriptionService.CheckProjectCreation"

	account, err := s.loadAccount(ctx, q, op, accountID)
	if err != nil {
		return err
	}

	count, err := q.CountProjectsByAccountID(ctx, accountID)
	if err != nil {
		return domain.Internal(err, op, "Failed to count projects")
	}

	sub := account.Subscription
	if sub.CanCreateProject(int(count), s.now()) {
		return nil
	}
	return s.deny(op, gateProjects, accountID, sub, "projects", sub.Limits().MaxProjects)
}

// CheckSignupCapacity applies the signup gate to the project owner's plan.
func (s *subscriptionService) CheckSignupCapacity(ctx context.Context, q repository.Querier, projectID, ownerID uuid.UUID) error {
	const op = "SubscriptionService.CheckSignupCapacity"

	owner, err := s.loadAccount(ctx, q, op, ownerID)
	if err != nil {
		return err
	}

	count, err := q.CountSignupsByProjectID(ctx, projectID)
	if err != nil {
		return domain.Internal(err, op, "Failed to count signups")
	}

	sub := owner.Subscription
	if sub.CanAddWaitlistUser(int(count), s.now()) {
		return nil
	}
	return s.deny(op, gateSignups, ownerID, sub, "waitlist signups", sub.Limits().MaxWaitlistUsers)
}

// deny distinguishes an inactive subscription from a reached quota.
func (s *subscriptionService) deny(op, gate string, accountID uuid.UUID, sub domain.Subscription, resource string, limit int) error {
	if !sub.IsActive(s.now()) {
		metrics.GateDenied(gate, "inactive")
		s.logger.Info("subscription gate closed", "gate", gate, "account_id", accountID, "reason", "inactive")
		return domain.SubscriptionInactive(op)
	}

	metrics.GateDenied(gate, "limit")
	s.logger.Info("subscription gate closed", "gate", gate, "account_id", accountID, "reason", "limit", "limit", limit)
	return domain.LimitReached(op, resource, limit)
}
