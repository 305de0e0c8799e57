package handler

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/DukeRupert/waitlist/internal/billing"
	"github.com/DukeRupert/waitlist/internal/domain"
	"github.com/DukeRupert/waitlist/internal/repository"
	"github.com/DukeRupert/waitlist/internal/service"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
)

var errNotImplemented = errors.New("not implemented")

// =============================================================================
// Mock AccountService
// =============================================================================

type mockAccountService struct {
	RegisterFunc          func(ctx context.Context, params domain.RegisterParams) (*domain.Account, error)
	LoginFunc             func(ctx context.Context, email, password string) (*domain.LoginResult, error)
	LogoutFunc            func(ctx context.Context, token string) error
	GetBySessionTokenFunc func(ctx context.Context, token string) (*domain.Account, error)
}

func (m *mockAccountService) Register(ctx context.Context, params domain.RegisterParams) (*domain.Account, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, params)
	}
	return nil, errNotImplemented
}

func (m *mockAccountService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password)
	}
	return nil, errNotImplemented
}

func (m *mockAccountService) Logout(ctx context.Context, token string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, token)
	}
	return nil
}

func (m *mockAccountService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return nil, errNotImplemented
}

func (m *mockAccountService) GetBySessionToken(ctx context.Context, token string) (*domain.Account, error) {
	if m.GetBySessionTokenFunc != nil {
		return m.GetBySessionTokenFunc(ctx, token)
	}
	return nil, errNotImplemented
}

func (m *mockAccountService) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	return 0, errNotImplemented
}

// =============================================================================
// Mock ProjectService
// =============================================================================

type mockProjectService struct {
	CreateFunc      func(ctx context.Context, account *domain.Account, params domain.CreateProjectParams) (*domain.Project, error)
	ListFunc        func(ctx context.Context, accountID uuid.UUID) ([]domain.Project, error)
	GetFunc         func(ctx context.Context, id, accountID uuid.UUID) (*domain.Project, error)
	UpdateFunc      func(ctx context.Context, params domain.UpdateProjectParams) (*domain.Project, error)
	DeleteFunc      func(ctx context.Context, id, accountID uuid.UUID) error
	VariantsFunc    func(ctx context.Context, id, accountID uuid.UUID) ([]domain.Variant, error)
	SetVariantsFunc func(ctx context.Context, id, accountID uuid.UUID, inputs []domain.VariantInput) (*domain.SetVariantsResult, error)
	UploadLogoFunc  func(ctx context.Context, id, accountID uuid.UUID, data io.Reader, contentType string) (string, error)
}

func (m *mockProjectService) Create(ctx context.Context, account *domain.Account, params domain.CreateProjectParams) (*domain.Project, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account, params)
	}
	return nil, errNotImplemented
}

func (m *mockProjectService) List(ctx context.Context, accountID uuid.UUID) ([]domain.Project, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, accountID)
	}
	return nil, errNotImplemented
}

func (m *mockProjectService) Get(ctx context.Context, id, accountID uuid.UUID) (*domain.Project, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id, accountID)
	}
	return nil, errNotImplemented
}

func (m *mockProjectService) GetBySlug(ctx context.Context, slug string) (*domain.Project, error) {
	return nil, errNotImplemented
}

func (m *mockProjectService) Update(ctx context.Context, params domain.UpdateProjectParams) (*domain.Project, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, params)
	}
	return nil, errNotImplemented
}

func (m *mockProjectService) Delete(ctx context.Context, id, accountID uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id, accountID)
	}
	return errNotImplemented
}

func (m *mockProjectService) Variants(ctx context.Context, id, accountID uuid.UUID) ([]domain.Variant, error) {
	if m.VariantsFunc != nil {
		return m.VariantsFunc(ctx, id, accountID)
	}
	return nil, errNotImplemented
}

func (m *mockProjectService) SetVariants(ctx context.Context, id, accountID uuid.UUID, inputs []domain.VariantInput) (*domain.SetVariantsResult, error) {
	if m.SetVariantsFunc != nil {
		return m.SetVariantsFunc(ctx, id, accountID, inputs)
	}
	return nil, errNotImplemented
}

func (m *mockProjectService) UploadLogo(ctx context.Context, id, accountID uuid.UUID, data io.Reader, contentType string) (string, error) {
	if m.UploadLogoFunc != nil {
		return m.UploadLogoFunc(ctx, id, accountID, data, contentType)
	}
	return "", errNotImplemented
}

// =============================================================================
// Mock ExperimentService
// =============================================================================

type mockExperimentService struct {
	AssignFunc func(ctx context.Context, slug, sessionID string) (*service.LandingPage, error)
	StatsFunc  func(ctx context.Context, projectID, accountID uuid.UUID) ([]domain.VariantStats, error)
}

func (m *mockExperimentService) Assign(ctx context.Context, slug, sessionID string) (*service.LandingPage, error) {
	if m.AssignFunc != nil {
		return m.AssignFunc(ctx, slug, sessionID)
	}
	return nil, errNotImplemented
}

func (m *mockExperimentService) Stats(ctx context.Context, projectID, accountID uuid.UUID) ([]domain.VariantStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx, projectID, accountID)
	}
	return nil, errNotImplemented
}

// =============================================================================
// Mock WaitlistService
// =============================================================================

type mockWaitlistService struct {
	JoinFunc        func(ctx context.Context, params domain.JoinParams) (*domain.JoinResult, error)
	StatusFunc      func(ctx context.Context, referralCode string) (*domain.SignupStatus, error)
	ListFunc        func(ctx context.Context, params domain.ListSignupsParams) (*domain.ListSignupsResult, error)
	LeaderboardFunc func(ctx context.Context, projectID, accountID uuid.UUID, limit int) ([]domain.Signup, error)
	RecomputeFunc   func(ctx context.Context, projectID, accountID uuid.UUID) (int, error)
}

func (m *mockWaitlistService) Join(ctx context.Context, params domain.JoinParams) (*domain.JoinResult, error) {
	if m.JoinFunc != nil {
		return m.JoinFunc(ctx, params)
	}
	return nil, errNotImplemented
}

func (m *mockWaitlistService) Status(ctx context.Context, referralCode string) (*domain.SignupStatus, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, referralCode)
	}
	return nil, errNotImplemented
}

func (m *mockWaitlistService) List(ctx context.Context, params domain.ListSignupsParams) (*domain.ListSignupsResult, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, params)
	}
	return nil, errNotImplemented
}

func (m *mockWaitlistService) Leaderboard(ctx context.Context, projectID, accountID uuid.UUID, limit int) ([]domain.Signup, error) {
	if m.LeaderboardFunc != nil {
		return m.LeaderboardFunc(ctx, projectID, accountID, limit)
	}
	return nil, errNotImplemented
}

func (m *mockWaitlistService) RecomputeStandings(ctx context.Context, projectID, accountID uuid.UUID) (int, error) {
	if m.RecomputeFunc != nil {
		return m.RecomputeFunc(ctx, projectID, accountID)
	}
	return 0, errNotImplemented
}

// =============================================================================
// Mock CampaignService and ExportService
// =============================================================================

type mockCampaignService struct {
	CreateFunc func(ctx context.Context, params domain.CreateCampaignParams) (*domain.Campaign, error)
	SendFunc   func(ctx context.Context, id, accountID uuid.UUID) (*domain.Campaign, error)
}

func (m *mockCampaignService) Create(ctx context.Context, params domain.CreateCampaignParams) (*domain.Campaign, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return nil, errNotImplemented
}

func (m *mockCampaignService) List(ctx context.Context, projectID, accountID uuid.UUID) ([]domain.Campaign, error) {
	return nil, errNotImplemented
}

func (m *mockCampaignService) Get(ctx context.Context, id, accountID uuid.UUID) (*domain.Campaign, error) {
	return nil, errNotImplemented
}

func (m *mockCampaignService) Send(ctx context.Context, id, accountID uuid.UUID) (*domain.Campaign, error) {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, id, accountID)
	}
	return nil, errNotImplemented
}

type mockExportService struct {
	RequestFunc func(ctx context.Context, projectID, accountID uuid.UUID) (*domain.Export, error)
	GetFunc     func(ctx context.Context, id, accountID uuid.UUID) (*domain.Export, error)
}

func (m *mockExportService) Request(ctx context.Context, projectID, accountID uuid.UUID) (*domain.Export, error) {
	if m.RequestFunc != nil {
		return m.RequestFunc(ctx, projectID, accountID)
	}
	return nil, errNotImplemented
}

func (m *mockExportService) Get(ctx context.Context, id, accountID uuid.UUID) (*domain.Export, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id, accountID)
	}
	return nil, errNotImplemented
}

// =============================================================================
// Mock SubscriptionService
// =============================================================================

type mockSubscriptionService struct {
	UsageFunc                func(ctx context.Context, accountID uuid.UUID) (*domain.UsageSummary, error)
	LinkCustomerFunc         func(ctx context.Context, accountID uuid.UUID, customerID string) error
	GetAccountByCustomerFunc func(ctx context.Context, customerID string) (*domain.Account, error)
	ApplyPaymentFunc         func(ctx context.Context, accountID uuid.UUID, tier domain.PlanTier, periodEnd time.Time, stripeSubID string) error
	CancelFunc               func(ctx context.Context, accountID uuid.UUID) error
}

func (m *mockSubscriptionService) Usage(ctx context.Context, accountID uuid.UUID) (*domain.UsageSummary, error) {
	if m.UsageFunc != nil {
		return m.UsageFunc(ctx, accountID)
	}
	return nil, errNotImplemented
}

func (m *mockSubscriptionService) LinkCustomer(ctx context.Context, accountID uuid.UUID, customerID string) error {
	if m.LinkCustomerFunc != nil {
		return m.LinkCustomerFunc(ctx, accountID, customerID)
	}
	return errNotImplemented
}

func (m *mockSubscriptionService) GetAccountByCustomer(ctx context.Context, customerID string) (*domain.Account, error) {
	if m.GetAccountByCustomerFunc != nil {
		return m.GetAccountByCustomerFunc(ctx, customerID)
	}
	return nil, errNotImplemented
}

func (m *mockSubscriptionService) ApplyPayment(ctx context.Context, accountID uuid.UUID, tier domain.PlanTier, periodEnd time.Time, stripeSubID string) error {
	if m.ApplyPaymentFunc != nil {
		return m.ApplyPaymentFunc(ctx, accountID, tier, periodEnd, stripeSubID)
	}
	return errNotImplemented
}

func (m *mockSubscriptionService) Cancel(ctx context.Context, accountID uuid.UUID) error {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, accountID)
	}
	return errNotImplemented
}

func (m *mockSubscriptionService) ExpireLapsed(ctx context.Context) (int64, error) {
	return 0, errNotImplemented
}

func (m *mockSubscriptionService) CheckProjectCreation(ctx context.Context, q repository.Querier, accountID uuid.UUID) error {
	return errNotImplemented
}

func (m *mockSubscriptionService) CheckSignupCapacity(ctx context.Context, q repository.Querier, projectID, ownerID uuid.UUID) error {
	return errNotImplemented
}

// =============================================================================
// Mock billing.Service
// =============================================================================

type mockBilling struct {
	CreateCustomerFunc func(email, name string) (string, error)
	CreateCheckoutFunc func(params billing.CheckoutParams) (string, error)
	CreatePortalFunc   func(customerID, returnURL string) (string, error)
	VerifyWebhookFunc  func(payload []byte, signature string) (stripe.Event, error)
	prices             map[domain.PlanTier]string
}

func (m *mockBilling) CreateCustomer(email, name string) (string, error) {
	if m.CreateCustomerFunc != nil {
		return m.CreateCustomerFunc(email, name)
	}
	return "", errNotImplemented
}

func (m *mockBilling) CreateCheckoutSession(params billing.CheckoutParams) (string, error) {
	if m.CreateCheckoutFunc != nil {
		return m.CreateCheckoutFunc(params)
	}
	return "", errNotImplemented
}

func (m *mockBilling) CreatePortalSession(customerID, returnURL string) (string, error) {
	if m.CreatePortalFunc != nil {
		return m.CreatePortalFunc(customerID, returnURL)
	}
	return "", errNotImplemented
}

func (m *mockBilling) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	if m.VerifyWebhookFunc != nil {
		return m.VerifyWebhookFunc(payload, signature)
	}
	return stripe.Event{}, errNotImplemented
}

func (m *mockBilling) TierForPriceID(priceID string) (domain.PlanTier, bool) {
	for tier, id := range m.prices {
		if id == priceID {
			return tier, true
		}
	}
	return "", false
}

func (m *mockBilling) PriceIDForTier(tier domain.PlanTier) (string, bool) {
	id, ok := m.prices[tier]
	return id, ok
}
