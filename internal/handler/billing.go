package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/waitlist/internal/billing"
	"github.com/DukeRupert/waitlist/internal/domain"
	"github.com/DukeRupert/waitlist/internal/service"
)

// BillingHandler serves plan usage and Stripe checkout endpoints.
//
// Routes (all authenticated):
//   - GET  /api/subscription     -> Usage
//   - POST /api/billing/checkout -> CreateCheckout
//   - POST /api/billing/portal   -> OpenPortal
type BillingHandler struct {
	billing       billing.Service
	subscriptions service.SubscriptionService
	baseURL       string
	logger        *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
// billingService may be nil when Stripe is not configured (development mode).
func NewBillingHandler(billingService billing.Service, subscriptions service.SubscriptionService, baseURL string, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		billing:       billingService,
		subscriptions: subscriptions,
		baseURL:       strings.TrimRight(baseURL, "/"),
		logger:        logger,
	}
}

// RegisterRoutes registers billing routes behind the protected middleware.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, protected func(http.Handler) http.Handler) {
	mux.Handle("GET /api/subscription", protected(http.HandlerFunc(h.Usage)))
	mux.Handle("POST /api/billing/checkout", protected(http.HandlerFunc(h.CreateCheckout)))
	mux.Handle("POST /api/billing/portal", protected(http.HandlerFunc(h.OpenPortal)))
}

// Usage returns the account's plan, consumption and grace period state.
func (h *BillingHandler) Usage(w http.ResponseWriter, r *http.Request) {
	account, ok := currentAccount(w, r, h.logger)
	if !ok {
		return
	}

	usage, err := h.subscriptions.Usage(r.Context(), account.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

type checkoutRequest struct {
	Tier domain.PlanTier `json:"tier"`
}

// CreateCheckout starts a Stripe Checkout session for a paid plan and returns
// its URL. The Stripe customer is created and linked first if missing, so
// later invoice webhooks can always find the account.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	const op = "BillingHandler.CreateCheckout"

	account, ok := currentAccount(w, r, h.logger)
	if !ok {
		return
	}
	if h.billing == nil {
		ErrorResponse(w, r, h.logger, domain.Errorf(domain.ENOTIMPL, op, "Billing is not configured"))
		return
	}

	var req checkoutRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	priceID, ok := h.billing.PriceIDForTier(req.Tier)
	if !ok {
		ErrorResponse(w, r, h.logger, domain.NewValidationError(op, "tier", "Choose the pro or enterprise plan"))
		return
	}

	customerID := account.Subscription.StripeCustomerID
	if customerID == "" {
		id, err := h.billing.CreateCustomer(account.Email, account.DisplayName())
		if err != nil {
			ErrorResponse(w, r, h.logger, domain.Internal(err, op, "Failed to create billing customer"))
			return
		}
		if err := h.subscriptions.LinkCustomer(r.Context(), account.ID, id); err != nil {
			ErrorResponse(w, r, h.logger, err)
			return
		}
		customerID = id
	}

	url, err := h.billing.CreateCheckoutSession(billing.CheckoutParams{
		CustomerID:        customerID,
		PriceID:           priceID,
		ClientReferenceID: account.ID.String(),
		SuccessURL:        h.baseURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         h.baseURL + "/billing",
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, op, "Failed to start checkout"))
		return
	}

	h.logger.Info("checkout session created", "account_id", account.ID, "tier", req.Tier)
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// OpenPortal returns a Stripe Customer Portal URL for managing the subscription.
func (h *BillingHandler) OpenPortal(w http.ResponseWriter, r *http.Request) {
	const op = "BillingHandler.OpenPortal"

	account, ok := currentAccount(w, r, h.logger)
	if !ok {
		return
	}
	if h.billing == nil {
		ErrorResponse(w, r, h.logger, domain.Errorf(domain.ENOTIMPL, op, "Billing is not configured"))
		return
	}
	if account.Subscription.StripeCustomerID == "" {
		ErrorResponse(w, r, h.logger, domain.PaymentRequired(op, "No billing account yet. Start a checkout first."))
		return
	}

	url, err := h.billing.CreatePortalSession(account.Subscription.StripeCustomerID, h.baseURL+"/billing")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, op, "Failed to open billing portal"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
