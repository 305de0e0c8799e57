package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/DukeRupert/waitlist/internal/billing"
	"github.com/DukeRupert/waitlist/internal/domain"
	"github.com/DukeRupert/waitlist/internal/service"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
)

// maxWebhookBody caps Stripe event payloads.
const maxWebhookBody = 65536

// WebhookHandler handles incoming webhook events from Stripe.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// The route is public; requests are authenticated by signature.
type WebhookHandler struct {
	billing       billing.Service
	subscriptions service.SubscriptionService
	logger        *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
// billingService may be nil when Stripe is not configured.
func NewWebhookHandler(billingService billing.Service, subscriptions service.SubscriptionService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing:       billingService,
		subscriptions: subscriptions,
		logger:        logger,
	}
}

// RegisterRoutes registers webhook routes. No auth middleware.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook verifies and dispatches a Stripe event.
//
// Unknown event types and events for unknown customers are acknowledged with
// 200. Store failures return 500 so Stripe retries the delivery.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := h.billing.VerifyWebhookSignature(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	ctx := r.Context()
	switch event.Type {
	case "checkout.session.completed":
		err = h.handleCheckoutCompleted(ctx, event)
	case "invoice.payment_succeeded":
		err = h.handlePaymentSucceeded(ctx, event)
	case "customer.subscription.updated":
		err = h.handleSubscriptionUpdated(ctx, event)
	case "customer.subscription.deleted":
		err = h.handleSubscriptionDeleted(ctx, event)
	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
	}

	if err != nil {
		h.logger.Error("webhook processing failed", "type", event.Type, "id", event.ID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleCheckoutCompleted links the Stripe customer to the account named by
// the session's client reference.
func (h *WebhookHandler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		h.logger.Error("failed to parse checkout session", "error", err)
		return nil
	}

	if sess.Customer == nil {
		h.logger.Warn("checkout session missing customer", "session_id", sess.ID)
		return nil
	}
	accountID, err := uuid.Parse(sess.ClientReferenceID)
	if err != nil {
		h.logger.Warn("checkout session has no account reference", "session_id", sess.ID)
		return nil
	}

	return h.ignoreNotFound(h.subscriptions.LinkCustomer(ctx, accountID, sess.Customer.ID))
}

// handlePaymentSucceeded applies a paid invoice: the tier comes from the
// line item's price and the new end date from the line item's period.
func (h *WebhookHandler) handlePaymentSucceeded(ctx context.Context, event stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		h.logger.Error("failed to parse invoice", "error", err)
		return nil
	}
	if invoice.Customer == nil {
		return nil
	}

	tier, periodEnd, ok := h.invoicePlan(&invoice)
	if !ok {
		h.logger.Warn("invoice has no recognised plan line", "invoice_id", invoice.ID)
		return nil
	}

	account, err := h.subscriptions.GetAccountByCustomer(ctx, invoice.Customer.ID)
	if err != nil {
		return h.ignoreNotFound(err)
	}

	subID := ""
	if invoice.Subscription != nil {
		subID = invoice.Subscription.ID
	}

	if err := h.subscriptions.ApplyPayment(ctx, account.ID, tier, periodEnd, subID); err != nil {
		return err
	}
	h.logger.Info("payment applied", "account_id", account.ID, "tier", tier, "period_end", periodEnd)
	return nil
}

func (h *WebhookHandler) invoicePlan(invoice *stripe.Invoice) (domain.PlanTier, time.Time, bool) {
	if invoice.Lines == nil {
		return "", time.Time{}, false
	}
	for _, line := range invoice.Lines.Data {
		if line == nil || line.Price == nil || line.Period == nil {
			continue
		}
		if tier, ok := h.billing.TierForPriceID(line.Price.ID); ok {
			return tier, time.Unix(line.Period.End, 0).UTC(), true
		}
	}
	return "", time.Time{}, false
}

// handleSubscriptionUpdated cancels when the owner has scheduled cancellation.
// The end date is kept, so the grace period still runs from it.
func (h *WebhookHandler) handleSubscriptionUpdated(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription event", "error", err)
		return nil
	}
	if !sub.CancelAtPeriodEnd {
		return nil
	}
	return h.cancel(ctx, &sub, "cancel_at_period_end")
}

func (h *WebhookHandler) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription deleted event", "error", err)
		return nil
	}
	return h.cancel(ctx, &sub, "deleted")
}

func (h *WebhookHandler) cancel(ctx context.Context, sub *stripe.Subscription, reason string) error {
	if sub.Customer == nil {
		h.logger.Warn("subscription event missing customer", "subscription_id", sub.ID)
		return nil
	}

	account, err := h.subscriptions.GetAccountByCustomer(ctx, sub.Customer.ID)
	if err != nil {
		return h.ignoreNotFound(err)
	}
	if err := h.subscriptions.Cancel(ctx, account.ID); err != nil {
		return fmt.Errorf("cancel subscription for %s: %w", account.ID, err)
	}

	h.logger.Info("subscription cancelled", "account_id", account.ID, "subscription_id", sub.ID, "reason", reason)
	return nil
}

// ignoreNotFound acknowledges events for accounts that no longer exist.
func (h *WebhookHandler) ignoreNotFound(err error) error {
	if err != nil && domain.ErrorCode(err) == domain.ENOTFOUND {
		h.logger.Warn("webhook references unknown account", "error", err)
		return nil
	}
	return err
}
