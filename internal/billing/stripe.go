// Package billing provides Stripe billing integration for plan upgrades.
package billing

import (
	"fmt"

	"github.com/DukeRupert/waitlist/internal/domain"
	"github.com/stripe/stripe-go/v79"
	billingportalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Service defines the interface for billing operations.
type Service interface {
	// CreateCustomer creates a new Stripe customer for the given email.
	CreateCustomer(email, name string) (string, error)

	// CreateCheckoutSession creates a Stripe Checkout session for subscribing.
	// Returns the checkout URL to redirect the account owner to.
	CreateCheckoutSession(params CheckoutParams) (string, error)

	// CreatePortalSession creates a Stripe Customer Portal session.
	CreatePortalSession(customerID, returnURL string) (string, error)

	// VerifyWebhookSignature verifies the Stripe webhook signature and returns the event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)

	// TierForPriceID maps a Stripe price to the plan it buys.
	TierForPriceID(priceID string) (domain.PlanTier, bool)

	// PriceIDForTier returns the configured price for a paid plan.
	PriceIDForTier(tier domain.PlanTier) (string, bool)
}

// CheckoutParams configures a subscription checkout.
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	// ClientReferenceID carries the account ID back in checkout.session.completed.
	ClientReferenceID string
	SuccessURL        string
	CancelURL         string
}

// PriceConfig holds the Stripe price IDs for each paid plan.
type PriceConfig struct {
	ProPriceID        string
	EnterprisePriceID string
}

// stripeService is the concrete implementation of Service.
type stripeService struct {
	webhookSecret string
	priceToTier   map[string]domain.PlanTier
	tierToPrice   map[domain.PlanTier]string
}

// NewStripeService creates a new Stripe billing service.
//
// The secretKey is used to authenticate Stripe API calls.
// The webhookSecret is used to verify incoming webhook signatures.
func NewStripeService(secretKey, webhookSecret string, prices PriceConfig) Service {
	stripe.Key = secretKey

	s := &stripeService{
		webhookSecret: webhookSecret,
		priceToTier:   make(map[string]domain.PlanTier),
		tierToPrice:   make(map[domain.PlanTier]string),
	}
	s.addPrice(domain.PlanPro, prices.ProPriceID)
	s.addPrice(domain.PlanEnterprise, prices.EnterprisePriceID)
	return s
}

func (s *stripeService) addPrice(tier domain.PlanTier, priceID string) {
	if priceID == "" {
		return
	}
	s.priceToTier[priceID] = tier
	s.tierToPrice[tier] = priceID
}

func (s *stripeService) CreateCustomer(email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return c.ID, nil
}

func (s *stripeService) CreateCheckoutSession(p CheckoutParams) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:          stripe.String(p.CustomerID),
		ClientReferenceID: stripe.String(p.ClientReferenceID),
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create checkout session: %w", err)
	}
	return sess.URL, nil
}

func (s *stripeService) CreatePortalSession(customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	sess, err := billingportalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create portal session: %w", err)
	}
	return sess.URL, nil
}

func (s *stripeService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return event, nil
}

func (s *stripeService) TierForPriceID(priceID string) (domain.PlanTier, bool) {
	tier, ok := s.priceToTier[priceID]
	return tier, ok
}

func (s *stripeService) PriceIDForTier(tier domain.PlanTier) (string, bool) {
	price, ok := s.tierToPrice[tier]
	return price, ok
}
