package services

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type StripeConfig struct {
	SecretKey  string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ID  string `json:"sessionId"`
	URL string `json:"url"`
}

// BillingGateway is the outbound side of the billing provider.
type BillingGateway interface {
	CreateCheckoutSession(ctx context.Context, userID, email, customerID string) (*CheckoutSession, error)
	CancelAtPeriodEnd(ctx context.Context, customerID string) error
}

type StripeGateway struct {
	api *client.API
	cfg StripeConfig
}

func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return &StripeGateway{api: api, cfg: cfg}
}

// CreateCheckoutSession starts a subscription checkout. The user id is
// carried as client reference and metadata so webhooks can find the
// user before a customer id is stored.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, userID, email, customerID string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(g.cfg.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(userID),
		SuccessURL:        stripe.String(g.cfg.SuccessURL),
		CancelURL:         stripe.String(g.cfg.CancelURL),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": userID},
		},
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	} else if email != "" {
		params.CustomerEmail = stripe.String(email)
	}

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// CancelAtPeriodEnd keeps access until the paid period runs out; the
// deletion webhook revokes premium afterwards.
func (g *StripeGateway) CancelAtPeriodEnd(ctx context.Context, customerID string) error {
	listParams := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	listParams.Context = ctx

	it := g.api.Subscriptions.List(listParams)
	for it.Next() {
		sub := it.Subscription()
		params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
		params.Context = ctx
		if _, err := g.api.Subscriptions.Update(sub.ID, params); err != nil {
			return fmt.Errorf("failed to cancel subscription %s: %w", sub.ID, err)
		}
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return nil
}
