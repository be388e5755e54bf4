// AngelaMos | 2026
// stripe.go

package billing

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/trailnetzero/community-api/internal/config"
)

// StripeClient is the slice of the Stripe API the billing service needs.
// Kept small so tests can substitute a fake.
type StripeClient interface {
	CreateCheckoutSession(
		ctx context.Context,
		userID string,
		customerID string,
	) (string, error)
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
	GetSubscription(
		ctx context.Context,
		subscriptionID string,
	) (*stripe.Subscription, error)
}

type stripeClient struct {
	api *client.API
	cfg config.StripeConfig
}

func NewStripeClient(cfg config.StripeConfig) StripeClient {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)

	return &stripeClient{api: api, cfg: cfg}
}

func (c *stripeClient) CreateCheckoutSession(
	ctx context.Context,
	userID string,
	customerID string,
) (string, error) {
	// user_id metadata rides on the session itself and on the
	// subscription it creates, so both webhook shapes carry the buyer.
	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{
			Context:  ctx,
			Metadata: map[string]string{"user_id": userID},
		},
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(c.cfg.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(c.cfg.SuccessURL),
		CancelURL:         stripe.String(c.cfg.CancelURL),
		ClientReferenceID: stripe.String(userID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": userID},
		},
	}

	if customerID != "" {
		params.Customer = stripe.String(customerID)
	}

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}

	return session.URL, nil
}

func (c *stripeClient) CreatePortalSession(
	ctx context.Context,
	customerID string,
) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Params:    stripe.Params{Context: ctx},
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(c.cfg.PortalReturnURL),
	}

	session, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}

	return session.URL, nil
}

func (c *stripeClient) GetSubscription(
	ctx context.Context,
	subscriptionID string,
) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
	}

	sub, err := c.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}

	return sub, nil
}
