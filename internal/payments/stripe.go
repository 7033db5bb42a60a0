// Package payments integrates the Stripe subscription checkout and its
// webhook events.
package payments

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/markjakearzadon/realestate-gobackend/internal/models"
)

// Gateway creates processor-side records for the checkout flow.
type Gateway interface {
	CreateCustomer(ctx context.Context, agent *models.User) (string, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error)
}

type CheckoutRequest struct {
	CustomerID string
	AgentID    string
	SuccessURL string
	CancelURL  string
}

// StripeGateway sells a monthly featured-listing subscription at a fixed price.
type StripeGateway struct {
	api        *client.API
	priceCents int64
	currency   string
	product    string
}

func NewStripeGateway(secretKey string, priceCents int64) *StripeGateway {
	return &StripeGateway{
		api:        client.New(secretKey, nil),
		priceCents: priceCents,
		currency:   string(stripe.CurrencyUSD),
		product:    "Featured Listing Subscription",
	}
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, agent *models.User) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(agent.Email),
		Name:  stripe.String(agent.Name),
	}
	params.Context = ctx
	params.AddMetadata("agentId", agent.ID.Hex())

	c, err := g.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create stripe customer: %w", err)
	}
	return c.ID, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:           stripe.String(req.CustomerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(g.currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(g.product),
					Description: stripe.String("Feature your properties on the home page"),
				},
				UnitAmount: stripe.Int64(g.priceCents),
				Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
					Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"agentId": req.AgentID},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata("agentId", req.AgentID)

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	return s.URL, nil
}
