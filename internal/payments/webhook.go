package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/markjakearzadon/realestate-gobackend/internal/mail"
	"github.com/markjakearzadon/realestate-gobackend/internal/models"
	"github.com/markjakearzadon/realestate-gobackend/internal/subscription"
)

const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventSubscriptionCreated   = "customer.subscription.created"
	EventInvoicePaid           = "invoice.payment_succeeded"
	EventSubscriptionDeleted   = "customer.subscription.deleted"
	EventSubscriptionCancelled = "customer.subscription.canceled"
	EventInvoiceFailed         = "invoice.payment_failed"
)

var ErrBadSignature = errors.New("webhook signature verification failed")

// VerifyEvent checks the Stripe-Signature header against the raw body.
func VerifyEvent(payload []byte, header, secret string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return event, nil
}

type SubscriptionStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByStripeRefs(ctx context.Context, customerID, subscriptionID string) (*models.User, error)
	UpdateSubscription(ctx context.Context, id primitive.ObjectID, update models.SubscriptionUpdate) (*models.User, error)
}

type Notifier interface {
	Go(msg mail.Message)
}

// Outcome says what an event did to the subscription.
type Outcome string

const (
	Activated   Outcome = "activated"
	Deactivated Outcome = "deactivated"
	Ignored     Outcome = "ignored"
)

// Processor applies verified webhook events to agent subscriptions.
type Processor struct {
	users  SubscriptionStore
	notify Notifier
	log    *zap.SugaredLogger
	now    func() time.Time
}

func NewProcessor(users SubscriptionStore, notify Notifier, log *zap.SugaredLogger) *Processor {
	return &Processor{users: users, notify: notify, log: log, now: time.Now}
}

// refs are the identifiers an event carries for locating the agent.
type refs struct {
	agentID        string
	customerID     string
	subscriptionID string
}

func (p *Processor) Apply(ctx context.Context, event stripe.Event) (Outcome, error) {
	var activate bool
	switch string(event.Type) {
	case EventCheckoutCompleted, EventSubscriptionCreated, EventInvoicePaid:
		activate = true
	case EventSubscriptionDeleted, EventSubscriptionCancelled, EventInvoiceFailed:
		activate = false
	default:
		p.log.Infof("Ignoring webhook event %s (%s)", event.Type, event.ID)
		return Ignored, nil
	}

	r, err := extractRefs(event)
	if err != nil {
		return "", err
	}
	agent, err := p.resolve(ctx, r)
	if err != nil {
		return "", fmt.Errorf("event %s: %w", event.ID, err)
	}

	update := models.SubscriptionUpdate{Active: activate}
	if activate {
		expiry := subscription.NextExpiry(p.now())
		update.Expiry = &expiry
		update.CustomerID = r.customerID
		update.SubscriptionID = r.subscriptionID
	}
	updated, err := p.users.UpdateSubscription(ctx, agent.ID, update)
	if err != nil {
		return "", fmt.Errorf("event %s: %w", event.ID, err)
	}

	if !activate {
		p.log.Infof("Subscription deactivated for agent %s by %s", agent.Email, event.Type)
		return Deactivated, nil
	}
	p.log.Infof("Subscription activated for agent %s by %s until %s", agent.Email, event.Type, update.Expiry.Format(time.RFC3339))
	// Only the completed checkout is confirmed; renewals extend silently.
	if string(event.Type) == EventCheckoutCompleted {
		p.notify.Go(mail.SubscriptionConfirmation(updated.Name, updated.Email, *update.Expiry))
	}
	return Activated, nil
}

func (p *Processor) resolve(ctx context.Context, r refs) (*models.User, error) {
	if id, err := primitive.ObjectIDFromHex(r.agentID); err == nil {
		u, err := p.users.GetByID(ctx, id)
		if err == nil {
			return u, nil
		}
		p.log.Warnf("Webhook agentId %s did not resolve: %v", r.agentID, err)
	}
	return p.users.FindByStripeRefs(ctx, r.customerID, r.subscriptionID)
}

func extractRefs(event stripe.Event) (refs, error) {
	var r refs
	if event.Data == nil {
		return r, fmt.Errorf("event %s has no data", event.ID)
	}
	raw := event.Data.Raw
	switch string(event.Type) {
	case EventCheckoutCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(raw, &s); err != nil {
			return r, fmt.Errorf("failed to decode checkout session: %w", err)
		}
		r.agentID = s.Metadata["agentId"]
		if s.Customer != nil {
			r.customerID = s.Customer.ID
		}
		if s.Subscription != nil {
			r.subscriptionID = s.Subscription.ID
		}
	case EventSubscriptionCreated, EventSubscriptionDeleted, EventSubscriptionCancelled:
		var s stripe.Subscription
		if err := json.Unmarshal(raw, &s); err != nil {
			return r, fmt.Errorf("failed to decode subscription: %w", err)
		}
		r.agentID = s.Metadata["agentId"]
		r.subscriptionID = s.ID
		if s.Customer != nil {
			r.customerID = s.Customer.ID
		}
	case EventInvoicePaid, EventInvoiceFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return r, fmt.Errorf("failed to decode invoice: %w", err)
		}
		if inv.Customer != nil {
			r.customerID = inv.Customer.ID
		}
		if inv.Subscription != nil {
			r.subscriptionID = inv.Subscription.ID
		}
	}
	return r, nil
}
