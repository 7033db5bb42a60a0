package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/markjakearzadon/realestate-gobackend/internal/auth"
	"github.com/markjakearzadon/realestate-gobackend/internal/metrics"
	"github.com/markjakearzadon/realestate-gobackend/internal/payments"
	"github.com/markjakearzadon/realestate-gobackend/internal/services"
)

const maxWebhookBody = 64 << 10

type SubscriptionHandler struct {
	users         UserStore
	gateway       payments.Gateway
	events        EventApplier
	metrics       *metrics.Metrics
	log           *zap.SugaredLogger
	frontendURL   string
	webhookSecret string
}

func NewSubscriptionHandler(d *Dependencies) *SubscriptionHandler {
	return &SubscriptionHandler{
		users:         d.Users,
		gateway:       d.Gateway,
		events:        d.Events,
		metrics:       d.Metrics,
		log:           d.Log,
		frontendURL:   strings.TrimRight(d.FrontendURL, "/"),
		webhookSecret: d.WebhookSecret,
	}
}

// CreateCheckoutSession starts a hosted checkout for the calling agent,
// creating the processor customer on first use.
func (h *SubscriptionHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	agent, _ := auth.UserFromContext(r.Context())

	customerID := agent.StripeCustomerID
	if customerID == "" {
		id, err := h.gateway.CreateCustomer(r.Context(), agent)
		if err != nil {
			writeServerError(w, h.log, "Failed to create checkout session", err)
			return
		}
		if err := h.users.SetStripeCustomer(r.Context(), agent.ID, id); err != nil {
			writeServiceError(w, h.log, err, "User not found", "Failed to create checkout session")
			return
		}
		customerID = id
	}

	url, err := h.gateway.CreateCheckoutSession(r.Context(), payments.CheckoutRequest{
		CustomerID: customerID,
		AgentID:    agent.ID.Hex(),
		SuccessURL: h.frontendURL + "/subscription-success",
		CancelURL:  h.frontendURL + "/subscription-cancel",
	})
	if err != nil {
		writeServerError(w, h.log, "Failed to create checkout session", err)
		return
	}
	h.log.Infof("Checkout session created for agent %s", agent.ID.Hex())
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Webhook verifies the signature over the raw body before anything is
// decoded or stored.
func (h *SubscriptionHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unable to read request body")
		return
	}
	event, err := payments.VerifyEvent(payload, r.Header.Get("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		h.log.Warnf("Rejected webhook: %v", err)
		writeError(w, http.StatusBadRequest, "Webhook Error: "+strings.TrimPrefix(err.Error(), payments.ErrBadSignature.Error()+": "))
		return
	}

	outcome, err := h.events.Apply(r.Context(), event)
	label := string(outcome)
	switch {
	case errors.Is(err, services.ErrNotFound):
		// Acknowledged; there is no agent to update.
		label = "unknown_agent"
		h.log.Warnf("Webhook %s names no known agent: %v", event.ID, err)
	case err != nil:
		h.observe(string(event.Type), "error")
		writeServerError(w, h.log, "Webhook handler failed", err)
		return
	}
	h.observe(string(event.Type), label)
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *SubscriptionHandler) observe(eventType, outcome string) {
	if h.metrics != nil {
		h.metrics.WebhookEvent(eventType, outcome)
	}
}
