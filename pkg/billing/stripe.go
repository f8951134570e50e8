package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeConfig holds configuration for the Stripe billing provider.
type StripeConfig struct {
	SecretKey       string `env:"STRIPE_SECRET_KEY,required"`
	WebhookSecret   string `env:"STRIPE_WEBHOOK_SECRET,required"`
	PriceID         string `env:"STRIPE_PRICE_ID,required"`
	SuccessURL      string `env:"CHECKOUT_SUCCESS_URL,required"` // may contain {CHECKOUT_SESSION_ID}
	CancelURL       string `env:"CHECKOUT_CANCEL_URL,required"`
	PortalReturnURL string `env:"PORTAL_RETURN_URL,required"`
}

// metadataUserKey is the metadata field carrying the buyer reference on
// checkout sessions and subscriptions, so every later webhook event can be
// attributed back to an application user.
const metadataUserKey = "user_id"

// StripeProvider implements Provider for Stripe.
type StripeProvider struct {
	api    *client.API
	config StripeConfig
}

// NewStripeProvider creates a Stripe billing provider.
func NewStripeProvider(config StripeConfig) (*StripeProvider, error) {
	if config.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if config.WebhookSecret == "" {
		return nil, errors.New("stripe webhook secret is required")
	}
	if config.PriceID == "" {
		return nil, errors.New("stripe price id is required")
	}

	api := &client.API{}
	api.Init(config.SecretKey, nil)

	return &StripeProvider{api: api, config: config}, nil
}

// CreateCheckoutSession opens a subscription-mode hosted checkout for the
// configured price, with the user identity as client reference and metadata.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.UserID == "" {
		return nil, ErrMissingUserID
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.config.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(p.config.SuccessURL),
		CancelURL:         stripe.String(p.config.CancelURL),
		ClientReferenceID: stripe.String(req.UserID),
		// Propagate the buyer reference onto the subscription object so
		// customer.subscription.* events carry it too, not only the
		// checkout session.
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{metadataUserKey: req.UserID},
		},
	}
	params.Context = ctx
	params.AddMetadata(metadataUserKey, req.UserID)
	params.SetIdempotencyKey(uuid.NewString())

	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}

	session, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create stripe checkout session: %w", err)
	}
	if session.URL == "" {
		return nil, errors.New("no checkout URL returned from stripe")
	}

	return &CheckoutSession{URL: session.URL, SessionID: session.ID}, nil
}

// CreatePortalSession opens a billing-portal session for an existing customer.
func (p *StripeProvider) CreatePortalSession(ctx context.Context, customerID string) (*PortalSession, error) {
	if customerID == "" {
		return nil, ErrNoCustomer
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(p.config.PortalReturnURL),
	}
	params.Context = ctx

	session, err := p.api.BillingPortalSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create stripe portal session: %w", err)
	}
	if session.URL == "" {
		return nil, errors.New("no portal URL returned from stripe")
	}

	return &PortalSession{URL: session.URL}, nil
}

// SignatureHeader names Stripe's webhook signature header.
func (p *StripeProvider) SignatureHeader() string { return "Stripe-Signature" }

// Minimal payload shapes decoded from event.Data.Raw. The SDK's full types
// are deliberately avoided here: webhook payloads carry expandable fields as
// plain IDs, and the field set Stripe ships moves between API versions.
type stripeCheckoutSession struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

type stripeSubscription struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Status            string            `json:"status"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64             `json:"current_period_end"`
	Metadata          map[string]string `json:"metadata"`
}

type stripeInvoice struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
}

// VerifyWebhook authenticates the payload against the endpoint secret and
// decodes it into a normalized Event. The signature check runs on the raw
// bytes exactly as delivered; re-encoding would invalidate it.
func (p *StripeProvider) VerifyWebhook(ctx context.Context, payload []byte, signature string) (*Event, error) {
	if p.config.WebhookSecret == "" {
		return nil, ErrInvalidSignature
	}

	stripeEvent, err := webhook.ConstructEventWithOptions(payload, signature, p.config.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isStripeSignatureError(err) {
			return nil, errors.Join(ErrInvalidSignature, err)
		}
		return nil, errors.Join(ErrMalformedPayload, err)
	}

	event := &Event{
		ProviderEvent: string(stripeEvent.Type),
		OccurredAt:    time.Unix(stripeEvent.Created, 0).UTC(),
	}

	switch stripeEvent.Type {
	case "checkout.session.completed":
		var session stripeCheckoutSession
		if err := json.Unmarshal(stripeEvent.Data.Raw, &session); err != nil {
			return nil, errors.Join(ErrMalformedPayload, err)
		}
		event.Kind = EventCheckoutCompleted
		event.UserID = buyerReference(session.ClientReferenceID, session.Metadata)
		event.CustomerID = session.Customer
		event.SubscriptionID = session.Subscription

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripeSubscription
		if err := json.Unmarshal(stripeEvent.Data.Raw, &sub); err != nil {
			return nil, errors.Join(ErrMalformedPayload, err)
		}
		if stripeEvent.Type == "customer.subscription.deleted" {
			event.Kind = EventSubscriptionDeleted
		} else {
			event.Kind = EventSubscriptionUpdated
		}
		event.UserID = buyerReference("", sub.Metadata)
		event.CustomerID = sub.Customer
		event.SubscriptionID = sub.ID
		event.ProviderStatus = sub.Status
		event.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		event.CurrentPeriodEnd = sub.CurrentPeriodEnd

	case "invoice.paid":
		var inv stripeInvoice
		if err := json.Unmarshal(stripeEvent.Data.Raw, &inv); err != nil {
			return nil, errors.Join(ErrMalformedPayload, err)
		}
		event.Kind = EventInvoicePaid
		event.CustomerID = inv.Customer
		event.SubscriptionID = inv.Subscription

	default:
		event.Kind = EventIgnored
	}

	return event, nil
}

func buyerReference(clientReferenceID string, metadata map[string]string) string {
	if clientReferenceID != "" {
		return clientReferenceID
	}
	return metadata[metadataUserKey]
}

func isStripeSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrTooOld)
}
