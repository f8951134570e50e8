package billing

import (
	"context"
	"time"
)

// EventKind is the normalized billing event type. Each provider maps its own
// event vocabulary onto these.
type EventKind string

const (
	EventCheckoutCompleted   EventKind = "checkout_completed"
	EventSubscriptionUpdated EventKind = "subscription_updated"
	EventSubscriptionDeleted EventKind = "subscription_deleted"
	EventInvoicePaid         EventKind = "invoice_paid"
	// EventIgnored marks provider events this system does not act on. They
	// still verify and still get acknowledged.
	EventIgnored EventKind = "ignored"
)

// Event is a verified, normalized billing event. UserID is the buyer
// reference the checkout session embedded; it may be empty when the
// provider event cannot be attributed to a user.
type Event struct {
	Kind              EventKind
	ProviderEvent     string // original provider event name
	UserID            string // buyer reference
	CustomerID        string // provider customer id
	SubscriptionID    string // provider subscription id
	ProviderStatus    string // provider status vocabulary, verbatim
	CancelAtPeriodEnd bool
	CurrentPeriodEnd  int64 // unix seconds, 0 = unknown
	OccurredAt        time.Time
}

// CheckoutRequest carries what the provider needs to open a hosted checkout.
type CheckoutRequest struct {
	UserID string // embedded as buyer reference and event metadata
	Email  string // optional billing email pre-fill
}

// CheckoutSession is a provider-hosted checkout the browser is redirected to.
type CheckoutSession struct {
	URL       string
	SessionID string
}

// PortalSession is a provider-hosted management session for an existing
// customer (payment method updates, cancellation).
type PortalSession struct {
	URL string
}

// Provider is the boundary to the payment provider. Implementations use the
// official SDKs and keep provider quirks internal; all calls are network
// calls and must respect the caller's context.
type Provider interface {
	// CreateCheckoutSession opens a hosted checkout for the configured plan,
	// embedding the user identity so later webhook events can be attributed.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)

	// CreatePortalSession opens a management session for an existing customer.
	CreatePortalSession(ctx context.Context, customerID string) (*PortalSession, error)

	// VerifyWebhook authenticates a raw webhook payload against the shared
	// secret and decodes it into a normalized Event. The signature check runs
	// on the exact body bytes before any parsing. Fails with
	// ErrInvalidSignature or ErrMalformedPayload.
	VerifyWebhook(ctx context.Context, payload []byte, signature string) (*Event, error)

	// SignatureHeader names the HTTP header the provider delivers its
	// webhook signature in.
	SignatureHeader() string
}
