package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/soralab/paywall/pkg/logger"
)

// CheckoutResultKind distinguishes the two outcomes of a paywall start.
type CheckoutResultKind string

const (
	CheckoutResultCheckout CheckoutResultKind = "checkout"
	CheckoutResultPortal   CheckoutResultKind = "portal"
)

// CheckoutResult is the issuer's decision: either a fresh checkout session
// or a management session for an already-subscribed customer.
type CheckoutResult struct {
	Kind              CheckoutResultKind
	URL               string
	AlreadySubscribed bool
}

// SubscriptionStatus is the result of a status query.
type SubscriptionStatus struct {
	UserID string
	Active bool
	Record *Record // nil when the user has never checked out
}

// Service ties the provider, the record store, and the reconciliation rules
// together. It holds no per-request state; all state lives in the store.
type Service struct {
	store    Store
	provider Provider
	log      *slog.Logger
	now      func() time.Time
}

// ServiceOption configures optional Service settings.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the service clock. Test helper.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a Service. Panics on nil store or provider to fail fast
// during initialization.
func NewService(store Store, provider Provider, opts ...ServiceOption) *Service {
	if store == nil {
		panic("billing: Store is required")
	}
	if provider == nil {
		panic("billing: Provider is required")
	}

	s := &Service{
		store:    store,
		provider: provider,
		log:      slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reconcile applies a verified billing event to the addressed user's record.
//
// Every patch is an absolute field assignment, so replaying the same event
// converges to the same stored state. Events that cannot be attributed to a
// user and event kinds this system does not act on are logged and dropped
// with a nil error: the provider must still receive an acknowledgment, since
// neither case is a delivery failure. Only store failures are returned, so
// the caller answers non-2xx and the provider redelivers.
func (s *Service) Reconcile(ctx context.Context, event *Event) error {
	if event == nil {
		return nil
	}

	switch event.Kind {
	case EventCheckoutCompleted:
		if event.UserID == "" {
			s.log.WarnContext(ctx, "dropping unattributable billing event",
				logger.Event(event.ProviderEvent))
			return nil
		}
		patch := Patch{
			Paid:   ptrTo(true),
			Status: ptrTo(StatusActive),
		}
		if event.CustomerID != "" {
			patch.ProviderCustomerID = ptrTo(event.CustomerID)
		}
		if event.SubscriptionID != "" {
			patch.ProviderSubscriptionID = ptrTo(event.SubscriptionID)
		}
		return s.apply(ctx, event, patch)

	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		if event.UserID == "" {
			s.log.WarnContext(ctx, "dropping unattributable billing event",
				logger.Event(event.ProviderEvent))
			return nil
		}
		// Entitlement is derived from the provider status alone; deletion
		// events follow the same rule and typically carry "canceled".
		paid := PaidProviderStatus(event.ProviderStatus)
		status := StatusInactive
		if paid {
			status = StatusActive
		}
		patch := Patch{
			Paid:              ptrTo(paid),
			Status:            ptrTo(status),
			ProviderStatus:    ptrTo(event.ProviderStatus),
			CancelAtPeriodEnd: ptrTo(event.CancelAtPeriodEnd),
			CurrentPeriodEnd:  ptrTo(event.CurrentPeriodEnd),
		}
		if event.CustomerID != "" {
			patch.ProviderCustomerID = ptrTo(event.CustomerID)
		}
		if event.SubscriptionID != "" {
			patch.ProviderSubscriptionID = ptrTo(event.SubscriptionID)
		}
		return s.apply(ctx, event, patch)

	case EventInvoicePaid:
		// Extension point: renewals already arrive as subscription.updated.
		s.log.InfoContext(ctx, "invoice paid",
			logger.Event(event.ProviderEvent),
			slog.String("subscription_id", event.SubscriptionID))
		return nil

	default:
		s.log.DebugContext(ctx, "ignoring billing event",
			logger.Event(event.ProviderEvent))
		return nil
	}
}

func (s *Service) apply(ctx context.Context, event *Event, patch Patch) error {
	if err := s.store.Apply(ctx, event.UserID, patch); err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return err
		}
		return errors.Join(ErrStoreUnavailable, err)
	}

	s.log.InfoContext(ctx, "subscription record reconciled",
		logger.Event(event.ProviderEvent),
		logger.UserID(event.UserID),
		slog.String("provider_status", event.ProviderStatus),
		slog.Time("occurred_at", event.OccurredAt))
	return nil
}

// Status reports whether the user currently has access, along with the
// stored record. A user with no record is reported inactive with a nil
// record, not as an error.
func (s *Service) Status(ctx context.Context, userID string) (*SubscriptionStatus, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	rec, err := s.store.Get(ctx, userID)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	return &SubscriptionStatus{
		UserID: userID,
		Active: Active(rec, s.now()),
		Record: rec,
	}, nil
}

// StartCheckout decides between starting a new checkout and redirecting an
// existing customer to the management portal, so a user can never be billed
// twice for the same plan.
//
// An active record without a provider customer reference is surfaced as
// ErrMissingCustomer rather than silently starting a fresh checkout.
func (s *Service) StartCheckout(ctx context.Context, userID, email string) (*CheckoutResult, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	rec, err := s.store.Get(ctx, userID)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	if Active(rec, s.now()) {
		if rec.ProviderCustomerID == "" {
			s.log.ErrorContext(ctx, "record active but no provider customer on file",
				logger.UserID(userID))
			return nil, ErrMissingCustomer
		}

		portal, err := s.provider.CreatePortalSession(ctx, rec.ProviderCustomerID)
		if err != nil {
			return nil, errors.Join(ErrProvider, err)
		}
		return &CheckoutResult{
			Kind:              CheckoutResultPortal,
			URL:               portal.URL,
			AlreadySubscribed: true,
		}, nil
	}

	checkout, err := s.provider.CreateCheckoutSession(ctx, CheckoutRequest{
		UserID: userID,
		Email:  email,
	})
	if err != nil {
		return nil, errors.Join(ErrProvider, err)
	}

	return &CheckoutResult{
		Kind: CheckoutResultCheckout,
		URL:  checkout.URL,
	}, nil
}

// PortalSession opens a management session for a user who already has a
// provider customer on file. Returns ErrNoCustomer otherwise.
func (s *Service) PortalSession(ctx context.Context, userID string) (*PortalSession, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	rec, err := s.store.Get(ctx, userID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, ErrNoCustomer
	}
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	if rec.ProviderCustomerID == "" {
		return nil, ErrNoCustomer
	}

	portal, err := s.provider.CreatePortalSession(ctx, rec.ProviderCustomerID)
	if err != nil {
		return nil, errors.Join(ErrProvider, err)
	}
	return portal, nil
}
