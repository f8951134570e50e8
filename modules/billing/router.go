package billing

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/soralab/paywall/pkg/billing"
	"github.com/soralab/paywall/pkg/jwt"
	"github.com/soralab/paywall/pkg/logger"
)

// maxWebhookBodyBytes caps webhook payloads. Provider events are small; a
// larger body is never legitimate.
const maxWebhookBodyBytes = 64 * 1024

// Config holds the HTTP module configuration.
type Config struct {
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// Module is the billing HTTP surface: subscription status, checkout and
// portal issuing for authenticated users, and the provider webhook.
type Module struct {
	svc      *billing.Service
	provider billing.Provider
	jwt      *jwt.Service
	log      *slog.Logger
	config   Config
}

// ModuleOption configures optional Module settings.
type ModuleOption func(*Module)

// WithLogger sets the module logger.
func WithLogger(log *slog.Logger) ModuleOption {
	return func(m *Module) {
		if log != nil {
			m.log = log
		}
	}
}

// NewModule creates the billing HTTP module. Panics on nil dependencies to
// fail fast during initialization.
func NewModule(config Config, svc *billing.Service, provider billing.Provider, jwtSvc *jwt.Service, opts ...ModuleOption) *Module {
	if svc == nil {
		panic("billing module: Service is required")
	}
	if provider == nil {
		panic("billing module: Provider is required")
	}
	if jwtSvc == nil {
		panic("billing module: jwt.Service is required")
	}

	m := &Module{
		svc:      svc,
		provider: provider,
		jwt:      jwtSvc,
		log:      slog.Default(),
		config:   config,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Router mounts the billing routes. The webhook stays outside the identity
// middleware: it is authenticated by the provider signature, not a token.
func (m *Module) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(corsMiddleware(m.config.CORSAllowedOrigins))

	r.Post("/webhook", m.handleWebhook)

	r.Group(func(r chi.Router) {
		r.Use(RequireIdentity(m.jwt))

		r.Get("/subscription", m.handleSubscription)
		r.Get("/checkout", m.handleCheckout)
		r.Post("/checkout", m.handleCheckout)
		r.Get("/portal", m.handlePortal)
	})

	return r
}

type subscriptionResponse struct {
	OK     bool   `json:"ok"`
	UserID string `json:"userId"`
	Active bool   `json:"isActive"`
	// Subscribed mirrors Active under the field name older clients read.
	Subscribed bool            `json:"isSubscribed"`
	Record     *billing.Record `json:"subscription"`
}

func (m *Module) handleSubscription(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	status, err := m.svc.Status(r.Context(), identity.Subject)
	if err != nil {
		m.log.ErrorContext(r.Context(), "subscription status lookup failed",
			logger.UserID(identity.Subject), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load subscription")
		return
	}

	writeJSON(w, http.StatusOK, subscriptionResponse{
		OK:         true,
		UserID:     status.UserID,
		Active:     status.Active,
		Subscribed: status.Active,
		Record:     status.Record,
	})
}

type checkoutResponse struct {
	URL               string `json:"url"`
	AlreadySubscribed bool   `json:"alreadySubscribed,omitempty"`
}

func (m *Module) handleCheckout(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	result, err := m.svc.StartCheckout(r.Context(), identity.Subject, identity.Email)
	switch {
	case errors.Is(err, billing.ErrMissingCustomer):
		writeError(w, http.StatusConflict, "subscription active but no billing customer on file")
		return
	case err != nil:
		m.log.ErrorContext(r.Context(), "checkout start failed",
			logger.UserID(identity.Subject), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start checkout")
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{
		URL:               result.URL,
		AlreadySubscribed: result.AlreadySubscribed,
	})
}

func (m *Module) handlePortal(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	portal, err := m.svc.PortalSession(r.Context(), identity.Subject)
	switch {
	case errors.Is(err, billing.ErrNoCustomer):
		writeError(w, http.StatusBadRequest, "no billing customer on file")
		return
	case err != nil:
		m.log.ErrorContext(r.Context(), "portal session failed",
			logger.UserID(identity.Subject), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to open billing portal")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": portal.URL})
}

// handleWebhook verifies and reconciles provider events. A processed or
// deliberately ignored event is always acknowledged with 200 so the provider
// stops redelivering; only store failures answer 500 to trigger a retry.
func (m *Module) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	signature := r.Header.Get(m.provider.SignatureHeader())

	event, err := m.provider.VerifyWebhook(r.Context(), payload, signature)
	switch {
	case errors.Is(err, billing.ErrInvalidSignature):
		m.log.WarnContext(r.Context(), "webhook signature rejected", logger.Error(err))
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	case err != nil:
		m.log.WarnContext(r.Context(), "webhook payload rejected", logger.Error(err))
		writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}

	if err := m.svc.Reconcile(r.Context(), event); err != nil {
		m.log.ErrorContext(r.Context(), "webhook reconciliation failed",
			logger.Event(event.ProviderEvent), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to process event")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
