package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig holds configuration for the Paddle billing provider.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	PriceID       string `env:"PADDLE_PRICE_ID,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
	SuccessURL    string `env:"CHECKOUT_SUCCESS_URL,required"`
}

// PaddleProvider implements Provider for Paddle.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
	config   PaddleConfig
}

// NewPaddleProvider creates a Paddle billing provider.
func NewPaddleProvider(config PaddleConfig) (*PaddleProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("paddle API key is required")
	}
	if config.WebhookSecret == "" {
		return nil, errors.New("paddle webhook secret is required")
	}
	if config.PriceID == "" {
		return nil, errors.New("paddle price id is required")
	}

	var sdk *paddle.SDK
	var err error
	switch strings.ToLower(config.Environment) {
	case "sandbox":
		sdk, err = paddle.NewSandbox(config.APIKey)
	case "production", "":
		sdk, err = paddle.New(config.APIKey)
	default:
		return nil, fmt.Errorf("invalid paddle environment: %s", config.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	return &PaddleProvider{
		client:   sdk,
		verifier: paddle.NewWebhookVerifier(config.WebhookSecret),
		config:   config,
	}, nil
}

// CreateCheckoutSession creates a Paddle transaction for the configured
// price with the buyer reference in custom data.
func (p *PaddleProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.UserID == "" {
		return nil, ErrMissingUserID
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  p.config.PriceID,
		Quantity: 1,
	})

	transactionReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			metadataUserKey: req.UserID,
		},
		Checkout: &paddle.TransactionCheckout{
			URL: paddle.PtrTo(p.config.SuccessURL),
		},
	}
	if req.Email != "" {
		transactionReq.CustomData["email"] = req.Email
	}

	transaction, err := p.client.TransactionsClient.CreateTransaction(ctx, transactionReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle transaction: %w", err)
	}
	if transaction.Checkout == nil || transaction.Checkout.URL == nil || *transaction.Checkout.URL == "" {
		return nil, errors.New("no checkout URL returned from paddle")
	}

	return &CheckoutSession{URL: *transaction.Checkout.URL, SessionID: transaction.ID}, nil
}

// CreatePortalSession returns a link to Paddle's customer portal.
func (p *PaddleProvider) CreatePortalSession(ctx context.Context, customerID string) (*PortalSession, error) {
	if customerID == "" {
		return nil, ErrNoCustomer
	}

	session, err := p.client.CustomerPortalSessionsClient.CreateCustomerPortalSession(ctx, &paddle.CreateCustomerPortalSessionRequest{
		CustomerID: customerID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle customer portal session: %w", err)
	}
	if session.URLs.General.Overview == "" {
		return nil, errors.New("no portal URL returned from paddle")
	}

	return &PortalSession{URL: session.URLs.General.Overview}, nil
}

// SignatureHeader names Paddle's webhook signature header.
func (p *PaddleProvider) SignatureHeader() string { return "Paddle-Signature" }

// paddleEnvelope is the outer webhook shape shared by all Paddle events.
type paddleEnvelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt string          `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type paddleSubscriptionData struct {
	ID                   string            `json:"id"`
	CustomerID           string            `json:"customer_id"`
	Status               string            `json:"status"`
	CustomData           map[string]string `json:"custom_data"`
	CurrentBillingPeriod *struct {
		EndsAt string `json:"ends_at"`
	} `json:"current_billing_period"`
	ScheduledChange *struct {
		Action string `json:"action"`
	} `json:"scheduled_change"`
}

type paddleTransactionData struct {
	ID             string            `json:"id"`
	CustomerID     string            `json:"customer_id"`
	SubscriptionID string            `json:"subscription_id"`
	Status         string            `json:"status"`
	CustomData     map[string]string `json:"custom_data"`
}

// VerifyWebhook authenticates the payload via the SDK's verifier, which
// needs an http.Request carrying the raw body and the signature header.
func (p *PaddleProvider) VerifyWebhook(ctx context.Context, payload []byte, signature string) (*Event, error) {
	if p.config.WebhookSecret == "" {
		return nil, ErrInvalidSignature
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}
	if !valid {
		return nil, ErrInvalidSignature
	}

	var envelope paddleEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, errors.Join(ErrMalformedPayload, err)
	}

	event := &Event{ProviderEvent: envelope.EventType}
	if ts, err := time.Parse(time.RFC3339, envelope.OccurredAt); err == nil {
		event.OccurredAt = ts.UTC()
	}

	switch envelope.EventType {
	case "transaction.completed":
		var txn paddleTransactionData
		if err := json.Unmarshal(envelope.Data, &txn); err != nil {
			return nil, errors.Join(ErrMalformedPayload, err)
		}
		event.Kind = EventCheckoutCompleted
		event.UserID = txn.CustomData[metadataUserKey]
		event.CustomerID = txn.CustomerID
		event.SubscriptionID = txn.SubscriptionID

	case "subscription.created", "subscription.updated", "subscription.canceled":
		var sub paddleSubscriptionData
		if err := json.Unmarshal(envelope.Data, &sub); err != nil {
			return nil, errors.Join(ErrMalformedPayload, err)
		}
		if envelope.EventType == "subscription.canceled" {
			event.Kind = EventSubscriptionDeleted
		} else {
			event.Kind = EventSubscriptionUpdated
		}
		event.UserID = sub.CustomData[metadataUserKey]
		event.CustomerID = sub.CustomerID
		event.SubscriptionID = sub.ID
		event.ProviderStatus = sub.Status
		if sub.ScheduledChange != nil && sub.ScheduledChange.Action == "cancel" {
			event.CancelAtPeriodEnd = true
		}
		if sub.CurrentBillingPeriod != nil {
			if ends, err := time.Parse(time.RFC3339, sub.CurrentBillingPeriod.EndsAt); err == nil {
				event.CurrentPeriodEnd = ends.Unix()
			}
		}

	case "transaction.paid":
		event.Kind = EventInvoicePaid

	default:
		event.Kind = EventIgnored
	}

	return event, nil
}
