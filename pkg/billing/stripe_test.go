package billing_test

import (
	"context"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/soralab/paywall/pkg/billing"
)

const stripeTestSecret = "whsec_test_secret"

func newStripeTestProvider(t *testing.T) *billing.StripeProvider {
	t.Helper()

	provider, err := billing.NewStripeProvider(billing.StripeConfig{
		SecretKey:       "sk_test_123",
		WebhookSecret:   stripeTestSecret,
		PriceID:         "price_123",
		SuccessURL:      "https://app.example/billing/success",
		CancelURL:       "https://app.example/billing/cancel",
		PortalReturnURL: "https://app.example/account",
	})
	require.NoError(t, err)
	return provider
}

// signStripePayload mints a signature header the way Stripe does.
func signStripePayload(payload []byte, secret string) string {
	ts := time.Now()
	sig := webhook.ComputeSignature(ts, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(sig))
}

func stripeEventPayload(eventType, object string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"type": %q,
		"created": 1700000000,
		"data": {"object": %s}
	}`, eventType, object))
}

func TestNewStripeProviderValidation(t *testing.T) {
	t.Parallel()

	_, err := billing.NewStripeProvider(billing.StripeConfig{
		WebhookSecret: "whsec_x", PriceID: "price_x",
	})
	assert.Error(t, err)

	_, err = billing.NewStripeProvider(billing.StripeConfig{
		SecretKey: "sk_x", PriceID: "price_x",
	})
	assert.Error(t, err)

	_, err = billing.NewStripeProvider(billing.StripeConfig{
		SecretKey: "sk_x", WebhookSecret: "whsec_x",
	})
	assert.Error(t, err)
}

func TestStripeVerifyWebhookSignature(t *testing.T) {
	t.Parallel()

	provider := newStripeTestProvider(t)
	ctx := context.Background()
	payload := stripeEventPayload("checkout.session.completed", `{"id": "cs_1"}`)

	t.Run("valid signature", func(t *testing.T) {
		event, err := provider.VerifyWebhook(ctx, payload, signStripePayload(payload, stripeTestSecret))
		require.NoError(t, err)
		assert.Equal(t, billing.EventCheckoutCompleted, event.Kind)
	})

	t.Run("tampered payload", func(t *testing.T) {
		sig := signStripePayload(payload, stripeTestSecret)
		tampered := append([]byte(nil), payload...)
		tampered[len(tampered)-2] ^= 0x01

		_, err := provider.VerifyWebhook(ctx, tampered, sig)
		assert.ErrorIs(t, err, billing.ErrInvalidSignature)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := provider.VerifyWebhook(ctx, payload, signStripePayload(payload, "whsec_other"))
		assert.ErrorIs(t, err, billing.ErrInvalidSignature)
	})

	t.Run("garbage header", func(t *testing.T) {
		_, err := provider.VerifyWebhook(ctx, payload, "not-a-signature")
		assert.ErrorIs(t, err, billing.ErrInvalidSignature)
	})

	t.Run("missing header", func(t *testing.T) {
		_, err := provider.VerifyWebhook(ctx, payload, "")
		assert.ErrorIs(t, err, billing.ErrInvalidSignature)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		ts := time.Now().Add(-time.Hour)
		sig := webhook.ComputeSignature(ts, payload, stripeTestSecret)
		header := fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(sig))

		_, err := provider.VerifyWebhook(ctx, payload, header)
		assert.ErrorIs(t, err, billing.ErrInvalidSignature)
	})

	t.Run("valid signature over invalid json", func(t *testing.T) {
		bad := []byte(`{"id": "evt_1", "type": "checkout.session.completed"`)
		_, err := provider.VerifyWebhook(ctx, bad, signStripePayload(bad, stripeTestSecret))
		assert.ErrorIs(t, err, billing.ErrMalformedPayload)
	})
}

func TestStripeVerifyWebhookCheckoutCompleted(t *testing.T) {
	t.Parallel()

	provider := newStripeTestProvider(t)
	payload := stripeEventPayload("checkout.session.completed", `{
		"id": "cs_1",
		"customer": "cus_123",
		"subscription": "sub_456",
		"client_reference_id": "user-42",
		"metadata": {"user_id": "user-42"}
	}`)

	event, err := provider.VerifyWebhook(context.Background(), payload, signStripePayload(payload, stripeTestSecret))
	require.NoError(t, err)

	assert.Equal(t, billing.EventCheckoutCompleted, event.Kind)
	assert.Equal(t, "checkout.session.completed", event.ProviderEvent)
	assert.Equal(t, "user-42", event.UserID)
	assert.Equal(t, "cus_123", event.CustomerID)
	assert.Equal(t, "sub_456", event.SubscriptionID)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), event.OccurredAt)
}

func TestStripeVerifyWebhookCheckoutMetadataFallback(t *testing.T) {
	t.Parallel()

	provider := newStripeTestProvider(t)
	payload := stripeEventPayload("checkout.session.completed", `{
		"id": "cs_1",
		"metadata": {"user_id": "user-42"}
	}`)

	event, err := provider.VerifyWebhook(context.Background(), payload, signStripePayload(payload, stripeTestSecret))
	require.NoError(t, err)
	assert.Equal(t, "user-42", event.UserID)
}

func TestStripeVerifyWebhookSubscriptionEvents(t *testing.T) {
	t.Parallel()

	provider := newStripeTestProvider(t)
	object := `{
		"id": "sub_456",
		"customer": "cus_123",
		"status": "canceled",
		"cancel_at_period_end": true,
		"current_period_end": 1702000000,
		"metadata": {"user_id": "user-42"}
	}`

	tests := []struct {
		eventType string
		wantKind  billing.EventKind
	}{
		{"customer.subscription.created", billing.EventSubscriptionUpdated},
		{"customer.subscription.updated", billing.EventSubscriptionUpdated},
		{"customer.subscription.deleted", billing.EventSubscriptionDeleted},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			payload := stripeEventPayload(tt.eventType, object)
			event, err := provider.VerifyWebhook(context.Background(), payload, signStripePayload(payload, stripeTestSecret))
			require.NoError(t, err)

			assert.Equal(t, tt.wantKind, event.Kind)
			assert.Equal(t, "user-42", event.UserID)
			assert.Equal(t, "cus_123", event.CustomerID)
			assert.Equal(t, "sub_456", event.SubscriptionID)
			assert.Equal(t, "canceled", event.ProviderStatus)
			assert.True(t, event.CancelAtPeriodEnd)
			assert.EqualValues(t, 1702000000, event.CurrentPeriodEnd)
		})
	}
}

func TestStripeVerifyWebhookInvoicePaid(t *testing.T) {
	t.Parallel()

	provider := newStripeTestProvider(t)
	payload := stripeEventPayload("invoice.paid", `{
		"id": "in_1",
		"customer": "cus_123",
		"subscription": "sub_456"
	}`)

	event, err := provider.VerifyWebhook(context.Background(), payload, signStripePayload(payload, stripeTestSecret))
	require.NoError(t, err)
	assert.Equal(t, billing.EventInvoicePaid, event.Kind)
	assert.Equal(t, "cus_123", event.CustomerID)
	assert.Equal(t, "sub_456", event.SubscriptionID)
}

func TestStripeVerifyWebhookIgnoredType(t *testing.T) {
	t.Parallel()

	provider := newStripeTestProvider(t)
	payload := stripeEventPayload("customer.created", `{"id": "cus_123"}`)

	event, err := provider.VerifyWebhook(context.Background(), payload, signStripePayload(payload, stripeTestSecret))
	require.NoError(t, err)
	assert.Equal(t, billing.EventIgnored, event.Kind)
	assert.Equal(t, "customer.created", event.ProviderEvent)
}
