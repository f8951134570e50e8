// Package billing keeps a per-user subscription record in sync with an
// external billing provider and answers entitlement checks against it.
//
// The provider (Stripe or Paddle) is the source of truth; this package never
// mutates provider state beyond creating checkout and portal sessions. Webhook
// events are verified, mapped to a normalized Event, and reconciled into the
// Store as absolute field assignments, so redelivered events are harmless.
//
// Basic usage:
//
//	provider, err := billing.NewStripeProvider(stripeCfg)
//	if err != nil {
//		return err
//	}
//	svc := billing.NewService(billing.NewMemoryStore(), provider,
//		billing.WithLogger(log))
//
//	// Webhook handler:
//	event, err := provider.VerifyWebhook(ctx, payload, signature)
//	if err != nil {
//		// 400, do not retry
//	}
//	if err := svc.Reconcile(ctx, event); err != nil {
//		// 500, provider redelivers
//	}
//
// Entitlement is decided by Active: a record grants access while the provider
// reports it active or trialing, and for the remainder of an already-paid
// period after a scheduled cancellation.
package billing
