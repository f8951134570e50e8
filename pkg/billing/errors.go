package billing

import "errors"

var (
	// ErrInvalidSignature indicates the webhook payload did not carry a valid
	// provider signature, or the shared secret is not configured.
	ErrInvalidSignature = errors.New("billing: invalid webhook signature")

	// ErrMalformedPayload indicates the payload passed signature verification
	// but could not be decoded into the expected event envelope.
	ErrMalformedPayload = errors.New("billing: malformed webhook payload")

	// ErrRecordNotFound is returned by stores when no record exists for a user.
	ErrRecordNotFound = errors.New("billing: subscription record not found")

	// ErrMissingCustomer indicates a record is marked active without a provider
	// customer reference. Surfaced rather than silently starting a new checkout
	// to avoid duplicate billing.
	ErrMissingCustomer = errors.New("billing: record active but no provider customer on file")

	// ErrNoCustomer indicates a portal session was requested for a user with
	// no provider customer reference at all.
	ErrNoCustomer = errors.New("billing: no provider customer on file")

	// ErrProvider wraps transient payment provider failures. Safe to retry.
	ErrProvider = errors.New("billing: payment provider request failed")

	// ErrStoreUnavailable wraps transient record store failures. Safe to retry
	// since all patches are idempotent absolute assignments.
	ErrStoreUnavailable = errors.New("billing: record store unavailable")

	// ErrMissingUserID is returned when an operation is invoked without a
	// caller identity.
	ErrMissingUserID = errors.New("billing: user id is required")
)
