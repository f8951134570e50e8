package billing

import (
	"context"
	"time"
)

// Patch is a partial update to a subscription record. Nil fields are left
// untouched; set fields are absolute assignments, never increments, so
// replaying the same patch converges to the same state. UpdatedAt is
// refreshed by the store on every Apply.
type Patch struct {
	Paid                   *bool
	Status                 *Status
	ProviderStatus         *string
	ProviderCustomerID     *string
	ProviderSubscriptionID *string
	CancelAtPeriodEnd      *bool
	CurrentPeriodEnd       *int64
}

// IsZero reports whether the patch names no fields at all.
func (p Patch) IsZero() bool {
	return p.Paid == nil &&
		p.Status == nil &&
		p.ProviderStatus == nil &&
		p.ProviderCustomerID == nil &&
		p.ProviderSubscriptionID == nil &&
		p.CancelAtPeriodEnd == nil &&
		p.CurrentPeriodEnd == nil
}

// ApplyTo merges the patch into a record in place and stamps UpdatedAt.
// Store implementations with native partial-update support (Redis hashes,
// Mongo $set) do not use this; the in-memory store and tests do.
func (p Patch) ApplyTo(r *Record, now time.Time) {
	if p.Paid != nil {
		r.Paid = *p.Paid
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.ProviderStatus != nil {
		r.ProviderStatus = *p.ProviderStatus
	}
	if p.ProviderCustomerID != nil {
		r.ProviderCustomerID = *p.ProviderCustomerID
	}
	if p.ProviderSubscriptionID != nil {
		r.ProviderSubscriptionID = *p.ProviderSubscriptionID
	}
	if p.CancelAtPeriodEnd != nil {
		r.CancelAtPeriodEnd = *p.CancelAtPeriodEnd
	}
	if p.CurrentPeriodEnd != nil {
		r.CurrentPeriodEnd = *p.CurrentPeriodEnd
	}
	r.UpdatedAt = now
}

// Store is the persistence contract for subscription records.
//
// Apply upserts: a record is created lazily on the first patch for a user
// and mutated in place afterwards. Records are never hard-deleted; a
// cancellation is represented by the stored status. Each Apply must be an
// atomic partial write touching only the named fields plus UpdatedAt.
type Store interface {
	// Get retrieves the record for a user.
	// Returns ErrRecordNotFound if none exists.
	Get(ctx context.Context, userID string) (*Record, error)

	// Apply upserts the patch into the user's record.
	Apply(ctx context.Context, userID string, patch Patch) error
}

func ptrTo[T any](v T) *T { return &v }
