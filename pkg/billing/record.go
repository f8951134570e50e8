package billing

import "time"

// Status is the application-level coarse subscription status, derived from
// the most recent provider event and never set from client input.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Provider status vocabulary, stored verbatim for audit and debugging.
// Providers may emit values outside this list; unknown statuses never grant
// entitlement.
const (
	ProviderStatusActive   = "active"
	ProviderStatusTrialing = "trialing"
	ProviderStatusPastDue  = "past_due"
	ProviderStatusCanceled = "canceled"
)

// Record is the durable subscription state for one user. The user identity
// is the primary key; records are looked up by it only, never scanned.
type Record struct {
	UserID                 string    `json:"userId"`
	Paid                   bool      `json:"isPaid"`
	Status                 Status    `json:"status"`
	ProviderStatus         string    `json:"providerStatus,omitempty"`
	ProviderCustomerID     string    `json:"providerCustomerId,omitempty"`
	ProviderSubscriptionID string    `json:"providerSubscriptionId,omitempty"`
	CancelAtPeriodEnd      bool      `json:"cancelAtPeriodEnd"`
	CurrentPeriodEnd       int64     `json:"currentPeriodEnd,omitempty"` // unix seconds, 0 = unset
	UpdatedAt              time.Time `json:"updatedAt"`
}

// PaidProviderStatus reports whether a provider status grants entitlement.
// Fails closed: anything outside active/trialing does not.
func PaidProviderStatus(status string) bool {
	switch status {
	case ProviderStatusActive, ProviderStatusTrialing:
		return true
	default:
		return false
	}
}

// ActiveAt reports whether the record grants access at the given time.
// Any one condition suffices: a paid provider status, the derived
// entitlement pair, or a scheduled-but-not-yet-effective cancellation whose
// paid period has not elapsed.
func (r *Record) ActiveAt(now time.Time) bool {
	if PaidProviderStatus(r.ProviderStatus) {
		return true
	}
	if r.Paid && r.Status == StatusActive {
		return true
	}
	if r.CancelAtPeriodEnd && r.CurrentPeriodEnd > 0 && r.CurrentPeriodEnd > now.Unix() {
		return true
	}
	return false
}

// Active is the nil-tolerant form of ActiveAt: a missing record never
// grants access.
func Active(r *Record, now time.Time) bool {
	if r == nil {
		return false
	}
	return r.ActiveAt(now)
}
