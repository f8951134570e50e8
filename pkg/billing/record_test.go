package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/soralab/paywall/pkg/billing"
)

func TestPaidProviderStatus(t *testing.T) {
	t.Parallel()

	assert.True(t, billing.PaidProviderStatus(billing.ProviderStatusActive))
	assert.True(t, billing.PaidProviderStatus(billing.ProviderStatusTrialing))
	assert.False(t, billing.PaidProviderStatus(billing.ProviderStatusPastDue))
	assert.False(t, billing.PaidProviderStatus(billing.ProviderStatusCanceled))
	assert.False(t, billing.PaidProviderStatus("paused"))
	assert.False(t, billing.PaidProviderStatus(""))
}

func TestRecordActiveAt(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0).UTC()

	tests := []struct {
		name   string
		record billing.Record
		want   bool
	}{
		{
			name:   "zero record",
			record: billing.Record{UserID: "u1", Status: billing.StatusInactive},
			want:   false,
		},
		{
			name: "provider active",
			record: billing.Record{
				UserID:         "u1",
				ProviderStatus: billing.ProviderStatusActive,
			},
			want: true,
		},
		{
			name: "provider trialing",
			record: billing.Record{
				UserID:         "u1",
				ProviderStatus: billing.ProviderStatusTrialing,
			},
			want: true,
		},
		{
			name: "provider past_due",
			record: billing.Record{
				UserID:         "u1",
				Paid:           false,
				Status:         billing.StatusInactive,
				ProviderStatus: billing.ProviderStatusPastDue,
			},
			want: false,
		},
		{
			name: "paid and active without provider status",
			record: billing.Record{
				UserID: "u1",
				Paid:   true,
				Status: billing.StatusActive,
			},
			want: true,
		},
		{
			name: "paid but status inactive",
			record: billing.Record{
				UserID: "u1",
				Paid:   true,
				Status: billing.StatusInactive,
			},
			want: false,
		},
		{
			name: "canceled with period end in the future",
			record: billing.Record{
				UserID:            "u1",
				Paid:              false,
				Status:            billing.StatusInactive,
				ProviderStatus:    billing.ProviderStatusCanceled,
				CancelAtPeriodEnd: true,
				CurrentPeriodEnd:  now.Unix() + 3600,
			},
			want: true,
		},
		{
			name: "canceled with period end in the past",
			record: billing.Record{
				UserID:            "u1",
				ProviderStatus:    billing.ProviderStatusCanceled,
				CancelAtPeriodEnd: true,
				CurrentPeriodEnd:  now.Unix() - 3600,
			},
			want: false,
		},
		{
			name: "canceled with unknown period end",
			record: billing.Record{
				UserID:            "u1",
				ProviderStatus:    billing.ProviderStatusCanceled,
				CancelAtPeriodEnd: true,
				CurrentPeriodEnd:  0,
			},
			want: false,
		},
		{
			name: "period end in the future without scheduled cancellation",
			record: billing.Record{
				UserID:           "u1",
				ProviderStatus:   billing.ProviderStatusCanceled,
				CurrentPeriodEnd: now.Unix() + 3600,
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.record.ActiveAt(now))
		})
	}
}

func TestActiveNilRecord(t *testing.T) {
	t.Parallel()

	assert.False(t, billing.Active(nil, time.Now()))
}
