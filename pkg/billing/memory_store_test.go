package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soralab/paywall/pkg/billing"
)

func ptr[T any](v T) *T { return &v }

func TestMemoryStoreGetMissing(t *testing.T) {
	t.Parallel()

	store := billing.NewMemoryStore()

	rec, err := store.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, billing.ErrRecordNotFound)
	assert.Nil(t, rec)
}

func TestMemoryStoreApplyCreatesRecord(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0).UTC()
	store := billing.NewMemoryStore().WithClock(func() time.Time { return now })

	err := store.Apply(context.Background(), "u1", billing.Patch{
		Paid:   ptr(true),
		Status: ptr(billing.StatusActive),
	})
	require.NoError(t, err)

	rec, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.UserID)
	assert.True(t, rec.Paid)
	assert.Equal(t, billing.StatusActive, rec.Status)
	assert.Equal(t, now, rec.UpdatedAt)
}

func TestMemoryStorePartialPatchLeavesOtherFields(t *testing.T) {
	t.Parallel()

	store := billing.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Apply(ctx, "u1", billing.Patch{
		Paid:               ptr(true),
		Status:             ptr(billing.StatusActive),
		ProviderCustomerID: ptr("cus_123"),
	}))

	// A later patch naming only the provider status must not clobber the
	// customer reference.
	require.NoError(t, store.Apply(ctx, "u1", billing.Patch{
		ProviderStatus: ptr(billing.ProviderStatusPastDue),
	}))

	rec, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "cus_123", rec.ProviderCustomerID)
	assert.Equal(t, billing.ProviderStatusPastDue, rec.ProviderStatus)
	assert.True(t, rec.Paid)
}

func TestMemoryStoreApplyRefreshesUpdatedAt(t *testing.T) {
	t.Parallel()

	clock := time.Unix(1_700_000_000, 0).UTC()
	store := billing.NewMemoryStore().WithClock(func() time.Time { return clock })
	ctx := context.Background()

	require.NoError(t, store.Apply(ctx, "u1", billing.Patch{Paid: ptr(true)}))

	clock = clock.Add(time.Hour)
	require.NoError(t, store.Apply(ctx, "u1", billing.Patch{Paid: ptr(true)}))

	rec, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, clock, rec.UpdatedAt)
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	t.Parallel()

	store := billing.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Apply(ctx, "u1", billing.Patch{Paid: ptr(true)}))

	first, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	first.Paid = false

	second, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, second.Paid)
}

func TestMemoryStoreRequiresUserID(t *testing.T) {
	t.Parallel()

	store := billing.NewMemoryStore()

	_, err := store.Get(context.Background(), "")
	assert.ErrorIs(t, err, billing.ErrMissingUserID)

	err = store.Apply(context.Background(), "", billing.Patch{})
	assert.ErrorIs(t, err, billing.ErrMissingUserID)
}
