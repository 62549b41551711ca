package subscription

import (
	"testing"
	"time"

	"github.com/saasinvoice/billing/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSub(status types.SubscriptionStatus, now time.Time) *Subscription {
	start, end := NewPeriod(types.BillingIntervalMonthly, now)
	return &Subscription{
		ID:                 "subs_1",
		Status:             status,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
		StartedAt:          now,
	}
}

func TestNewPeriod(t *testing.T) {
	now := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	start, end := NewPeriod(types.BillingIntervalMonthly, now)
	assert.Equal(t, now, start)
	assert.Equal(t, now.AddDate(0, 0, 30), end)

	_, end = NewPeriod(types.BillingIntervalYearly, now)
	assert.Equal(t, now.AddDate(0, 0, 365), end)
}

func TestSubscription_IsActive(t *testing.T) {
	now := time.Now().UTC()

	assert.True(t, newSub(types.SubscriptionStatusActive, now).IsActive())
	assert.True(t, newSub(types.SubscriptionStatusTrialing, now).IsActive())
	assert.False(t, newSub(types.SubscriptionStatusPastDue, now).IsActive())
	assert.False(t, newSub(types.SubscriptionStatusCanceled, now).IsActive())

	flagged := newSub(types.SubscriptionStatusActive, now)
	flagged.CancelAtPeriodEnd = true
	assert.False(t, flagged.IsActive())
}

func TestSubscription_IsTrialing(t *testing.T) {
	now := time.Now().UTC()
	sub := newSub(types.SubscriptionStatusTrialing, now)

	assert.True(t, sub.IsTrialing(now))
	assert.False(t, sub.IsTrialing(sub.CurrentPeriodEnd))
	assert.False(t, newSub(types.SubscriptionStatusActive, now).IsTrialing(now))
}

func TestSubscription_Cancel(t *testing.T) {
	now := time.Now().UTC()

	t.Run("at period end only flags", func(t *testing.T) {
		sub := newSub(types.SubscriptionStatusActive, now)
		require.True(t, sub.Cancel(true, now))
		assert.Equal(t, types.SubscriptionStatusActive, sub.Status)
		assert.True(t, sub.CancelAtPeriodEnd)
		assert.Nil(t, sub.EndedAt)
		assert.False(t, sub.IsActive())
	})

	t.Run("immediately", func(t *testing.T) {
		sub := newSub(types.SubscriptionStatusTrialing, now)
		require.True(t, sub.Cancel(false, now))
		assert.Equal(t, types.SubscriptionStatusCanceled, sub.Status)
		require.NotNil(t, sub.EndedAt)
		assert.Equal(t, now, *sub.EndedAt)
	})

	t.Run("already canceled is a no-op", func(t *testing.T) {
		sub := newSub(types.SubscriptionStatusCanceled, now)
		ended := now.Add(-time.Hour)
		sub.EndedAt = &ended
		assert.False(t, sub.Cancel(false, now))
		assert.Equal(t, ended, *sub.EndedAt)
	})
}
