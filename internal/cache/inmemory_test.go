package cache

import (
	"context"
	"testing"
	"time"

	"github.com/saasinvoice/billing/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()
	cfg := config.GetDefaultConfig()
	c := NewInMemoryCache(cfg)

	key := GenerateKey(PrefixPlan, "plan_1")
	assert.Equal(t, "plan:v1:plan_1", key)

	c.Set(ctx, key, "pro", 0)
	got, ok := c.Get(ctx, key)
	assert.True(t, ok)
	assert.Equal(t, "pro", got)

	c.Set(ctx, GenerateKey(PrefixPlan, "plan_2"), "team", time.Minute)
	c.DeleteByPrefix(ctx, PrefixPlan)
	_, ok = c.Get(ctx, key)
	assert.False(t, ok)
}

func TestInMemoryCacheDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := config.GetDefaultConfig()
	cfg.Cache.Enabled = false
	c := NewInMemoryCache(cfg)

	c.Set(ctx, "k", "v", 0)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}
