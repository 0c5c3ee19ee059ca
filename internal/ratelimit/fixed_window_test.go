package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casedocs/internal/config"
)

func newLimiter(t *testing.T, limit int) (*FixedWindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	l, err := New(config.RateLimitConfig{RedisAddr: mr.Addr(), Prefix: "test:ratelimit", Limit: limit, Window: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, mr
}

func TestFixedWindowLimiter(t *testing.T) {
	l, _ := newLimiter(t, 2)
	ctx := context.Background()

	d, err := l.Allow(ctx, "ip-1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	d, _ = l.Allow(ctx, "ip-1")
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d, _ = l.Allow(ctx, "ip-1")
	assert.False(t, d.Allowed, "third request should be blocked")

	d, _ = l.Allow(ctx, "ip-2")
	assert.True(t, d.Allowed, "keys are counted separately")
}

func TestFixedWindowLimiter_WindowRolls(t *testing.T) {
	l, _ := newLimiter(t, 1)
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 30, 0, time.UTC)
	l.now = func() time.Time { return now }

	d, _ := l.Allow(ctx, "k")
	assert.True(t, d.Allowed)
	assert.Equal(t, time.Date(2025, 1, 1, 12, 1, 0, 0, time.UTC), d.ResetAt)
	d, _ = l.Allow(ctx, "k")
	assert.False(t, d.Allowed)

	now = now.Add(time.Minute)
	d, _ = l.Allow(ctx, "k")
	assert.True(t, d.Allowed)
}

func TestFixedWindowLimiter_FailClosed(t *testing.T) {
	l, mr := newLimiter(t, 1)
	mr.Close()

	d, err := l.Allow(context.Background(), "ip-1")
	assert.Error(t, err)
	assert.False(t, d.Allowed)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(config.RateLimitConfig{Limit: 1, Window: time.Second})
	assert.Error(t, err, "redis addr is required")

	_, err = New(config.RateLimitConfig{RedisAddr: "localhost:6379", Limit: 0, Window: time.Second})
	assert.Error(t, err)
}
