package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quote struct {
	Ticker string  `json:"ticker"`
	Strike float64 `json:"strike"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()

	require.NoError(t, mc.Set(ctx, "k", quote{Ticker: "SPY", Strike: 450}, time.Minute))

	got, err := GetTyped[quote](ctx, mc, "k")
	require.NoError(t, err)
	assert.Equal(t, quote{Ticker: "SPY", Strike: 450}, got)

	ok, err := mc.Exists(ctx, "missing", "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mc.Delete(ctx, "k"))
	assert.ErrorIs(t, mc.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	now := time.Date(2024, 11, 15, 12, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	require.NoError(t, mc.Set(ctx, "k", "v", time.Second))
	now = now.Add(2 * time.Second)

	var s string
	assert.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
	assert.Zero(t, mc.Len())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))

	require.NoError(t, mc.Set(ctx, "a", 1, 0))
	require.NoError(t, mc.Set(ctx, "b", 2, 0))

	var n int
	require.NoError(t, mc.Get(ctx, "a", &n)) // a becomes most recent
	require.NoError(t, mc.Set(ctx, "c", 3, 0))

	assert.ErrorIs(t, mc.Get(ctx, "b", &n), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &n))
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, mc.Len())
}

func TestLayeredCacheFillsL1FromL2(t *testing.T) {
	ctx := context.Background()
	l2 := NewMemoryCache()
	lc := NewLayeredCache(l2, 10, time.Minute)

	require.NoError(t, l2.Set(ctx, "k", quote{Ticker: "QQQ"}, 0))

	var q quote
	require.NoError(t, lc.Get(ctx, "k", &q))
	assert.Equal(t, "QQQ", q.Ticker)

	require.NoError(t, l2.Delete(ctx, "k"))
	require.NoError(t, lc.Get(ctx, "k", &q), "served from L1")
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "ref:SPY:2024-11-15", GenerateKey("ref", "SPY", "2024-11-15"))
	assert.Len(t, HashKey("anything"), 32)
}
