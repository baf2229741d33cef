package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elimika/auditlog/internal/audit"
)

func newTestCache(t *testing.T) (*PageCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewPageCache(client, time.Minute), mr
}

func TestPageCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	key := audit.Filters{Status: audit.StatusFailed, PageSize: 50}.CacheKey()

	_, ok, err := c.Get(ctx, 0, key, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	page := audit.Page{
		Items:    []audit.LogEntry{{ID: "1", Event: "user.login", Status: audit.StatusFailed, CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}},
		Page:     1,
		PageSize: 50,
		HasNext:  true,
	}
	require.NoError(t, c.Set(ctx, 0, key, 1, page))

	got, ok, err := c.Get(ctx, 0, key, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, page.Items[0].ID, got.Items[0].ID)
	assert.True(t, got.HasNext)

	_, ok, err = c.Get(ctx, 0, key, 2)
	require.NoError(t, err)
	assert.False(t, ok, "pages are cached independently")
}

func TestPageCacheInvalidateBumpsGeneration(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, 0, "k", 1, audit.Page{Page: 1}))

	require.NoError(t, c.Invalidate(ctx))
	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, gen)

	_, ok, err := c.Get(ctx, gen, "k", 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, mr.Exists(keyPrefix+":0:"+filterDigest("k")+":1"), "stale key is left to expire")
}

func TestPageCacheLateWriteStaysUnderOldGeneration(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	loadedAt, err := c.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx))
	require.NoError(t, c.Set(ctx, loadedAt, "k", 1, audit.Page{Page: 1}))

	current, err := c.Generation(ctx)
	require.NoError(t, err)
	_, ok, err := c.Get(ctx, current, "k", 1)
	require.NoError(t, err)
	assert.False(t, ok, "a page read before the bump is not served after it")
}

func TestPageCacheTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, 0, "k", 1, audit.Page{Page: 1}))
	mr.FastForward(2 * time.Minute)
	_, ok, err := c.Get(ctx, 0, "k", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetupCacheMetricsIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, SetupCacheMetrics(reg))
	require.NoError(t, SetupCacheMetrics(reg))
}

func TestFilterDigestIsStableAndBounded(t *testing.T) {
	long := strings.Repeat("search:with:colons ", 200)
	assert.Equal(t, filterDigest(long), filterDigest(long))
	assert.Len(t, filterDigest(long), 32)
	assert.NotEqual(t, filterDigest("a"), filterDigest("b"))
}
