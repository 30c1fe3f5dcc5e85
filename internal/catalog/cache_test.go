package catalog

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	inner Source
	calls atomic.Int32
}

func (c *countingSource) ServicesAt(ctx context.Context, locationID int) ([]ServiceRecord, error) {
	c.calls.Add(1)
	return c.inner.ServicesAt(ctx, locationID)
}

func TestCachedSource_CachesPerLocation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	src := &countingSource{inner: testCatalog()}
	cache := NewCachedSource(client, src, 0, nil)
	ctx := context.Background()

	first, err := cache.ServicesAt(ctx, 1)
	require.NoError(t, err)
	second, err := cache.ServicesAt(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, src.calls.Load())

	require.NoError(t, cache.Invalidate(ctx, 1))
	_, err = cache.ServicesAt(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.calls.Load())
}

func TestCachedSource_CorruptEntryFallsThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, mr.Set(cacheKey(2), "not-json"))

	cache := NewCachedSource(client, testCatalog(), 0, nil)
	recs, err := cache.ServicesAt(context.Background(), 2)
	require.NoError(t, err)
	assert.NotEmpty(t, recs)
}
