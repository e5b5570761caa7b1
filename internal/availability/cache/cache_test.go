package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, time.Minute), mr
}

func day(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func TestRedisCache_Miss(t *testing.T) {
	c, _ := setupTestRedis(t)

	_, err := c.Get(context.Background(), "m1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_SetGet(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()
	days := []time.Time{day("2025-01-01"), day("2025-01-02")}

	require.NoError(t, c.Set(ctx, "m1", days))

	got, err := c.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, days, got)

	raw, err := mr.Get("occupied:m1")
	require.NoError(t, err)
	assert.JSONEq(t, `["2025-01-01","2025-01-02"]`, raw)
	assert.Equal(t, time.Minute, mr.TTL("occupied:m1"))
}

func TestRedisCache_EmptySetIsCached(t *testing.T) {
	c, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "m1", nil))
	got, err := c.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisCache_Invalidate(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "m1", []time.Time{day("2025-01-01")}))
	require.NoError(t, c.Set(ctx, "m2", []time.Time{day("2025-02-01")}))
	require.NoError(t, c.Invalidate(ctx, "m1", "m2"))

	assert.False(t, mr.Exists("occupied:m1"))
	assert.False(t, mr.Exists("occupied:m2"))
	assert.NoError(t, c.Invalidate(ctx))
}

func TestRedisCache_CorruptEntry(t *testing.T) {
	c, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("occupied:m1", "not json"))

	_, err := c.Get(context.Background(), "m1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}
