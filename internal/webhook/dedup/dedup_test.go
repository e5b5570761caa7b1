package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, time.Hour), mr
}

func TestRedisStore_MarkThenSeen(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	seen, err := store.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.Mark(ctx, "evt_1"))

	seen, err = store.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.True(t, mr.Exists("dedup:webhook:evt_1"))

	seen, err = store.Seen(ctx, "evt_2")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisStore_Expires(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Mark(ctx, "evt_1"))
	assert.Equal(t, time.Hour, mr.TTL("dedup:webhook:evt_1"))

	mr.FastForward(2 * time.Hour)

	seen, err := store.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisStore_ServerDown(t *testing.T) {
	store, mr := newStore(t)
	mr.Close()

	_, err := store.Seen(context.Background(), "evt_1")
	assert.Error(t, err)
	assert.Error(t, store.Mark(context.Background(), "evt_1"))
}
