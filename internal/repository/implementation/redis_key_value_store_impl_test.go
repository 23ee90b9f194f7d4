package implementation

import (
	"context"
	"os"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisClient(t *testing.T) *redis.Client {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisKeyValueStore(t *testing.T) {
	ctx := context.Background()
	ns := "test:" + uuid.NewString() + ":"
	store := NewRedisKeyValueStore(redisClient(t), ns)

	require.NoError(t, store.SetItem(ctx, "tms_w1_a", "1"))
	require.NoError(t, store.SetItem(ctx, "tms_w1_b", "2"))
	require.NoError(t, store.SetItem(ctx, "tms_w2_a", "3"))
	t.Cleanup(func() {
		for _, k := range []string{"tms_w1_a", "tms_w1_b", "tms_w2_a"} {
			_ = store.RemoveItem(ctx, k)
		}
	})

	v, found, err := store.GetItem(ctx, "tms_w1_b")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "2", v)

	_, found, err = store.GetItem(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, found)

	keys, err := store.Keys(ctx, "tms_w1_")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"tms_w1_a", "tms_w1_b"}, keys)

	require.NoError(t, store.RemoveItem(ctx, "tms_w1_a"))
	_, found, _ = store.GetItem(ctx, "tms_w1_a")
	assert.False(t, found)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `tms_a\*b\?\[c\]_`, escapeGlob("tms_a*b?[c]_"))
}
