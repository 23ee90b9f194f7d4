package implementation

import (
	"context"
	"errors"
	"strings"

	"tms-widget/internal/repository/contract"

	"github.com/redis/go-redis/v9"
)

// RedisKeyValueStore shares widget storage between processes. Keys are
// stored under namespace, which is stripped again when listing.
type RedisKeyValueStore struct {
	client    *redis.Client
	namespace string
}

func NewRedisKeyValueStore(client *redis.Client, namespace string) contract.KeyValueStore {
	return &RedisKeyValueStore{client: client, namespace: namespace}
}

func (r *RedisKeyValueStore) SetItem(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.namespace+key, value, 0).Err()
}

func (r *RedisKeyValueStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.namespace+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisKeyValueStore) RemoveItem(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.namespace+key).Err()
}

func (r *RedisKeyValueStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, escapeGlob(r.namespace+prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.namespace))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)
	return r.Replace(s)
}
