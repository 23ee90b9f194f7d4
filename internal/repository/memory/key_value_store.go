package memory

import (
	"context"
	"strings"
	"sync"

	"tms-widget/internal/repository/contract"

	"github.com/patrickmn/go-cache"
)

// KeyValueStore keeps widget data in process memory. Items never expire,
// matching the lifetime of browser local storage within one process.
type KeyValueStore struct {
	cache *cache.Cache

	mu       sync.Mutex
	quota    int
	used     int
	disabled bool
}

type Option func(*KeyValueStore)

// WithQuota caps the total size of keys plus values in bytes.
func WithQuota(bytes int) Option {
	return func(s *KeyValueStore) { s.quota = bytes }
}

// Disabled makes every operation fail, like storage in a private window.
func Disabled() Option {
	return func(s *KeyValueStore) { s.disabled = true }
}

func NewKeyValueStore(opts ...Option) *KeyValueStore {
	s := &KeyValueStore{
		cache: cache.New(cache.NoExpiration, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ contract.KeyValueStore = (*KeyValueStore)(nil)

func (s *KeyValueStore) SetItem(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disabled {
		return contract.ErrStorageUnavailable
	}

	prev := 0
	if x, found := s.cache.Get(key); found {
		prev = len(key) + len(x.(string))
	}
	next := s.used - prev + len(key) + len(value)
	if s.quota > 0 && next > s.quota {
		return contract.ErrQuotaExceeded
	}

	s.cache.Set(key, value, cache.NoExpiration)
	s.used = next
	return nil
}

func (s *KeyValueStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disabled {
		return "", false, contract.ErrStorageUnavailable
	}
	if x, found := s.cache.Get(key); found {
		return x.(string), true, nil
	}
	return "", false, nil
}

func (s *KeyValueStore) RemoveItem(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disabled {
		return contract.ErrStorageUnavailable
	}
	if x, found := s.cache.Get(key); found {
		s.used -= len(key) + len(x.(string))
		s.cache.Delete(key)
	}
	return nil
}

func (s *KeyValueStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disabled {
		return nil, contract.ErrStorageUnavailable
	}
	var keys []string
	for k := range s.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
