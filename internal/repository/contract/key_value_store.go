package contract

import (
	"context"
	"errors"
)

var (
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrQuotaExceeded      = errors.New("storage quota exceeded")
)

// KeyValueStore is the local persistence backend of the widget. Values are
// opaque strings. GetItem returns found=false for missing keys.
type KeyValueStore interface {
	SetItem(ctx context.Context, key, value string) error
	GetItem(ctx context.Context, key string) (value string, found bool, err error)
	RemoveItem(ctx context.Context, key string) error
	// Keys lists stored keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
