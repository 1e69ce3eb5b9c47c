package ports

import (
	"context"
	"time"
)

// Store is a namespaced key-value store with optional expiry, used for
// cached signing sessions, settings and oracle/tenant selection.
type Store interface {
	// Set stores a value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get retrieves a value by key, returning core.ErrNotFound when the
	// key is absent or expired.
	Get(ctx context.Context, key string) (string, error)

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
