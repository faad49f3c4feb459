package state

import "context"

// Store is the small kv store the executor uses to make order placement
// idempotent across restarts. It never holds lifecycle state; the bracket
// controller is purely in-memory.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}
