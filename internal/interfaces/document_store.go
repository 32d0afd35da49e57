package interfaces

import "context"

// DocumentStore is the small key/document abstraction the registry persists
// through. Values are JSON-encodable; each Put replaces the whole document
// for its key atomically. The concrete backend (JSON file or embedded KV
// store) is swappable without touching registry logic.
type DocumentStore interface {
	// Get unmarshals the document at key into out, returns ErrNotFound if absent
	Get(ctx context.Context, key string, out any) error

	// Put stores the document at key, replacing any existing value
	Put(ctx context.Context, key string, value any) error

	// Delete removes the document at key; absent keys are not an error
	Delete(ctx context.Context, key string) error

	// Scan returns all keys with the given prefix
	Scan(ctx context.Context, prefix string) ([]string, error)

	// Close releases the backing store
	Close() error
}
