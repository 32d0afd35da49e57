package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/Alash95/reporter/internal/common"
	"github.com/Alash95/reporter/internal/interfaces"
)

// document wraps a JSON-encoded value so the store stays type-agnostic
type document struct {
	Key       string    `json:"key" badgerhold:"key"`
	Data      []byte    `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store implements the DocumentStore interface on BadgerDB
type Store struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// NewStore opens a Badger-backed document store at the configured path
func NewStore(logger arbor.ILogger, config *common.BadgerConfig) (*Store, error) {
	if config.ResetOnStartup {
		if _, err := os.Stat(config.Path); err == nil {
			logger.Debug().Str("path", config.Path).Msg("Deleting existing database (reset_on_startup=true)")
			if err := os.RemoveAll(config.Path); err != nil {
				logger.Warn().Err(err).Str("path", config.Path).Msg("Failed to delete database directory")
			}
		}
	}

	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = config.Path
	options.ValueDir = config.Path
	options.Logger = nil // Disable default badger logger to use arbor

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Badger document store initialized")

	return &Store{
		store:  store,
		logger: logger,
	}, nil
}

// Get unmarshals the document at key into out
func (s *Store) Get(ctx context.Context, key string, out any) error {
	var doc document
	err := s.store.Get(key, &doc)
	if err == badgerhold.ErrNotFound {
		return interfaces.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get document %s: %w", key, err)
	}

	if err := json.Unmarshal(doc.Data, out); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", key, err)
	}
	return nil
}

// Put stores the document at key, replacing any existing value
func (s *Store) Put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", key, err)
	}

	doc := document{
		Key:       key,
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.store.Upsert(key, &doc); err != nil {
		return fmt.Errorf("%w: failed to store document %s: %v", interfaces.ErrWriteConflict, key, err)
	}
	return nil
}

// Delete removes the document at key; absent keys are not an error
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.store.Delete(key, &document{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete document %s: %w", key, err)
	}
	return nil
}

// Scan returns all keys with the given prefix
func (s *Store) Scan(ctx context.Context, prefix string) ([]string, error) {
	var docs []document
	if err := s.store.Find(&docs, nil); err != nil {
		return nil, fmt.Errorf("failed to scan documents: %w", err)
	}

	keys := make([]string, 0, len(docs))
	for _, doc := range docs {
		if strings.HasPrefix(doc.Key, prefix) {
			keys = append(keys, doc.Key)
		}
	}
	return keys, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
