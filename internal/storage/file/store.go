package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/Alash95/reporter/internal/interfaces"
)

// Store implements the DocumentStore interface on a single JSON file.
// Every mutation rewrites the file atomically (temp file + rename), so a
// reader never observes a partially written document.
type Store struct {
	path   string
	logger arbor.ILogger
	mu     sync.Mutex
	docs   map[string]json.RawMessage
}

// NewStore opens (or creates) a JSON-file document store
func NewStore(logger arbor.ILogger, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	s := &Store{
		path:   path,
		logger: logger,
		docs:   make(map[string]json.RawMessage),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	logger.Debug().Str("path", path).Msg("File document store initialized")
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read store file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &s.docs); err != nil {
		return fmt.Errorf("failed to parse store file %s: %w", s.path, err)
	}
	return nil
}

// persist writes the whole document map to a temp file and renames it over
// the store file. Must be called with the mutex held.
func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.docs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".store-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrWriteConflict, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", interfaces.ErrWriteConflict, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", interfaces.ErrWriteConflict, err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", interfaces.ErrWriteConflict, err)
	}
	return nil
}

// Get unmarshals the document at key into out
func (s *Store) Get(ctx context.Context, key string, out any) error {
	s.mu.Lock()
	raw, ok := s.docs[key]
	s.mu.Unlock()

	if !ok {
		return interfaces.ErrNotFound
	}
	if err := json.Unmarshal(raw, out); err != nil {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, hadPrev := s.docs[key]
	s.docs[key] = data

	if err := s.persist(); err != nil {
		// Roll back the in-memory view so it stays consistent with disk
		if hadPrev {
			s.docs[key] = prev
		} else {
			delete(s.docs, key)
		}
		return err
	}
	return nil
}

// Delete removes the document at key; absent keys are not an error
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.docs[key]
	if !ok {
		return nil
	}
	delete(s.docs, key)

	if err := s.persist(); err != nil {
		s.docs[key] = prev
		return err
	}
	return nil
}

// Scan returns all keys with the given prefix
func (s *Store) Scan(ctx context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.docs))
	for key := range s.docs {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Close is a no-op for the file store
func (s *Store) Close() error {
	return nil
}
