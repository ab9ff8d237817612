// Package memory provides in-memory storage implementations used in tests
// and when no persistent backend is configured.
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/schemascout/schemascout/internal/storage"
)

// BlobStore keeps written objects in memory.
type BlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewBlobStore creates an empty in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{objects: make(map[string][]byte)}
}

// PutObject stores data under path and returns a mem:// URI.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read data: %w", err)
	}
	s.mu.Lock()
	s.objects[path] = b
	s.mu.Unlock()
	return "mem://" + path, nil
}

// Object returns a stored object by path.
func (s *BlobStore) Object(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[path]
	return b, ok
}

// Len returns the number of stored objects.
func (s *BlobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// RunStore keeps run records in memory.
type RunStore struct {
	mu      sync.Mutex
	records []storage.RunRecord
}

// NewRunStore creates an empty in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{}
}

// StoreRun appends the record.
func (s *RunStore) StoreRun(_ context.Context, record storage.RunRecord) error {
	if record.ID == "" {
		return fmt.Errorf("record id is required")
	}
	s.mu.Lock()
	s.records = append(s.records, record)
	s.mu.Unlock()
	return nil
}

// Records returns a copy of all stored records.
func (s *RunStore) Records() []storage.RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.RunRecord, len(s.records))
	copy(out, s.records)
	return out
}
