package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryStore keeps blobs in process memory. It backs local development runs
// without object-storage credentials and the test suite's blob assertions.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string][]byte{}}
}

func (s *MemoryStore) Put(_ context.Context, bucket, key string, reader io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectName(bucket, key)] = data
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectName(bucket, key))
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, bucket, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[objectName(bucket, key)]
	return ok, nil
}

func (s *MemoryStore) PublicURL(bucket, key string) string {
	return fmt.Sprintf("memory://%s", objectName(bucket, key))
}

// Len reports the number of stored blobs across all buckets.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
