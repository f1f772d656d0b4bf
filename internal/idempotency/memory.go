package idempotency

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu       sync.Mutex
	results  map[string][]byte
	inFlight map[string]bool
}

// NewMemoryStore constructs an in-memory store for tests and dev mode.
func NewMemoryStore() Store {
	return &memoryStore{results: make(map[string][]byte), inFlight: make(map[string]bool)}
}

func (s *memoryStore) Reserve(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if result, ok := s.results[key]; ok {
		return result, true, nil
	}
	if s.inFlight[key] {
		return nil, false, ErrInProgress
	}
	s.inFlight[key] = true
	return nil, false, nil
}

func (s *memoryStore) Complete(_ context.Context, key string, result []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
	s.results[key] = result
	return nil
}

func (s *memoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
	return nil
}
