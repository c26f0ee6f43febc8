package commitment

import (
	"bytes"
	"sync"
)

// Store is an append-only digest-keyed byte store. Entries are never
// mutated or deleted once written; Put with an existing key succeeds only
// if the bytes match. Implementations must be safe for concurrent use.
type Store interface {
	Put(key [32]byte, val []byte) error
	Get(key [32]byte) ([]byte, error)
	Has(key [32]byte) (bool, error)
}

// MemoryStore is the in-process Store used for ephemeral chains and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[[32]byte][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[[32]byte][]byte)}
}

// Put stores val under key. Re-putting identical bytes is a no-op;
// different bytes under an existing key fail with ErrImmutable.
func (s *MemoryStore) Put(key [32]byte, val []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.entries[key]; ok {
		if !bytes.Equal(prev, val) {
			return ErrImmutable
		}
		return nil
	}
	cp := make([]byte, len(val))
	copy(cp, val)
	s.entries[key] = cp
	return nil
}

// Get returns the bytes stored under key, or ErrUnknownCommitment.
func (s *MemoryStore) Get(key [32]byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.entries[key]
	if !ok {
		return nil, ErrUnknownCommitment
	}
	cp := make([]byte, len(val))
	copy(cp, val)
	return cp, nil
}

// Has reports whether key is present.
func (s *MemoryStore) Has(key [32]byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[key]
	return ok, nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
