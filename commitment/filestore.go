package commitment

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore is a persistent Store backed by a flat directory: one file per
// entry, named by the hex of its key, with an in-memory index rebuilt on
// open. Because entries are immutable and content-addressed there is no
// write-ahead log; crash safety comes from writing to a temp file and
// renaming into place.
type FileStore struct {
	mu    sync.RWMutex
	dir   string
	index map[[32]byte][]byte
}

// NewFileStore opens or creates a file-backed store at dir, loading any
// existing entries into the index.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: mkdir: %w", err)
	}
	s := &FileStore{dir: dir, index: make(map[[32]byte][]byte)}
	if err := s.loadIndex(); err != nil {
		return nil, fmt.Errorf("filestore: load index: %w", err)
	}
	return s, nil
}

func (s *FileStore) loadIndex() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasSuffix(name, ".tmp") {
			continue
		}
		raw, err := hex.DecodeString(name)
		if err != nil || len(raw) != 32 {
			// Not an entry file; leave it alone.
			continue
		}
		val, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return err
		}
		var key [32]byte
		copy(key[:], raw)
		s.index[key] = val
	}
	return nil
}

// Put persists val under key. Same semantics as MemoryStore.Put, plus
// durability: the entry is written to a temp file and renamed into place.
func (s *FileStore) Put(key [32]byte, val []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.index[key]; ok {
		if !bytes.Equal(prev, val) {
			return ErrImmutable
		}
		return nil
	}

	name := hex.EncodeToString(key[:])
	tmp := filepath.Join(s.dir, name+".tmp")
	if err := os.WriteFile(tmp, val, 0o644); err != nil {
		return fmt.Errorf("filestore: write: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("filestore: rename: %w", err)
	}

	cp := make([]byte, len(val))
	copy(cp, val)
	s.index[key] = cp
	return nil
}

// Get returns the bytes stored under key, or ErrUnknownCommitment.
func (s *FileStore) Get(key [32]byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.index[key]
	if !ok {
		return nil, ErrUnknownCommitment
	}
	cp := make([]byte, len(val))
	copy(cp, val)
	return cp, nil
}

// Has reports whether key is present.
func (s *FileStore) Has(key [32]byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[key]
	return ok, nil
}
