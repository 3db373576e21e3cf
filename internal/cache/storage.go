package cache

import (
	"os"
	"path/filepath"
	"sync"

	"ContraChat/internal/util"
)

// FileStorage is a Storage backed by one small file per key.
type FileStorage struct {
	dir string
}

// NewFileStorage creates a file-backed storage rooted at dir.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileStorage{dir: dir}, nil
}

// Get reads the value for key, reporting absence via the bool return.
func (s *FileStorage) Get(key string) (string, bool) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Set writes the value for key atomically.
func (s *FileStorage) Set(key, value string) error {
	return util.AtomicWriteFile(s.path(key), []byte(value), 0644)
}

// Remove deletes the key. Missing keys are not an error.
func (s *FileStorage) Remove(key string) {
	os.Remove(s.path(key))
}

func (s *FileStorage) path(key string) string {
	return filepath.Join(s.dir, key)
}

// MemoryStorage is an in-memory Storage, used in tests.
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (s *MemoryStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStorage) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}
