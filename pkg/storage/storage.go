// Package storage provides the persisted key-value storage used for scheduler
// config, heartbeat logs, the offline cache and the device id.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/benmeehan/keepalive-agent/pkg/file"
)

// ErrInvalidKey is returned for keys that cannot be mapped to a storage slot.
var ErrInvalidKey = errors.New("invalid storage key")

var validKey = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

// Storage is a key-value store for JSON-serializable values.
type Storage interface {
	// Get decodes the value stored under key into v and reports whether it existed.
	Get(key string, v any) (bool, error)
	// Set stores v under key, replacing any previous value.
	Set(key string, v any) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(key string) error
}

// FileStorage keeps one JSON file per key inside a directory.
type FileStorage struct {
	dir        string
	fileClient file.FileOperations
	mu         sync.Mutex
}

// NewFileStorage creates a FileStorage rooted at dir.
func NewFileStorage(dir string, fileClient file.FileOperations) *FileStorage {
	return &FileStorage{dir: dir, fileClient: fileClient}
}

func (s *FileStorage) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

// Get implements Storage.
func (s *FileStorage) Get(key string, v any) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fileClient.ReadJsonFile(p, v); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	return true, nil
}

// Set implements Storage.
func (s *FileStorage) Set(key string, v any) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fileClient.WriteJsonFile(p, v); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Remove implements Storage.
func (s *FileStorage) Remove(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fileClient.RemoveFile(p)
}

// MemoryStorage is an in-process Storage. Values are stored JSON-encoded so
// readers never share memory with writers.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string][]byte)}
}

// Get implements Storage.
func (s *MemoryStorage) Get(key string, v any) (bool, error) {
	s.mu.RLock()
	data, ok := s.values[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Set implements Storage.
func (s *MemoryStorage) Set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	s.mu.Lock()
	s.values[key] = data
	s.mu.Unlock()
	return nil
}

// Remove implements Storage.
func (s *MemoryStorage) Remove(key string) error {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
	return nil
}
