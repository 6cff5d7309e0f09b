package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Namespace is the key the session is persisted under.
const Namespace = "taskflow-session"

// Storage persists the serialized session under a namespace.
type Storage interface {
	Load(namespace string) ([]byte, error)
	Save(namespace string, data []byte) error
	Remove(namespace string) error
}

// ErrNotFound is returned by Load when nothing is stored.
var ErrNotFound = errors.New("session: nothing stored")

// FileStorage keeps one JSON file per namespace inside Dir.
type FileStorage struct {
	Dir string
}

// NewFileStorage returns a FileStorage rooted at dir.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{Dir: dir}
}

func (s *FileStorage) file(namespace string) string {
	return filepath.Join(s.Dir, namespace+".json")
}

func (s *FileStorage) Load(namespace string) ([]byte, error) {
	data, err := os.ReadFile(s.file(namespace))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	return data, nil
}

func (s *FileStorage) Save(namespace string, data []byte) error {
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp := s.file(namespace) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return os.Rename(tmp, s.file(namespace))
}

func (s *FileStorage) Remove(namespace string) error {
	err := os.Remove(s.file(namespace))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// MemoryStorage is an in-process Storage.
type MemoryStorage struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: map[string][]byte{}}
}

func (s *MemoryStorage) Load(namespace string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[namespace]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStorage) Save(namespace string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[namespace] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStorage) Remove(namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, namespace)
	return nil
}
