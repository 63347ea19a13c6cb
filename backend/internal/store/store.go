// Package store caches remote handles (agent and thread ids) between runs.
package store

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/joho/godotenv"

	apperrors "sysdesign-assistant/backend/pkg/errors"
)

// HandleStore is a small key/value cache for remote handles. Implementations
// must be safe for concurrent use.
type HandleStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// MemoryStore keeps handles for the life of the process
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore returns a store pre-filled with seed
func NewMemoryStore(seed map[string]string) *MemoryStore {
	values := make(map[string]string, len(seed))
	for k, v := range seed {
		values[k] = v
	}
	return &MemoryStore{values: values}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok && v != "", nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// EnvStore reads and writes the process environment. Writes are visible to
// the current process only.
type EnvStore struct{}

// NewEnvStore returns an environment-backed store
func NewEnvStore() *EnvStore {
	return &EnvStore{}
}

func (EnvStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := os.LookupEnv(key)
	return v, ok && v != "", nil
}

func (EnvStore) Set(ctx context.Context, key, value string) error {
	if err := os.Setenv(key, value); err != nil {
		return apperrors.NewHandleStoreFailed(key, err)
	}
	return nil
}

// FileStore persists handles in a dotenv file so they survive restarts
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store backed by the dotenv file at path. The file is
// created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return "", false, apperrors.NewHandleStoreFailed(key, err)
	}
	v, ok := values[key]
	return v, ok && v != "", nil
}

func (s *FileStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return apperrors.NewHandleStoreFailed(key, err)
	}
	values[key] = value
	if err := godotenv.Write(values, s.path); err != nil {
		return apperrors.NewHandleStoreFailed(key, err)
	}
	return nil
}

func (s *FileStore) read() (map[string]string, error) {
	values, err := godotenv.Read(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	return values, err
}
