package dao

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// KeyPrefix namespaces every key this module writes. Bump the version when
// the layout of a stored value changes.
const KeyPrefix = "cryptocagua.v1."

var ErrUnknownDriver = errors.New("unknown storage driver")

// Store is a string key-value store, the local equivalent of browser storage.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open returns the store for the given driver. dsn is a file path for the
// file driver and a connection string for the others.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "memory":
		return NewMemoryStore(), nil
	case "", "file":
		return OpenFileStore(dsn)
	case "sqlite", "sqlite3", "mysql", "postgres":
		return OpenSQLStore(ctx, driver, dsn)
	case "mongo", "mongodb":
		return OpenMongoStore(ctx, dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]string{}}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
