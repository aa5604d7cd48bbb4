// Package storage provides the key-value scopes the auth layer persists tokens into.
package storage

import (
	"errors"
	"sync"
)

var ErrNotFound = errors.New("storage: key not found")

// Storage is a string key-value scope.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
}

// Lookup returns the value for key, or "" when the key is absent or unreadable.
func Lookup(s Storage, key string) string {
	v, err := s.Get(key)
	if err != nil {
		return ""
	}
	return v
}

// MemoryStorage is a process-lifetime scope, the equivalent of session storage.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = value
	return nil
}

func (m *MemoryStorage) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

var _ Storage = (*MemoryStorage)(nil)
