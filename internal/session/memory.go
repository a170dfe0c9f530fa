package session

import (
	"context"
	"sync"
)

// MemoryBackend keeps every namespace in process memory.
type MemoryBackend struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]string
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		namespaces: make(map[string]map[string]string),
	}
}

// Scope returns storage bound to namespace.
func (b *MemoryBackend) Scope(namespace string) Storage {
	return &memoryStorage{backend: b, namespace: namespace}
}

type memoryStorage struct {
	backend   *MemoryBackend
	namespace string
}

// NewMemoryStorage returns a standalone storage, handy in tests.
func NewMemoryStorage() Storage {
	return NewMemoryBackend().Scope("default")
}

func (s *memoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()
	v, ok := s.backend.namespaces[s.namespace][key]
	return v, ok, nil
}

func (s *memoryStorage) Set(_ context.Context, key, value string) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	ns, ok := s.backend.namespaces[s.namespace]
	if !ok {
		ns = make(map[string]string)
		s.backend.namespaces[s.namespace] = ns
	}
	ns[key] = value
	return nil
}

func (s *memoryStorage) Remove(_ context.Context, key string) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	ns := s.backend.namespaces[s.namespace]
	delete(ns, key)
	if len(ns) == 0 {
		delete(s.backend.namespaces, s.namespace)
	}
	return nil
}
