package storage

import (
	"context"
	"slices"
	"sync"
)

// Memory is a process-local Store. It backs tests and the "memory" storage backend.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
	meta        map[string]string
}

type memCollection struct {
	order []string
	docs  map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]*memCollection),
		meta:        make(map[string]string),
	}
}

func (m *Memory) Mode() string { return "memory" }

func (m *Memory) Close() error { return nil }

func (m *Memory) Upsert(_ context.Context, collection, key string, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[collection]
	if !ok {
		c = &memCollection{docs: make(map[string][]byte)}
		m.collections[collection] = c
	}
	if _, exists := c.docs[key]; !exists {
		c.order = append(c.order, key)
	}
	c.docs[key] = slices.Clone(doc)
	return nil
}

func (m *Memory) GetAll(_ context.Context, collection string) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return nil, nil
	}
	docs := make([][]byte, 0, len(c.order))
	for _, k := range c.order {
		docs = append(docs, slices.Clone(c.docs[k]))
	}
	return docs, nil
}

func (m *Memory) Get(_ context.Context, collection, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return nil, ErrNotFound
	}
	doc, ok := c.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(doc), nil
}

func (m *Memory) Keys(_ context.Context, collection string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return nil, nil
	}
	return slices.Clone(c.order), nil
}

func (m *Memory) Delete(_ context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[collection]
	if !ok {
		return ErrNotFound
	}
	if _, exists := c.docs[key]; !exists {
		return ErrNotFound
	}
	delete(c.docs, key)
	c.order = slices.DeleteFunc(c.order, func(k string) bool { return k == key })
	return nil
}

func (m *Memory) Clear(_ context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, collection)
	return nil
}

func (m *Memory) GetMeta(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.meta[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) SetMeta(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta[key] = value
	return nil
}
