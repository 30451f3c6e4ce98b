// Package storage holds generated contract documents.
package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

// ErrObjectNotFound is returned when a contract file does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ContractStore persists contract documents by filename.
type ContractStore interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
	Get(ctx context.Context, name string) (io.ReadCloser, int64, error)
	Exists(ctx context.Context, name string) (bool, error)
	Mode() string
}

// MemoryStore keeps contracts in process memory. Used when MinIO is disabled.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, name string, data []byte, _ string) error {
	cp := make([]byte, len(data))
	copy(cp, data)

	m.mu.Lock()
	m.objects[name] = cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, name string) (io.ReadCloser, int64, error) {
	m.mu.RLock()
	data, ok := m.objects[name]
	m.mu.RUnlock()
	if !ok {
		return nil, 0, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (m *MemoryStore) Exists(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[name]
	return ok, nil
}

func (m *MemoryStore) Mode() string { return "memory" }
