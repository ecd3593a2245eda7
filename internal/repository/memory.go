package repository

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

type memoryBackend struct {
	mu   sync.RWMutex
	rows leaves
}

// NewMemoryStore returns a store kept entirely in process memory.
func NewMemoryStore(logger *zap.Logger) *TreeStore {
	return newTreeStore(&memoryBackend{rows: leaves{}}, logger)
}

func (m *memoryBackend) read(_ context.Context, path string) (leaves, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := leaves{}
	for p, v := range m.rows {
		if inSubtree(path, p) {
			out[p] = append(json.RawMessage(nil), v...)
		}
	}
	return out, nil
}

func (m *memoryBackend) write(_ context.Context, writes []write) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range writes {
		for p := range m.rows {
			if inSubtree(w.path, p) {
				delete(m.rows, p)
			}
		}
		for _, a := range ancestors(w.path) {
			delete(m.rows, a)
		}
		for p, v := range w.leaves {
			m.rows[p] = v
		}
	}
	return nil
}

func (m *memoryBackend) close() error { return nil }
