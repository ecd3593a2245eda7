package helpers

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
	"github.com/mpadronm90/simple-chatbot-platform/internal/repository"
)

func NewTestSQLiteStore(t *testing.T) *repository.TreeStore {
	t.Helper()

	s, err := repository.NewSQLiteStore(":memory:", nil)
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

func NewTestMemoryStore(t *testing.T) *repository.TreeStore {
	t.Helper()
	s := repository.NewMemoryStore(nil)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

// FailingStore wraps a store and fails the writes selected by its predicates.
type FailingStore struct {
	repository.Store

	mu         sync.Mutex
	FailSet    func(path string) bool
	FailUpdate bool
}

func (f *FailingStore) Set(ctx context.Context, path string, value any) error {
	f.mu.Lock()
	fail := f.FailSet != nil && f.FailSet(path)
	f.mu.Unlock()
	if fail {
		return fmt.Errorf("%w: injected failure at %s", domain.ErrStoreWriteFailed, path)
	}
	return f.Store.Set(ctx, path, value)
}

func (f *FailingStore) Update(ctx context.Context, values map[string]any) error {
	f.mu.Lock()
	fail := f.FailUpdate
	f.mu.Unlock()
	if fail {
		return fmt.Errorf("%w: injected update failure", domain.ErrStoreWriteFailed)
	}
	return f.Store.Update(ctx, values)
}

// SetFailSet swaps the Set predicate.
func (f *FailingStore) SetFailSet(fn func(path string) bool) {
	f.mu.Lock()
	f.FailSet = fn
	f.mu.Unlock()
}
