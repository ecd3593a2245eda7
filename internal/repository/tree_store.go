package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
)

// backend persists leaf rows. write must apply all writes atomically.
type backend interface {
	read(ctx context.Context, path string) (leaves, error)
	write(ctx context.Context, writes []write) error
	close() error
}

type subscription struct {
	path string
	cb   Callback
}

// TreeStore is the Store shared by every persistence backend. It flattens values
// into leaf rows and fans changes out to in-process subscribers.
type TreeStore struct {
	b      backend
	logger *zap.Logger

	// notifyMu serializes deliveries so each subscriber sees snapshots in commit order.
	notifyMu sync.Mutex
	subsMu   sync.Mutex
	nextID   int
	subs     map[int]*subscription
}

func newTreeStore(b backend, logger *zap.Logger) *TreeStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TreeStore{b: b, logger: logger, subs: make(map[int]*subscription)}
}

// Get returns the value at path.
func (s *TreeStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	path = cleanPath(path)
	rows, err := s.b.read(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	return assemble(path, rows)
}

// Set replaces the subtree at path.
func (s *TreeStore) Set(ctx context.Context, path string, value any) error {
	return s.Update(ctx, map[string]any{path: value})
}

// Remove deletes the subtree at path.
func (s *TreeStore) Remove(ctx context.Context, path string) error {
	return s.Update(ctx, map[string]any{path: nil})
}

// Update applies every path in one transaction, in path order.
func (s *TreeStore) Update(ctx context.Context, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	paths := make([]string, 0, len(values))
	for p := range values {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	writes := make([]write, 0, len(paths))
	changed := make([]string, 0, len(paths))
	for _, p := range paths {
		rows, err := flattenValue(cleanPath(p), values[p])
		if err != nil {
			return err
		}
		writes = append(writes, write{path: cleanPath(p), leaves: rows})
		changed = append(changed, cleanPath(p))
	}

	if err := s.b.write(ctx, writes); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreWriteFailed, err)
	}
	s.notify(ctx, changed)
	return nil
}

// Subscribe registers cb for the subtree at path and delivers the current value first.
func (s *TreeStore) Subscribe(ctx context.Context, path string, cb Callback) (func(), error) {
	path = cleanPath(path)

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	value, err := s.Get(ctx, path)
	if err != nil {
		return nil, err
	}

	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = &subscription{path: path, cb: cb}
	s.subsMu.Unlock()

	cb(value)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}, nil
}

func (s *TreeStore) notify(ctx context.Context, changed []string) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.subsMu.Lock()
	targets := make([]*subscription, 0)
	for _, sub := range s.subs {
		for _, c := range changed {
			if related(sub.path, c) {
				targets = append(targets, sub)
				break
			}
		}
	}
	s.subsMu.Unlock()

	// Reads use a fresh context so a cancelled writer still notifies.
	readCtx := context.WithoutCancel(ctx)
	for _, sub := range targets {
		value, err := s.Get(readCtx, sub.path)
		if err != nil {
			s.logger.Warn("subscription read failed", zap.String("path", sub.path), zap.Error(err))
			continue
		}
		sub.cb(value)
	}
}

// Close releases the backend.
func (s *TreeStore) Close() error {
	return s.b.close()
}
