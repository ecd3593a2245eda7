// Package repository implements the conversation store: a path-addressed JSON tree
// with atomic multi-path writes and subtree subscriptions.
package repository

import (
	"context"
	"encoding/json"
)

// Callback receives the current value of a subscribed path. A nil value means absent.
type Callback func(value json.RawMessage)

// Store defines the conversation store operations.
type Store interface {
	// Get returns the value at path, or nil when nothing is stored there.
	Get(ctx context.Context, path string) (json.RawMessage, error)

	// Set replaces the subtree at path with value.
	Set(ctx context.Context, path string, value any) error

	// Update sets every listed path atomically: all of them or none.
	Update(ctx context.Context, values map[string]any) error

	// Remove deletes the subtree at path.
	Remove(ctx context.Context, path string) error

	// Subscribe calls cb with the current value, then after every change to the subtree.
	Subscribe(ctx context.Context, path string, cb Callback) (func(), error)

	// Close releases the underlying resources.
	Close() error
}

// Ensure TreeStore implements Store interface.
var _ Store = (*TreeStore)(nil)
