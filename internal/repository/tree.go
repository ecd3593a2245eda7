package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
)

// leaves maps full paths to JSON-encoded scalar or array values.
type leaves map[string]json.RawMessage

// write is one subtree replacement. An empty leaf set removes the subtree.
type write struct {
	path   string
	leaves leaves
}

// flattenValue encodes value and spreads it into leaf rows below path.
func flattenValue(path string, value any) (leaves, error) {
	out := leaves{}
	if value == nil {
		return out, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value for %q: %w", path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("failed to decode value for %q: %w", path, err)
	}
	if err := flatten(path, tree, out); err != nil {
		return nil, err
	}
	return out, nil
}

func flatten(path string, node any, out leaves) error {
	switch v := node.(type) {
	case nil:
		return nil
	case map[string]any:
		for k, child := range v {
			if k == "" || strings.Contains(k, "/") {
				return &domain.ValidationError{Field: "key", Reason: fmt.Sprintf("%q is not a valid path segment", k)}
			}
			if err := flatten(joinPath(path, k), child, out); err != nil {
				return err
			}
		}
		return nil
	default:
		if path == "" {
			return &domain.ValidationError{Field: "path", Reason: "root can only hold an object"}
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		out[path] = raw
		return nil
	}
}

// assemble rebuilds the value at root from the leaves of its subtree.
func assemble(root string, rows leaves) (json.RawMessage, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	if v, ok := rows[root]; ok {
		return v, nil
	}
	tree := map[string]any{}
	for p, v := range rows {
		rel := p
		if root != "" {
			rel = strings.TrimPrefix(p, root+"/")
		}
		parts := strings.Split(rel, "/")
		node := tree
		for _, seg := range parts[:len(parts)-1] {
			child, ok := node[seg].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[seg] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = v
	}
	return json.Marshal(tree)
}

// Decode unmarshals a store value into out. It reports false for an absent value.
func Decode(raw json.RawMessage, out any) (bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode store value: %w", err)
	}
	return true, nil
}

// GetInto reads path and decodes it into out.
func GetInto(ctx context.Context, s Store, path string, out any) (bool, error) {
	raw, err := s.Get(ctx, path)
	if err != nil {
		return false, err
	}
	return Decode(raw, out)
}
