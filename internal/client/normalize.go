package client

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// normalizeOne decodes a related record that the API may return as an object,
// a list with at most one element, or null. A nil result means the relation is absent.
func normalizeOne[T any](raw json.RawMessage) (*T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var list []T
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		if len(list) == 0 {
			return nil, nil
		}
		return &list[0], nil
	}

	var v T
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	return &v, nil
}
