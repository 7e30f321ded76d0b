package records

import (
	"context"
	"encoding/json"
	"fmt"
)

// ListAs returns the rows of collection owned by userID decoded into T.
func ListAs[T any](ctx context.Context, s *Store, collection, userID string) ([]T, error) {
	rows, err := s.List(ctx, collection, userID)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(rows))
	for _, row := range rows {
		var item T
		if err := json.Unmarshal(row, &item); err != nil {
			return nil, fmt.Errorf("failed to decode %s row: %w", collection, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// AddAs stores item in collection and returns it with the assigned id.
func AddAs[T any](ctx context.Context, s *Store, collection string, item T) (T, error) {
	var zero T

	raw, err := json.Marshal(item)
	if err != nil {
		return zero, fmt.Errorf("failed to encode %s row: %w", collection, err)
	}

	stored, err := s.Add(ctx, collection, raw)
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(stored, &out); err != nil {
		return zero, fmt.Errorf("failed to decode stored %s row: %w", collection, err)
	}
	return out, nil
}

// FindAs returns the row of collection with the given id decoded into T.
// The second return value reports whether the row exists.
func FindAs[T any](ctx context.Context, s *Store, collection, id string) (T, bool, error) {
	var zero T

	rows, err := s.ReadAll(ctx, collection)
	if err != nil {
		return zero, false, err
	}

	for _, row := range rows {
		if idOf(row) != id {
			continue
		}
		var item T
		if err := json.Unmarshal(row, &item); err != nil {
			return zero, false, fmt.Errorf("failed to decode %s row: %w", collection, err)
		}
		return item, true, nil
	}

	return zero, false, nil
}
