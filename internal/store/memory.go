package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

type memRow struct {
	version int64
	body    []byte
}

// Memory implements Table with a map of JSON snapshots guarded by a
// RWMutex. Snapshots are encoded on write and decoded on read so callers
// never share memory with the table.
type Memory[T Record] struct {
	mu    sync.RWMutex
	rows  map[string]memRow
	order []string
}

// NewMemory creates an empty in-memory table.
func NewMemory[T Record]() *Memory[T] {
	return &Memory[T]{rows: make(map[string]memRow)}
}

func (m *Memory[T]) Get(_ context.Context, id string) (T, error) {
	m.mu.RLock()
	row, ok := m.rows[id]
	m.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return decode[T](row.body)
}

func (m *Memory[T]) Insert(_ context.Context, v T) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", v.StoreKey(), err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[v.StoreKey()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, v.StoreKey())
	}
	m.rows[v.StoreKey()] = memRow{version: v.StoreVersion(), body: body}
	m.order = append(m.order, v.StoreKey())
	return nil
}

func (m *Memory[T]) Update(_ context.Context, v T) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", v.StoreKey(), err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[v.StoreKey()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, v.StoreKey())
	}
	if row.version != v.StoreVersion()-1 {
		return fmt.Errorf("%w: %s stored at version %d, got %d", ErrVersionConflict, v.StoreKey(), row.version, v.StoreVersion())
	}
	m.rows[v.StoreKey()] = memRow{version: v.StoreVersion(), body: body}
	return nil
}

func (m *Memory[T]) Find(ctx context.Context, match func(T) bool) ([]T, error) {
	m.mu.RLock()
	bodies := make([][]byte, 0, len(m.order))
	for _, id := range m.order {
		bodies = append(bodies, m.rows[id].body)
	}
	m.mu.RUnlock()

	var out []T
	for _, body := range bodies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := decode[T](body)
		if err != nil {
			return nil, err
		}
		if match == nil || match(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

func decode[T any](body []byte) (T, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("store: decode: %w", err)
	}
	return v, nil
}
