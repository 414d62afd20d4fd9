// Package store provides keyed snapshot tables, one per aggregate type.
// Every table offers atomic get/insert/replace per key and compare-and-set
// on the aggregate version; there are no cross-key transactions.
package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("store: not found")
	ErrDuplicate       = errors.New("store: duplicate key")
	ErrVersionConflict = errors.New("store: version conflict")
)

// Record is implemented by every stored aggregate.
type Record interface {
	StoreKey() string
	StoreVersion() int64
}

// Table is a concurrency-safe mapping from id to snapshot. Values returned
// by Get and Find are private copies; mutating them never affects the
// stored snapshot.
type Table[T Record] interface {
	Get(ctx context.Context, id string) (T, error)
	// Insert fails with ErrDuplicate when the key already exists.
	Insert(ctx context.Context, v T) error
	// Update replaces the snapshot only when the stored version is exactly
	// v.StoreVersion()-1, otherwise it fails with ErrVersionConflict.
	Update(ctx context.Context, v T) error
	// Find returns matching snapshots in insertion order. A nil match
	// returns everything.
	Find(ctx context.Context, match func(T) bool) ([]T, error)
}
