// Package lock serialises check-then-insert sequences that span several
// store keys. Keys are always acquired in sorted order so two callers
// asking for overlapping key sets cannot deadlock.
package lock

import (
	"context"
	"slices"
	"strings"
)

// Manager runs fn while holding every key.
type Manager interface {
	WithLock(ctx context.Context, keys []string, fn func(context.Context) error) error
}

// normalizeKeys trims, drops empties and duplicates, and sorts.
func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k != "" {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
