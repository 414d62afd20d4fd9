// Package activity provides the activity store: the audit trail of every
// domain event, indexed by each entity the event touched.
package activity

import (
	"context"
	"time"

	"github.com/matthewbaird/rentalops/internal/signals"
	"github.com/matthewbaird/rentalops/internal/types"
)

// Store is the interface for reading and writing activity entries.
type Store interface {
	// WriteEntries writes one or more activity entries (one event → many entries).
	WriteEntries(ctx context.Context, entries []types.ActivityEntry) error

	// QueryByEntity returns activity entries for a specific entity, newest first.
	QueryByEntity(ctx context.Context, entityType, entityID string, opts QueryOptions) (entries []types.ActivityEntry, nextCursor string, totalCount int, err error)

	// Search performs a case-insensitive substring search across summaries.
	Search(ctx context.Context, query string, opts SearchOptions) (entries []types.ActivityEntry, totalCount int, err error)
}

// QueryOptions controls filtering and pagination for entity activity queries.
type QueryOptions struct {
	Since      *time.Time
	Until      *time.Time
	Categories []string // filter to specific signal categories
	MinWeight  string   // minimum weight threshold (default: "info")
	Limit      int      // max results (default: 100, max: 500)
	Cursor     string   // occurred_at of the last entry of the previous page
}

// SearchOptions controls filtering for activity search.
type SearchOptions struct {
	EntityType string
	Since      *time.Time
	Categories []string
	Limit      int // default: 20
}

// DefaultQueryOptions covers the six months before now.
func DefaultQueryOptions(now time.Time) QueryOptions {
	sixMonthsAgo := now.AddDate(0, -6, 0)
	return QueryOptions{
		Since:     &sixMonthsAgo,
		Until:     &now,
		MinWeight: "info",
		Limit:     100,
	}
}

func DefaultSearchOptions() SearchOptions {
	return SearchOptions{Limit: 20}
}

func (o QueryOptions) limit() int {
	if o.Limit <= 0 || o.Limit > 500 {
		return 100
	}
	return o.Limit
}

func (o QueryOptions) filtersWeight() bool {
	return o.MinWeight != "" && o.MinWeight != "info"
}

// weightsAtLeast lists every known weight at least as severe as minimum.
func weightsAtLeast(minimum string) []string {
	var out []string
	for w := range signals.WeightOrder {
		if signals.IsAtLeastWeight(w, minimum) {
			out = append(out, w)
		}
	}
	return out
}
