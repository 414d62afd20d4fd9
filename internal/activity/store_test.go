package activity

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/matthewbaird/rentalops/internal/types"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func testEntry(entityType, entityID, category, weight, polarity, summary string, daysAgo int) types.ActivityEntry {
	return types.ActivityEntry{
		EventID:           "test-" + summary,
		EventType:         "test_event",
		OccurredAt:        now.AddDate(0, 0, -daysAgo),
		Actor:             "ana",
		IndexedEntityType: entityType,
		IndexedEntityID:   entityID,
		EntityRole:        "subject",
		SourceRefs:        []types.SourceRef{{EntityType: entityType, EntityID: entityID, Role: "subject"}},
		Summary:           summary,
		Category:          category,
		Weight:            weight,
		Polarity:          polarity,
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	sqlStore := NewSQLStore(db)
	if err := sqlStore.CreateTable(context.Background()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	return map[string]Store{"memory": NewMemoryStore(), "sqlite": sqlStore}
}

func TestStore_WriteAndQuery(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			entries := []types.ActivityEntry{
				testEntry("property", "p1", "financial", "info", "positive", "Payment on time", 10),
				testEntry("property", "p1", "maintenance", "weak", "negative", "Leak reported", 5),
				testEntry("property", "p2", "financial", "info", "positive", "Payment on time", 10),
			}
			if err := store.WriteEntries(ctx, entries); err != nil {
				t.Fatalf("WriteEntries: %v", err)
			}

			results, _, total, err := store.QueryByEntity(ctx, "property", "p1", DefaultQueryOptions(now))
			if err != nil {
				t.Fatalf("QueryByEntity: %v", err)
			}
			if total != 2 {
				t.Errorf("total = %d, want 2", total)
			}
			if len(results) != 2 {
				t.Fatalf("results = %d, want 2", len(results))
			}
			if results[0].Summary != "Leak reported" {
				t.Errorf("first = %q, want newest entry first", results[0].Summary)
			}
			if results[0].Actor != "ana" {
				t.Errorf("actor = %q, want ana", results[0].Actor)
			}
			if !results[0].OccurredAt.Equal(now.AddDate(0, 0, -5)) {
				t.Errorf("occurred_at = %s, want round-trip", results[0].OccurredAt)
			}
		})
	}
}

func TestStore_QueryFilters(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store.WriteEntries(ctx, []types.ActivityEntry{
				testEntry("property", "p1", "financial", "info", "positive", "Recent", 5),
				testEntry("property", "p1", "financial", "info", "positive", "Old", 120),
				testEntry("property", "p1", "maintenance", "strong", "negative", "Strong level", 3),
			})

			since := now.AddDate(0, 0, -30)
			opts := DefaultQueryOptions(now)
			opts.Since = &since
			opts.Categories = []string{"financial"}
			results, _, total, err := store.QueryByEntity(ctx, "property", "p1", opts)
			if err != nil {
				t.Fatalf("QueryByEntity: %v", err)
			}
			if total != 1 || len(results) != 1 || results[0].Summary != "Recent" {
				t.Errorf("expected only 'Recent', got total=%d", total)
			}

			opts = DefaultQueryOptions(now)
			opts.MinWeight = "moderate"
			results, _, total, err = store.QueryByEntity(ctx, "property", "p1", opts)
			if err != nil {
				t.Fatalf("QueryByEntity: %v", err)
			}
			if total != 1 || len(results) != 1 || results[0].Weight != "strong" {
				t.Errorf("expected only the strong entry, got total=%d", total)
			}
		})
	}
}

func TestStore_Pagination(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i, s := range []string{"a", "b", "c"} {
				store.WriteEntries(ctx, []types.ActivityEntry{
					testEntry("property", "p1", "agenda", "info", "neutral", s, i+1),
				})
			}

			opts := DefaultQueryOptions(now)
			opts.Limit = 2
			page, cursor, total, err := store.QueryByEntity(ctx, "property", "p1", opts)
			if err != nil {
				t.Fatalf("QueryByEntity: %v", err)
			}
			if total != 3 || len(page) != 2 || cursor == "" {
				t.Fatalf("page 1: total=%d len=%d cursor=%q", total, len(page), cursor)
			}

			opts.Cursor = cursor
			page, cursor, _, err = store.QueryByEntity(ctx, "property", "p1", opts)
			if err != nil {
				t.Fatalf("QueryByEntity: %v", err)
			}
			if len(page) != 1 || page[0].Summary != "c" || cursor != "" {
				t.Errorf("page 2: len=%d cursor=%q", len(page), cursor)
			}
		})
	}
}

func TestStore_Search(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store.WriteEntries(ctx, []types.ActivityEntry{
				testEntry("property", "p1", "maintenance", "weak", "negative", "Leak in kitchen", 5),
				testEntry("property", "p1", "financial", "info", "positive", "Payment received", 10),
				testEntry("negotiation", "n1", "maintenance", "weak", "negative", "Leak in bathroom", 3),
			})

			results, total, err := store.Search(ctx, "leak", DefaultSearchOptions())
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if total != 2 || len(results) != 2 {
				t.Errorf("total = %d, results = %d, want 2", total, len(results))
			}

			opts := DefaultSearchOptions()
			opts.EntityType = "property"
			results, total, err = store.Search(ctx, "LEAK", opts)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if total != 1 || len(results) != 1 || results[0].IndexedEntityType != "property" {
				t.Errorf("expected only the property entry, got %d", total)
			}

			_, total, _ = store.Search(ctx, "zzzznotfound", DefaultSearchOptions())
			if total != 0 {
				t.Errorf("expected no results, got %d", total)
			}
		})
	}
}
