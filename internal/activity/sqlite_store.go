package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/matthewbaird/rentalops/internal/types"
)

// SQLStore implements Store on a SQLite table. occurred_at is kept as
// unix nanoseconds so range filters compare integers.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// CreateTable creates the activity_entries table and its indexes.
func (s *SQLStore) CreateTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS activity_entries (
			event_id            TEXT NOT NULL,
			event_type          TEXT NOT NULL,
			occurred_at         INTEGER NOT NULL,
			actor               TEXT NOT NULL DEFAULT '',
			indexed_entity_type TEXT NOT NULL,
			indexed_entity_id   TEXT NOT NULL,
			entity_role         TEXT NOT NULL,
			source_refs         TEXT NOT NULL DEFAULT '[]',
			summary             TEXT NOT NULL,
			category            TEXT NOT NULL,
			weight              TEXT NOT NULL,
			polarity            TEXT NOT NULL,
			payload             TEXT,
			PRIMARY KEY (indexed_entity_type, indexed_entity_id, event_id)
		);

		CREATE INDEX IF NOT EXISTS idx_activity_entity_time
			ON activity_entries (indexed_entity_type, indexed_entity_id, occurred_at DESC);
	`)
	return err
}

const entryColumns = `event_id, event_type, occurred_at, actor, indexed_entity_type, indexed_entity_id,
	entity_role, source_refs, summary, category, weight, polarity, payload`

func (s *SQLStore) WriteEntries(ctx context.Context, entries []types.ActivityEntry) error {
	if len(entries) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(`INSERT INTO activity_entries (` + entryColumns + `) VALUES `)
	args := make([]any, 0, len(entries)*13)
	for i, e := range entries {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		refsJSON, _ := json.Marshal(e.SourceRefs)
		args = append(args,
			e.EventID, e.EventType, e.OccurredAt.UnixNano(), e.Actor, e.IndexedEntityType, e.IndexedEntityID,
			e.EntityRole, string(refsJSON), e.Summary, e.Category, e.Weight, e.Polarity, string(e.Payload),
		)
	}
	b.WriteString(" ON CONFLICT DO NOTHING")

	if _, err := s.db.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("writing activity entries: %w", err)
	}
	return nil
}

func (s *SQLStore) QueryByEntity(ctx context.Context, entityType, entityID string, opts QueryOptions) ([]types.ActivityEntry, string, int, error) {
	conditions := []string{"indexed_entity_type = ?", "indexed_entity_id = ?"}
	args := []any{entityType, entityID}

	if opts.Since != nil {
		conditions = append(conditions, "occurred_at >= ?")
		args = append(args, opts.Since.UnixNano())
	}
	if opts.Until != nil {
		conditions = append(conditions, "occurred_at <= ?")
		args = append(args, opts.Until.UnixNano())
	}
	if len(opts.Categories) > 0 {
		conditions = append(conditions, "category IN ("+placeholders(len(opts.Categories))+")")
		for _, c := range opts.Categories {
			args = append(args, c)
		}
	}
	if opts.filtersWeight() {
		weights := weightsAtLeast(opts.MinWeight)
		conditions = append(conditions, "weight IN ("+placeholders(len(weights))+")")
		for _, w := range weights {
			args = append(args, w)
		}
	}

	where := strings.Join(conditions, " AND ")
	var totalCount int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM activity_entries WHERE "+where, args...).Scan(&totalCount); err != nil {
		return nil, "", 0, fmt.Errorf("counting activity entries: %w", err)
	}

	if opts.Cursor != "" {
		if ct, err := time.Parse(time.RFC3339Nano, opts.Cursor); err == nil {
			where += " AND occurred_at < ?"
			args = append(args, ct.UnixNano())
		}
	}
	limit := opts.limit()
	args = append(args, limit+1) // one extra to detect the next page

	entries, err := s.query(ctx,
		`SELECT `+entryColumns+` FROM activity_entries WHERE `+where+` ORDER BY occurred_at DESC LIMIT ?`, args...)
	if err != nil {
		return nil, "", 0, err
	}

	var nextCursor string
	if len(entries) > limit {
		entries = entries[:limit]
		nextCursor = entries[len(entries)-1].OccurredAt.Format(time.RFC3339Nano)
	}
	return entries, nextCursor, totalCount, nil
}

func (s *SQLStore) Search(ctx context.Context, query string, opts SearchOptions) ([]types.ActivityEntry, int, error) {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	// SQLite LIKE is case-insensitive for ASCII.
	conditions := []string{"summary LIKE '%' || ? || '%'"}
	args := []any{query}
	if opts.EntityType != "" {
		conditions = append(conditions, "indexed_entity_type = ?")
		args = append(args, opts.EntityType)
	}
	if opts.Since != nil {
		conditions = append(conditions, "occurred_at >= ?")
		args = append(args, opts.Since.UnixNano())
	}
	if len(opts.Categories) > 0 {
		conditions = append(conditions, "category IN ("+placeholders(len(opts.Categories))+")")
		for _, c := range opts.Categories {
			args = append(args, c)
		}
	}

	where := strings.Join(conditions, " AND ")
	var totalCount int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM activity_entries WHERE "+where, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("counting activity entries: %w", err)
	}

	entries, err := s.query(ctx,
		`SELECT `+entryColumns+` FROM activity_entries WHERE `+where+` ORDER BY occurred_at DESC LIMIT ?`,
		append(args, opts.Limit)...)
	if err != nil {
		return nil, 0, err
	}
	return entries, totalCount, nil
}

func (s *SQLStore) query(ctx context.Context, q string, args ...any) ([]types.ActivityEntry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activity entries: %w", err)
	}
	defer rows.Close()

	var entries []types.ActivityEntry
	for rows.Next() {
		var e types.ActivityEntry
		var occurred int64
		var refsJSON string
		var payload sql.NullString
		err := rows.Scan(
			&e.EventID, &e.EventType, &occurred, &e.Actor, &e.IndexedEntityType, &e.IndexedEntityID,
			&e.EntityRole, &refsJSON, &e.Summary, &e.Category, &e.Weight, &e.Polarity, &payload,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning activity entry: %w", err)
		}
		e.OccurredAt = time.Unix(0, occurred).UTC()
		_ = json.Unmarshal([]byte(refsJSON), &e.SourceRefs)
		if payload.Valid && payload.String != "" {
			e.Payload = json.RawMessage(payload.String)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
