package db

import (
	"context"
	"fmt"
	"time"
)

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, boot_id, kind, at, detail, duration_seconds FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e        Event
			kind, at string
			secs     int64
		)
		if err := rows.Scan(&e.ID, &e.BootID, &kind, &at, &e.Detail, &secs); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Kind = EventKind(kind)
		e.Duration = time.Duration(secs) * time.Second
		if e.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("event %d has bad timestamp %q: %w", e.ID, at, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountByKind returns how many events of each kind have been journaled.
func (j *Journal) CountByKind(ctx context.Context) (map[EventKind]int, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM events GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := map[EventKind]int{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[EventKind(kind)] = n
	}
	return counts, rows.Err()
}
