package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type EventKind string

const (
	EventBoot     EventKind = "boot"
	EventPumpOn   EventKind = "pump_on"
	EventPumpOff  EventKind = "pump_off"
	EventFault    EventKind = "fault"
	EventRestart  EventKind = "restart"
	EventUpdate   EventKind = "update"
	EventShutdown EventKind = "shutdown"
)

// timeLayout is fixed width so that text comparison in SQL orders like time.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Event struct {
	ID       int64
	BootID   string
	Kind     EventKind
	At       time.Time
	Detail   string
	Duration time.Duration
}

// StartTransaction starts a new database transaction.
func StartTransaction(db *sql.DB) (*sql.Tx, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	return tx, nil
}

// CommitTransaction commits the given transaction.
func CommitTransaction(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RollbackTransaction rolls back the given transaction.
func RollbackTransaction(tx *sql.Tx) {
	tx.Rollback()
}

// Append stores e under the journal's boot ID and returns its row ID.
func (j *Journal) Append(ctx context.Context, e Event) (int64, error) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	res, err := j.db.ExecContext(ctx,
		`INSERT INTO events (boot_id, kind, at, detail, duration_seconds) VALUES (?, ?, ?, ?, ?)`,
		j.bootID, string(e.Kind), e.At.UTC().Format(timeLayout), e.Detail, int64(e.Duration/time.Second))
	if err != nil {
		return 0, fmt.Errorf("append %s event: %w", e.Kind, err)
	}
	return res.LastInsertId()
}

// Prune deletes events older than cutoff.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM events WHERE at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return res.RowsAffected()
}
