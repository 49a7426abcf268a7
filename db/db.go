package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// Journal is the append-only event history of the controller. It is the only
// state written to disk besides the log file and is never read back by the
// control loop.
type Journal struct {
	db     *sql.DB
	bootID string
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		boot_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		at TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		duration_seconds INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_at ON events (at)`,
	`CREATE INDEX IF NOT EXISTS idx_events_kind ON events (kind)`,
}

func Open(path, bootID string) (*Journal, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases shared and serializes writers.
	conn.SetMaxOpenConns(1)

	if err := ApplyMigrations(conn); err != nil {
		conn.Close()
		return nil, err
	}

	log.Info().Str("path", path).Str("boot_id", bootID).Msg("Event journal opened")
	return &Journal{db: conn, bootID: bootID}, nil
}

func ApplyMigrations(conn *sql.DB) error {
	tx, err := StartTransaction(conn)
	if err != nil {
		return err
	}
	for i, m := range migrations {
		if _, err := tx.Exec(m); err != nil {
			RollbackTransaction(tx)
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return CommitTransaction(tx)
}

func (j *Journal) Close() error {
	return j.db.Close()
}
