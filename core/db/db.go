package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the embedded SQLite handle. One file holds all LeadSync memory;
// ":memory:" is accepted for tests.
type DB struct {
	sqlDB *sql.DB
	path  string
}

type Config struct {
	// Path is the SQLite file location, or ":memory:".
	Path string

	// BusyTimeout guards concurrent request-scoped writers against
	// transient SQLITE_BUSY. WAL mode keeps readers unblocked.
	BusyTimeout time.Duration
}

// New opens (creating if needed) the memory database and applies the schema.
func New(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
	}

	sqlDB, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if cfg.Path == ":memory:" {
		// Pooled connections would each see a distinct empty database.
		sqlDB.SetMaxOpenConns(1)
	}

	busyMillis := int64(5000)
	if cfg.BusyTimeout > 0 {
		busyMillis = cfg.BusyTimeout.Milliseconds()
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyMillis),
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}

	db := &DB{sqlDB: sqlDB, path: cfg.Path}
	if err := db.Migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.sqlDB.Close()
}

// SQL exposes the underlying handle for the store layer.
func (db *DB) SQL() *sql.DB {
	return db.sqlDB
}

func (db *DB) Ping(ctx context.Context) error {
	return db.sqlDB.PingContext(ctx)
}

// Migrate creates tables and indexes when absent. It is idempotent and
// safe to call at startup and again at any point before a write.
func (db *DB) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			workflow TEXT NOT NULL,
			ticket_key TEXT,
			project_key TEXT,
			label TEXT,
			component TEXT,
			payload_json TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS memory_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			workflow TEXT NOT NULL,
			item_type TEXT NOT NULL,
			ticket_key TEXT,
			project_key TEXT,
			label TEXT,
			component TEXT,
			repo_key TEXT,
			team_key TEXT,
			summary TEXT NOT NULL,
			decision TEXT,
			rules_applied TEXT,
			context_json TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS idempotency_locks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			workflow TEXT NOT NULL,
			lock_key TEXT NOT NULL,
			created_at TEXT NOT NULL,
			UNIQUE(workflow, lock_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_ticket_created ON events(ticket_key, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_events_workflow_created ON events(workflow, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_ticket ON memory_items(ticket_key, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_digest ON memory_items(item_type, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_similarity ON memory_items(label, component, item_type, created_at DESC)`,
	}
	for _, stmt := range statements {
		if _, err := db.sqlDB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
	}
	return nil
}
