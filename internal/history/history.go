// Package history keeps an append-only log of memory changes in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Events recorded for a memory.
const (
	EventAdd    = "ADD"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// Record is one change of one memory.
type Record struct {
	ID        string    `json:"id"`
	MemoryID  string    `json:"memory_id"`
	OldMemory string    `json:"old_memory,omitempty"`
	NewMemory string    `json:"new_memory,omitempty"`
	Event     string    `json:"event"`
	CreatedAt time.Time `json:"created_at"`
	IsDeleted bool      `json:"is_deleted"`
}

// tsLayout has fixed width so that text order equals time order.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a SQLite-backed history log.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS history (
    id TEXT PRIMARY KEY,
    memory_id TEXT NOT NULL,
    old_memory TEXT,
    new_memory TEXT,
    event TEXT NOT NULL,
    created_at TEXT NOT NULL,
    is_deleted INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS history_memory_idx ON history (memory_id, created_at);
`

// Open opens (or creates) the database at path with WAL journaling and
// applies the schema. ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	var dsn string
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(ON)"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one writer keeps SQLite free of SQLITE_BUSY and lets :memory: share state
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Add appends a record. ID and CreatedAt are filled when empty.
func (s *Store) Add(ctx context.Context, r Record) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO history (id, memory_id, old_memory, new_memory, event, created_at, is_deleted)
        VALUES (?,?,?,?,?,?,?)
    `, r.ID, r.MemoryID, nullIfEmpty(r.OldMemory), nullIfEmpty(r.NewMemory), r.Event,
		r.CreatedAt.UTC().Format(tsLayout), boolToInt(r.IsDeleted))
	if err != nil {
		return fmt.Errorf("add history for %s: %w", r.MemoryID, err)
	}
	return nil
}

// Get returns the records of memoryID, oldest first.
func (s *Store) Get(ctx context.Context, memoryID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, memory_id, old_memory, new_memory, event, created_at, is_deleted
        FROM history WHERE memory_id=? ORDER BY created_at ASC, rowid ASC
    `, memoryID)
	if err != nil {
		return nil, fmt.Errorf("get history for %s: %w", memoryID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var (
			r          Record
			oldM, newM sql.NullString
			created    string
			deleted    int
		)
		if err := rows.Scan(&r.ID, &r.MemoryID, &oldM, &newM, &r.Event, &created, &deleted); err != nil {
			return nil, err
		}
		r.OldMemory, r.NewMemory = oldM.String, newM.String
		r.IsDeleted = deleted == 1
		if t, err := time.Parse(tsLayout, created); err == nil {
			r.CreatedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Reset removes every record.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM history`)
	return err
}

// HealthPing implements health.HealthPinger.
func (s *Store) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error { return s.db.Close() }

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
