// Package postgres stores memories in a Postgres table with a pgvector
// column. Similarity ranking is done by pgvector's cosine distance operator.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/51302890/mcp-mem0/internal/embeddings"
	"github.com/51302890/mcp-mem0/internal/store"
)

// hnsw indexes are limited to 2000 dimensions.
const maxIndexedDims = 2000

// Open opens a connection pool with the pgx stdlib driver and verifies
// connectivity.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Store implements store.Store on one collection table.
type Store struct {
	db    *sql.DB
	table string // quoted identifier
	name  string
	dims  int
}

// NewWithDB wraps db. collection must be a plain identifier; dims is the
// vector size of the embedding column.
func NewWithDB(db *sql.DB, collection string, dims int) *Store {
	return &Store{
		db:    db,
		table: pgx.Identifier{collection}.Sanitize(),
		name:  collection,
		dims:  dims,
	}
}

var _ store.Store = (*Store)(nil)

// DB exposes the pool for operator tooling.
func (s *Store) DB() *sql.DB { return s.db }

// HealthPing implements health.HealthPinger.
func (s *Store) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error { return s.db.Close() }

// Bootstrap creates the vector extension, the collection table and its
// indexes when missing, then verifies that an existing table was created
// with the same vector size.
func (s *Store) Bootstrap(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            id UUID PRIMARY KEY,
            user_id TEXT NOT NULL,
            memory TEXT NOT NULL,
            hash TEXT NOT NULL,
            metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
            embedding vector(%d) NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at TIMESTAMPTZ
        )`, s.table, s.dims),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (user_id, created_at DESC)`,
			pgx.Identifier{s.name + "_user_idx"}.Sanitize(), s.table),
	}
	if s.dims <= maxIndexedDims {
		stmts = append(stmts, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
			pgx.Identifier{s.name + "_embedding_idx"}.Sanitize(), s.table))
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("bootstrap %s: %w", s.name, err)
		}
	}

	got, err := s.columnDims(ctx)
	if err != nil {
		return err
	}
	if got != s.dims {
		return fmt.Errorf("%w: table %s has vector(%d), EMBEDDING_DIMS is %d", embeddings.ErrDimensionMismatch, s.name, got, s.dims)
	}
	return nil
}

// columnDims reads the declared size of the embedding column. For the
// vector type atttypmod holds the dimension.
func (s *Store) columnDims(ctx context.Context) (int, error) {
	var dims int
	err := s.db.QueryRowContext(ctx, `
        SELECT a.atttypmod FROM pg_attribute a JOIN pg_class c ON c.oid = a.attrelid
        WHERE c.relname = $1 AND pg_table_is_visible(c.oid)
          AND a.attname = 'embedding' AND NOT a.attisdropped
    `, s.name).Scan(&dims)
	if err != nil {
		return 0, fmt.Errorf("read embedding dimension of %s: %w", s.name, err)
	}
	return dims, nil
}

func (s *Store) Insert(ctx context.Context, item *store.MemoryItem, vector []float32) error {
	if err := s.checkDims(vector); err != nil {
		return err
	}
	meta, err := marshalMetadata(item.Metadata)
	if err != nil {
		return err
	}
	created := item.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
        INSERT INTO %s (id, user_id, memory, hash, metadata, embedding, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
    `, s.table), item.ID, item.UserID, item.Memory, item.Hash, meta, pgvector.NewVector(vector), created)
	if err != nil {
		return fmt.Errorf("insert memory %s: %w", item.ID, err)
	}
	item.CreatedAt = created
	return nil
}

func (s *Store) Update(ctx context.Context, id, memory, hash string, vector []float32) error {
	if err := s.checkDims(vector); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
        UPDATE %s SET memory=$2, hash=$3, embedding=$4, updated_at=now() WHERE id=$1
    `, s.table), id, memory, hash, pgvector.NewVector(vector))
	if err != nil {
		return fmt.Errorf("update memory %s: %w", id, err)
	}
	return requireRow(res, id)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, s.table), id)
	if err != nil {
		return fmt.Errorf("delete memory %s: %w", id, err)
	}
	return requireRow(res, id)
}

func (s *Store) DeleteAll(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE user_id=$1`, s.table), userID)
	if err != nil {
		return 0, fmt.Errorf("delete memories of %s: %w", userID, err)
	}
	return res.RowsAffected()
}

func (s *Store) Get(ctx context.Context, id string) (*store.MemoryItem, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
        SELECT id, user_id, memory, hash, metadata, created_at, updated_at, 0::float8
        FROM %s WHERE id=$1
    `, s.table), id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) List(ctx context.Context, userID string, limit int) ([]store.MemoryItem, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
        SELECT id, user_id, memory, hash, metadata, created_at, updated_at, 0::float8
        FROM %s WHERE user_id=$1 ORDER BY created_at DESC, id LIMIT $2
    `, s.table), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	return collect(rows)
}

func (s *Store) Search(ctx context.Context, userID string, vector []float32, limit int) ([]store.MemoryItem, error) {
	if err := s.checkDims(vector); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
        SELECT id, user_id, memory, hash, metadata, created_at, updated_at, 1 - (embedding <=> $2) AS score
        FROM %s WHERE user_id=$1 ORDER BY embedding <=> $2 LIMIT $3
    `, s.table), userID, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	return collect(rows)
}

func (s *Store) checkDims(vector []float32) error {
	if len(vector) != s.dims {
		return fmt.Errorf("%w: got %d values, table expects %d", embeddings.ErrDimensionMismatch, len(vector), s.dims)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(sc scanner) (store.MemoryItem, error) {
	var (
		it      store.MemoryItem
		meta    []byte
		updated sql.NullTime
	)
	if err := sc.Scan(&it.ID, &it.UserID, &it.Memory, &it.Hash, &meta, &it.CreatedAt, &updated, &it.Score); err != nil {
		return it, err
	}
	if updated.Valid {
		t := updated.Time
		it.UpdatedAt = &t
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &it.Metadata); err != nil {
			return it, fmt.Errorf("decode metadata of %s: %w", it.ID, err)
		}
	}
	return it, nil
}

func collect(rows *sql.Rows) ([]store.MemoryItem, error) {
	defer func() { _ = rows.Close() }()
	var out []store.MemoryItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return b, nil
}
