// Package store defines persistence for memories and their embeddings.
// Implementations live under internal/store/<driver>/.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a memory id does not exist.
var ErrNotFound = errors.New("memory not found")

// MemoryItem is a stored memory. Score is only set by Search.
type MemoryItem struct {
	ID        string         `json:"id"`
	Memory    string         `json:"memory"`
	Hash      string         `json:"hash,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Score     float64        `json:"score,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
}

// Store persists memories together with their embedding vectors.
type Store interface {
	// Insert stores item with vector. item.ID must be set.
	Insert(ctx context.Context, item *MemoryItem, vector []float32) error
	// Update replaces the text, hash and vector of an existing memory.
	Update(ctx context.Context, id, memory, hash string, vector []float32) error
	Delete(ctx context.Context, id string) error
	// DeleteAll removes every memory owned by userID and reports how many.
	DeleteAll(ctx context.Context, userID string) (int64, error)
	Get(ctx context.Context, id string) (*MemoryItem, error)
	// List returns up to limit memories of userID, newest first.
	List(ctx context.Context, userID string, limit int) ([]MemoryItem, error)
	// Search returns up to limit memories of userID ordered by cosine
	// similarity to vector, best first, with Score set.
	Search(ctx context.Context, userID string, vector []float32, limit int) ([]MemoryItem, error)
	Close() error
}
