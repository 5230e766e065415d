package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/51302890/mcp-mem0/internal/embeddings"
	"github.com/51302890/mcp-mem0/internal/store"
)

func TestNewWithDB_QuotesCollection(t *testing.T) {
	s := NewWithDB(nil, "mem0_memories", 1024)
	assert.Equal(t, `"mem0_memories"`, s.table)
}

func TestDimensionCheckHappensBeforeQuery(t *testing.T) {
	s := NewWithDB(nil, "mem0_memories", 4)
	ctx := context.Background()

	err := s.Insert(ctx, &store.MemoryItem{ID: "x"}, make([]float32, 3))
	assert.ErrorIs(t, err, embeddings.ErrDimensionMismatch)

	_, err = s.Search(ctx, "user", make([]float32, 5), 3)
	assert.ErrorIs(t, err, embeddings.ErrDimensionMismatch)

	assert.ErrorIs(t, s.Update(ctx, "x", "m", "h", nil), embeddings.ErrDimensionMismatch)
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Error(t, err)
}
