package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/51302890/mcp-mem0/internal/history"
	"github.com/51302890/mcp-mem0/internal/memory"
	"github.com/51302890/mcp-mem0/internal/shardqueue"
	"github.com/51302890/mcp-mem0/internal/store/storetest"
)

type constEmbedder struct{}

func (constEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func newEngine(t *testing.T) *memory.Engine {
	t.Helper()
	h, err := history.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	q := shardqueue.NewShardExecutor(shardqueue.Config{Shards: 1}, zerolog.Nop())
	t.Cleanup(q.Stop)

	e, err := memory.New(memory.Deps{
		Store:    storetest.NewMemStore(2),
		Embedder: constEmbedder{},
		History:  h,
		Queue:    q,
	}, memory.Config{}, zerolog.Nop())
	require.NoError(t, err)
	return e
}

func TestCommands_Lifecycle(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	var out bytes.Buffer
	require.NoError(t, runAdd(ctx, e, "ops", "Likes tea", &out))
	fields := strings.Fields(out.String())
	require.GreaterOrEqual(t, len(fields), 3)
	assert.Equal(t, history.EventAdd, fields[0])
	id := fields[1]

	out.Reset()
	require.NoError(t, runList(ctx, e, "ops", 10, &out))
	assert.Contains(t, out.String(), "Likes tea")

	out.Reset()
	require.NoError(t, runSearch(ctx, e, "ops", "tea", 3, &out))
	assert.Contains(t, out.String(), "1.000")
	assert.Error(t, runSearch(ctx, e, "ops", "", 3, &out))

	out.Reset()
	require.NoError(t, runDelete(ctx, e, id, &out))
	assert.Equal(t, "deleted "+id+"\n", out.String())

	out.Reset()
	require.NoError(t, runHistory(ctx, e, id, &out))
	var recs []history.Record
	require.NoError(t, json.Unmarshal(out.Bytes(), &recs))
	require.Len(t, recs, 2)
	assert.True(t, recs[1].IsDeleted)
}

func TestCommands_Reset(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	var out bytes.Buffer
	require.NoError(t, runAdd(ctx, e, "ops", "one", &out))
	require.NoError(t, runAdd(ctx, e, "ops", "two", &out))
	require.NoError(t, runAdd(ctx, e, "other", "three", &out))

	out.Reset()
	require.NoError(t, runReset(ctx, e, "ops", true, &out))
	assert.Equal(t, "deleted 2 memories of ops\n", out.String())

	left, err := e.GetAll(ctx, "other", 0)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestCommands_DeleteUnknown(t *testing.T) {
	err := runDelete(context.Background(), newEngine(t), "not-a-uuid", &bytes.Buffer{})
	assert.ErrorIs(t, err, memory.ErrNotFound)
}
