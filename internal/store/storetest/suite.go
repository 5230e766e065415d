// Package storetest holds a compliance suite shared by store.Store
// implementations.
package storetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/51302890/mcp-mem0/internal/store"
)

// Run exercises a store.Store built by makeStore. The store must accept
// vectors of length dims (at least 3) and start without rows for fresh
// random user ids.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store, dims int) {
	t.Helper()
	require.GreaterOrEqual(t, dims, 3)

	s := makeStore(t)
	ctx := context.Background()
	user := "u-" + uuid.NewString()
	other := "u-" + uuid.NewString()

	axis := func(i int) []float32 {
		v := make([]float32, dims)
		v[i] = 1
		return v
	}
	mix := func(a, b float32) []float32 {
		v := make([]float32, dims)
		v[0], v[1] = a, b
		return v
	}

	tea := &store.MemoryItem{ID: uuid.NewString(), UserID: user, Memory: "Likes green tea", Hash: "h1", Metadata: map[string]any{"source": "test"}}
	code := &store.MemoryItem{ID: uuid.NewString(), UserID: user, Memory: "Writes Go", Hash: "h2"}
	foreign := &store.MemoryItem{ID: uuid.NewString(), UserID: other, Memory: "Likes coffee", Hash: "h3"}

	require.NoError(t, s.Insert(ctx, tea, axis(0)), "Insert tea")
	require.NoError(t, s.Insert(ctx, code, axis(1)), "Insert code")
	require.NoError(t, s.Insert(ctx, foreign, axis(0)), "Insert foreign")

	t.Run("Get", func(t *testing.T) {
		got, err := s.Get(ctx, tea.ID)
		require.NoError(t, err)
		assert.Equal(t, "Likes green tea", got.Memory)
		assert.Equal(t, user, got.UserID)
		assert.Equal(t, "test", got.Metadata["source"])
		assert.False(t, got.CreatedAt.IsZero())
		assert.Nil(t, got.UpdatedAt)

		_, err = s.Get(ctx, uuid.NewString())
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("SearchOrdersByCosine", func(t *testing.T) {
		res, err := s.Search(ctx, user, mix(0.9, 0.1), 5)
		require.NoError(t, err)
		require.Len(t, res, 2, "other users' memories are excluded")
		assert.Equal(t, tea.ID, res[0].ID)
		assert.Equal(t, code.ID, res[1].ID)
		assert.Greater(t, res[0].Score, res[1].Score)
		assert.InDelta(t, 0.9939, res[0].Score, 0.001)

		top, err := s.Search(ctx, user, axis(1), 1)
		require.NoError(t, err)
		require.Len(t, top, 1)
		assert.Equal(t, code.ID, top[0].ID)
		assert.InDelta(t, 1.0, top[0].Score, 1e-6)
	})

	t.Run("List", func(t *testing.T) {
		res, err := s.List(ctx, user, 100)
		require.NoError(t, err)
		assert.Len(t, res, 2)

		one, err := s.List(ctx, user, 1)
		require.NoError(t, err)
		assert.Len(t, one, 1)
	})

	t.Run("Update", func(t *testing.T) {
		require.NoError(t, s.Update(ctx, tea.ID, "Likes oolong tea", "h1b", axis(2)))
		got, err := s.Get(ctx, tea.ID)
		require.NoError(t, err)
		assert.Equal(t, "Likes oolong tea", got.Memory)
		assert.Equal(t, "h1b", got.Hash)
		assert.NotNil(t, got.UpdatedAt)

		res, err := s.Search(ctx, user, axis(2), 1)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, tea.ID, res[0].ID)

		assert.ErrorIs(t, s.Update(ctx, uuid.NewString(), "x", "x", axis(0)), store.ErrNotFound)
	})

	t.Run("RejectsWrongDimension", func(t *testing.T) {
		_, err := s.Search(ctx, user, make([]float32, dims+1), 1)
		assert.Error(t, err)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, code.ID))
		_, err := s.Get(ctx, code.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, code.ID), store.ErrNotFound)
	})

	t.Run("DeleteAll", func(t *testing.T) {
		n, err := s.DeleteAll(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		res, err := s.List(ctx, user, 10)
		require.NoError(t, err)
		assert.Empty(t, res)

		left, err := s.List(ctx, other, 10)
		require.NoError(t, err)
		assert.Len(t, left, 1, "other users untouched")
	})
}
