package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/51302890/mcp-mem0/internal/config"
	"github.com/51302890/mcp-mem0/internal/history"
	storepg "github.com/51302890/mcp-mem0/internal/store/postgres"
)

const bootstrapTimeout = 30 * time.Second

// NewStore opens the Postgres pool and bootstraps the collection table.
// Unlike the other components this runs synchronously: a store whose vector
// column disagrees with EMBEDDING_DIMS must stop startup.
func NewStore(ctx context.Context, s *config.Settings, log zerolog.Logger) (*storepg.Store, error) {
	openCtx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	defer cancel()

	db, err := storepg.Open(openCtx, s.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", config.RedactDSN(s.DatabaseURL), err)
	}
	st := storepg.NewWithDB(db, s.CollectionName, s.EmbeddingDims)
	if err := st.Bootstrap(openCtx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("bootstrap collection %q: %w", s.CollectionName, err)
	}
	log.Info().
		Str("collection", s.CollectionName).
		Int("dims", s.EmbeddingDims).
		Msg("Vector store ready")
	return st, nil
}

// NewHistory opens the SQLite history log.
func NewHistory(s *config.Settings, log zerolog.Logger) (*history.Store, error) {
	h, err := history.Open(s.HistoryDBPath)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", s.HistoryDBPath, err)
	}
	log.Debug().Str("path", s.HistoryDBPath).Msg("History store ready")
	return h, nil
}
