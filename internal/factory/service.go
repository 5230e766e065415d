package factory

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/51302890/mcp-mem0/internal/config"
	emb "github.com/51302890/mcp-mem0/internal/embeddings"
	"github.com/51302890/mcp-mem0/internal/health"
	"github.com/51302890/mcp-mem0/internal/history"
	"github.com/51302890/mcp-mem0/internal/memory"
	"github.com/51302890/mcp-mem0/internal/memory/prompts"
	"github.com/51302890/mcp-mem0/internal/shardqueue"
	"github.com/51302890/mcp-mem0/internal/store"
	storepg "github.com/51302890/mcp-mem0/internal/store/postgres"
)

// Service bundles the long-lived components behind the MCP tools.
type Service struct {
	Engine   *memory.Engine
	Store    *storepg.Store
	History  *history.Store
	Embedder *emb.Checked
	Queue    *shardqueue.ShardExecutor
	Health   *health.ServiceHealthChecker
}

// NewService builds every component from s. Components opened before a
// failure are closed again.
func NewService(ctx context.Context, s *config.Settings, log zerolog.Logger) (*Service, error) {
	st, err := NewStore(ctx, s, log)
	if err != nil {
		return nil, err
	}
	hist, err := NewHistory(s, log)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	svc := &Service{Store: st, History: hist}

	if err := svc.wire(ctx, s, log); err != nil {
		_ = svc.Close()
		return nil, err
	}
	return svc, nil
}

func (svc *Service) wire(ctx context.Context, s *config.Settings, log zerolog.Logger) error {
	chat, err := NewLLM(s, log)
	if err != nil {
		return err
	}
	set, err := prompts.Load(s.PromptsFile)
	if err != nil {
		return err
	}
	svc.Queue, err = NewWriteQueue(log)
	if err != nil {
		return err
	}
	svc.Embedder = NewEmbeddingProvider(ctx, s, log)

	svc.Engine, err = memory.New(memory.Deps{
		Store:    svc.Store,
		LLM:      chat,
		Embedder: svc.Embedder,
		History:  svc.History,
		Queue:    svc.Queue,
		Prompts:  set,
	}, memory.Config{Infer: s.InferMemories, SearchPoolSize: s.SearchPoolSize}, log)
	if err != nil {
		return err
	}

	svc.Health = health.NewServiceHealthChecker(log,
		store.NewStoreHealthChecker(svc.Store, log, s.HealthProbeTimeout),
		health.NewPingChecker("history", svc.History, log, s.HealthProbeTimeout),
		emb.NewProviderHealthChecker(svc.Embedder, log, s.HealthProbeTimeout),
	)
	return nil
}

// NewWriteQueue starts the per-user write queue configured by SQ_*.
func NewWriteQueue(log zerolog.Logger) (*shardqueue.ShardExecutor, error) {
	cfg, err := shardqueue.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("write queue config: %w", err)
	}
	return shardqueue.NewShardExecutor(cfg, log), nil
}

// Close drains queued writes first, then closes the stores.
func (svc *Service) Close() error {
	if svc.Queue != nil {
		svc.Queue.Stop()
	}
	var errs []error
	if svc.History != nil {
		errs = append(errs, svc.History.Close())
	}
	if svc.Store != nil {
		errs = append(errs, svc.Store.Close())
	}
	return errors.Join(errs...)
}
