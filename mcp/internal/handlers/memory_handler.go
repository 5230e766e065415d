package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/51302890/mcp-mem0/internal/history"
	"github.com/51302890/mcp-mem0/internal/memory"
	"github.com/51302890/mcp-mem0/internal/store"
)

// MemoryService is the part of the memory engine the tools need.
type MemoryService interface {
	Add(ctx context.Context, text, userID string, metadata map[string]any) ([]memory.AddResult, error)
	Search(ctx context.Context, query, userID string, limit int) ([]store.MemoryItem, error)
	GetAll(ctx context.Context, userID string, limit int) ([]store.MemoryItem, error)
	Get(ctx context.Context, id string) (*store.MemoryItem, error)
	Delete(ctx context.Context, id string) error
	History(ctx context.Context, id string) ([]history.Record, error)
}

// MemoryHandler exposes the long-term memory tools. Every memory written or
// read through it belongs to one configured user.
type MemoryHandler struct {
	svc    MemoryService
	userID string
}

func NewMemoryHandler(svc MemoryService, userID string) *MemoryHandler {
	return &MemoryHandler{svc: svc, userID: userID}
}

// RegisterTools registers save_memory, get_all_memories, search_memories,
// delete_memory and get_memory_history.
func (mh *MemoryHandler) RegisterTools(s *server.MCPServer) error {
	save := mcp.NewTool("save_memory",
		mcp.WithDescription("Save information to long-term memory. Any kind of information can be stored; relevant facts are extracted and merged with what is already remembered."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The content to store in memory, including any relevant details and context")),
	)
	getAll := mcp.NewTool("get_all_memories",
		mcp.WithDescription("Get all stored memories for the user. Call this when you need complete context of everything remembered."),
	)
	search := mcp.NewTool("search_memories",
		mcp.WithDescription("Search long-term memory by meaning. Returns the most relevant memories with their similarity score."),
		mcp.WithString("query", mcp.Required(), mcp.Description("What to look for, in natural language")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results to return (default 3)")),
		mcp.WithNumber("min_score", mcp.Description("Minimum similarity score between 0 and 1 (default 0.5)")),
	)
	del := mcp.NewTool("delete_memory",
		mcp.WithDescription("Delete one memory by its id"),
		mcp.WithString("memory_id", mcp.Required(), mcp.Description("The UUID of the memory")),
	)
	hist := mcp.NewTool("get_memory_history",
		mcp.WithDescription("Show how one memory changed over time (ADD, UPDATE, DELETE events, oldest first)"),
		mcp.WithString("memory_id", mcp.Required(), mcp.Description("The UUID of the memory")),
	)

	s.AddTool(save, instrument("save_memory", mh.handleSaveMemory))
	s.AddTool(getAll, instrument("get_all_memories", mh.handleGetAllMemories))
	s.AddTool(search, instrument("search_memories", mh.handleSearchMemories))
	s.AddTool(del, instrument("delete_memory", mh.handleDeleteMemory))
	s.AddTool(hist, instrument("get_memory_history", mh.handleGetMemoryHistory))
	return nil
}

func (mh *MemoryHandler) handleSaveMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error saving memory: %v", err)), nil
	}

	log.Debug().Str("user_id", mh.userID).Int("text_len", len(text)).Msg("save_memory invoked")

	start := time.Now()
	results, err := mh.svc.Add(ctx, text, mh.userID, nil)
	elapsed := time.Since(start)
	if err != nil {
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("save_memory failed")
		return mcp.NewToolResultError(fmt.Sprintf("Error saving memory: %v", err)), nil
	}

	log.Info().Int("changes", len(results)).Dur("elapsed", elapsed).Msg("save_memory completed")
	if len(results) == 0 {
		return mcp.NewToolResultText(savedMessage(text)), nil
	}
	b, _ := json.MarshalIndent(map[string]any{"results": results}, "", "  ")
	return mcp.NewToolResultText(string(b)), nil
}

func (mh *MemoryHandler) handleGetAllMemories(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	items, err := mh.svc.GetAll(ctx, mh.userID, 0)
	elapsed := time.Since(start)
	if err != nil {
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("get_all_memories failed")
		return mcp.NewToolResultError(fmt.Sprintf("Error retrieving memories: %v", err)), nil
	}

	texts := make([]string, 0, len(items))
	for _, it := range items {
		texts = append(texts, it.Memory)
	}
	log.Debug().Int("count", len(texts)).Dur("elapsed", elapsed).Msg("get_all_memories completed")

	b, _ := json.MarshalIndent(texts, "", "  ")
	return mcp.NewToolResultText(string(b)), nil
}

func (mh *MemoryHandler) handleSearchMemories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error searching memories: %v", err)), nil
	}
	limit := req.GetInt("limit", defaultSearchLimit)
	if limit < 1 {
		limit = defaultSearchLimit
	}
	minScore := req.GetFloat("min_score", defaultMinScore)

	cleaned := cleanQuery(query)
	log.Debug().Str("query", cleaned).Int("limit", limit).Float64("min_score", minScore).Msg("search_memories invoked")

	start := time.Now()
	items, err := mh.svc.Search(ctx, cleaned, mh.userID, limit*2)
	elapsed := time.Since(start)
	if err != nil {
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("search_memories failed")
		return mcp.NewToolResultError(fmt.Sprintf("Error searching memories: %v", err)), nil
	}

	hits := rankResults(items, minScore, limit)
	log.Debug().Int("fetched", len(items)).Int("returned", len(hits)).Dur("elapsed", elapsed).Msg("search_memories completed")
	return mcp.NewToolResultText(formatResults(hits)), nil
}

func (mh *MemoryHandler) handleDeleteMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("memory_id")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error deleting memory: %v", err)), nil
	}

	if err := mh.owned(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error deleting memory: %v", err)), nil
	}
	start := time.Now()
	if err := mh.svc.Delete(ctx, id); err != nil {
		log.Error().Err(err).Str("memory_id", id).Dur("elapsed", time.Since(start)).Msg("delete_memory failed")
		return mcp.NewToolResultError(fmt.Sprintf("Error deleting memory: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted memory %s", id)), nil
}

func (mh *MemoryHandler) handleGetMemoryHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("memory_id")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error retrieving history: %v", err)), nil
	}

	records, err := mh.svc.History(ctx, id)
	if err != nil {
		log.Error().Err(err).Str("memory_id", id).Msg("get_memory_history failed")
		return mcp.NewToolResultError(fmt.Sprintf("Error retrieving history: %v", err)), nil
	}
	if records == nil {
		records = []history.Record{}
	}
	b, _ := json.MarshalIndent(records, "", "  ")
	return mcp.NewToolResultText(string(b)), nil
}

// owned reports memory.ErrNotFound for memories of other users so that the
// tools cannot reach outside the configured user.
func (mh *MemoryHandler) owned(ctx context.Context, id string) error {
	item, err := mh.svc.Get(ctx, id)
	if err != nil {
		return err
	}
	if item.UserID != mh.userID {
		return fmt.Errorf("%w: %s", memory.ErrNotFound, id)
	}
	return nil
}

// toolOutcome classifies a result for metrics.
func toolOutcome(res *mcp.CallToolResult, err error) string {
	switch {
	case err != nil && errors.Is(err, context.Canceled):
		return "canceled"
	case err != nil:
		return "error"
	case res != nil && res.IsError:
		return "tool_error"
	default:
		return "ok"
	}
}
