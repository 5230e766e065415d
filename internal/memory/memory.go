// Package memory implements mem0-style long-term memory on top of an LLM,
// an embedding provider and a vector store.
//
// Add extracts facts from text with the LLM, looks up related memories by
// vector similarity, and lets the LLM decide for every fact whether to add a
// new memory, update or delete an existing one, or do nothing. Writes for one
// user are serialised through a per-user queue.
package memory

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	classerr "github.com/51302890/mcp-mem0/internal/errors"
	"github.com/51302890/mcp-mem0/internal/history"
	"github.com/51302890/mcp-mem0/internal/llm"
	"github.com/51302890/mcp-mem0/internal/memory/prompts"
	"github.com/51302890/mcp-mem0/internal/shardqueue"
	"github.com/51302890/mcp-mem0/internal/store"
)

var (
	// ErrNotFound is returned for unknown or malformed memory ids.
	ErrNotFound = store.ErrNotFound
	// ErrEmptyText is returned when the text or query is blank.
	ErrEmptyText = errors.New("text must not be empty")
)

const (
	defaultListLimit   = 100
	defaultSearchLimit = 100
	defaultPoolSize    = 5
	deletePageSize     = 500
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// History records memory changes.
type History interface {
	Add(ctx context.Context, r history.Record) error
	Get(ctx context.Context, memoryID string) ([]history.Record, error)
	Reset(ctx context.Context) error
}

// WriteQueue runs a job after every job previously queued for the same key.
type WriteQueue interface {
	Do(ctx context.Context, key string, job shardqueue.Job) error
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Store    store.Store
	LLM      llm.Client
	Embedder Embedder
	History  History
	Queue    WriteQueue
	Prompts  *prompts.Set
}

// Config tunes an Engine.
type Config struct {
	// Infer runs LLM fact extraction and update decisions on Add. When false
	// the text is stored verbatim as one memory.
	Infer bool
	// SearchPoolSize is how many existing memories are fetched per new fact.
	SearchPoolSize int
}

// AddResult describes one change made by Add.
type AddResult struct {
	ID             string `json:"id"`
	Memory         string `json:"memory"`
	Event          string `json:"event"`
	PreviousMemory string `json:"previous_memory,omitempty"`
}

// Engine is safe for concurrent use.
type Engine struct {
	d   Deps
	cfg Config
	log zerolog.Logger
	now func() time.Time
}

// New returns an Engine. All Deps are required.
func New(d Deps, cfg Config, log zerolog.Logger) (*Engine, error) {
	switch {
	case d.Store == nil:
		return nil, errors.New("memory: store is required")
	case d.Embedder == nil:
		return nil, errors.New("memory: embedder is required")
	case d.History == nil:
		return nil, errors.New("memory: history is required")
	case d.Queue == nil:
		return nil, errors.New("memory: write queue is required")
	case cfg.Infer && (d.LLM == nil || d.Prompts == nil):
		return nil, errors.New("memory: llm and prompts are required when inference is on")
	}
	if cfg.SearchPoolSize <= 0 {
		cfg.SearchPoolSize = defaultPoolSize
	}
	return &Engine{
		d:   d,
		cfg: cfg,
		log: log.With().Str("component", "memory").Logger(),
		now: time.Now,
	}, nil
}

// Add stores what is worth remembering from text for userID and returns the
// changes made. An empty result means nothing new was learned.
func (e *Engine) Add(ctx context.Context, text, userID string, metadata map[string]any) ([]AddResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	var results []AddResult
	err := e.d.Queue.Do(ctx, userID, shardqueue.JobFunc(func(ctx context.Context) error {
		var (
			res []AddResult
			err error
		)
		if e.cfg.Infer {
			res, err = e.addInferred(ctx, text, userID, metadata)
		} else {
			var r AddResult
			r, err = e.insert(ctx, text, userID, metadata, nil)
			if err == nil {
				res = []AddResult{r}
			}
		}
		results = res
		if err != nil && len(res) > 0 {
			// part of the batch is applied, re-running would duplicate it
			return classerr.NewIrrecoverable(err)
		}
		return err
	}))
	if err != nil {
		if isContextErr(err) {
			// the job may still be running; its results are not ours to read
			return nil, fmt.Errorf("add memory: %w", err)
		}
		return results, fmt.Errorf("add memory: %w", err)
	}
	return results, nil
}

// Search returns up to limit memories of userID most similar to query,
// best first. A non-positive limit means 100.
func (e *Engine) Search(ctx context.Context, query, userID string, limit int) ([]store.MemoryItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyText
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	vec, err := e.d.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	items, err := e.d.Store.Search(ctx, userID, vec, limit)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// GetAll returns up to limit memories of userID, newest first. A
// non-positive limit means 100.
func (e *Engine) GetAll(ctx context.Context, userID string, limit int) ([]store.MemoryItem, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return e.d.Store.List(ctx, userID, limit)
}

// Get returns one memory.
func (e *Engine) Get(ctx context.Context, id string) (*store.MemoryItem, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q is not a memory id", ErrNotFound, id)
	}
	return e.d.Store.Get(ctx, id)
}

// Delete removes one memory and records the deletion.
func (e *Engine) Delete(ctx context.Context, id string) error {
	item, err := e.Get(ctx, id)
	if err != nil {
		return err
	}
	return e.d.Queue.Do(ctx, item.UserID, shardqueue.JobFunc(func(ctx context.Context) error {
		return e.remove(ctx, item.ID, item.Memory)
	}))
}

// DeleteAll removes every memory of userID, recording each deletion, and
// returns how many were removed.
func (e *Engine) DeleteAll(ctx context.Context, userID string) (int, error) {
	var n int
	err := e.d.Queue.Do(ctx, userID, shardqueue.JobFunc(func(ctx context.Context) error {
		for {
			items, err := e.d.Store.List(ctx, userID, deletePageSize)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return nil
			}
			for _, it := range items {
				if err := e.remove(ctx, it.ID, it.Memory); err != nil && !errors.Is(err, store.ErrNotFound) {
					return err
				}
				n++
			}
		}
	}))
	if isContextErr(err) {
		return 0, err
	}
	return n, err
}

// History returns the change log of one memory, oldest first.
func (e *Engine) History(ctx context.Context, id string) ([]history.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q is not a memory id", ErrNotFound, id)
	}
	return e.d.History.Get(ctx, id)
}

// ResetHistory clears the change log of every memory.
func (e *Engine) ResetHistory(ctx context.Context) error {
	return e.d.History.Reset(ctx)
}

func (e *Engine) insert(ctx context.Context, text, userID string, metadata map[string]any, vec []float32) (AddResult, error) {
	if vec == nil {
		var err error
		if vec, err = e.d.Embedder.Embed(ctx, text); err != nil {
			return AddResult{}, fmt.Errorf("embed memory: %w", err)
		}
	}
	item := &store.MemoryItem{
		ID:        uuid.NewString(),
		Memory:    text,
		Hash:      hashOf(text),
		UserID:    userID,
		Metadata:  metadata,
		CreatedAt: e.now().UTC(),
	}
	if err := e.d.Store.Insert(ctx, item, vec); err != nil {
		return AddResult{}, err
	}
	if err := e.d.History.Add(ctx, history.Record{MemoryID: item.ID, NewMemory: text, Event: history.EventAdd}); err != nil {
		e.log.Warn().Err(err).Str("memory_id", item.ID).Msg("failed to record history")
	}
	eventsTotal.WithLabelValues(history.EventAdd).Inc()
	return AddResult{ID: item.ID, Memory: text, Event: history.EventAdd}, nil
}

func (e *Engine) update(ctx context.Context, id, oldText, newText string, vec []float32) (AddResult, error) {
	if vec == nil {
		var err error
		if vec, err = e.d.Embedder.Embed(ctx, newText); err != nil {
			return AddResult{}, fmt.Errorf("embed memory: %w", err)
		}
	}
	if err := e.d.Store.Update(ctx, id, newText, hashOf(newText), vec); err != nil {
		return AddResult{}, err
	}
	if err := e.d.History.Add(ctx, history.Record{MemoryID: id, OldMemory: oldText, NewMemory: newText, Event: history.EventUpdate}); err != nil {
		e.log.Warn().Err(err).Str("memory_id", id).Msg("failed to record history")
	}
	eventsTotal.WithLabelValues(history.EventUpdate).Inc()
	return AddResult{ID: id, Memory: newText, Event: history.EventUpdate, PreviousMemory: oldText}, nil
}

func (e *Engine) remove(ctx context.Context, id, oldText string) error {
	if err := e.d.Store.Delete(ctx, id); err != nil {
		return err
	}
	if err := e.d.History.Add(ctx, history.Record{MemoryID: id, OldMemory: oldText, Event: history.EventDelete, IsDeleted: true}); err != nil {
		e.log.Warn().Err(err).Str("memory_id", id).Msg("failed to record history")
	}
	eventsTotal.WithLabelValues(history.EventDelete).Inc()
	return nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func hashOf(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}
