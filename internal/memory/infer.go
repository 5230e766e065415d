package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/51302890/mcp-mem0/internal/history"
	"github.com/51302890/mcp-mem0/internal/llm"
	"github.com/51302890/mcp-mem0/internal/store"
)

// Events the update step may return besides the history events.
const eventNone = "NONE"

type factsResponse struct {
	Facts []string `json:"facts"`
}

type memoryAction struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Event     string `json:"event"`
	OldMemory string `json:"old_memory,omitempty"`
}

type updateResponse struct {
	Memory []memoryAction `json:"memory"`
}

type promptMemory struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// addInferred runs extraction, retrieval, the update decision and applies
// it. On error the changes applied so far are returned with it.
func (e *Engine) addInferred(ctx context.Context, text, userID string, metadata map[string]any) ([]AddResult, error) {
	facts, err := e.extractFacts(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(facts) == 0 {
		e.log.Debug().Str("user_id", userID).Msg("no facts extracted")
		return nil, nil
	}

	vectors := make(map[string][]float32, len(facts))
	var existing []store.MemoryItem
	seen := map[string]bool{}
	for _, f := range facts {
		vec, err := e.d.Embedder.Embed(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("embed fact: %w", err)
		}
		vectors[f] = vec
		related, err := e.d.Store.Search(ctx, userID, vec, e.cfg.SearchPoolSize)
		if err != nil {
			return nil, fmt.Errorf("search related memories: %w", err)
		}
		for _, m := range related {
			if !seen[m.ID] {
				seen[m.ID] = true
				existing = append(existing, m)
			}
		}
	}

	// The LLM sees small integer ids instead of UUIDs; it tends to mangle
	// long identifiers.
	idMap := make(map[string]store.MemoryItem, len(existing))
	old := make([]promptMemory, len(existing))
	for i, m := range existing {
		key := strconv.Itoa(i)
		idMap[key] = m
		old[i] = promptMemory{ID: key, Text: m.Memory}
	}

	actions, err := e.decide(ctx, old, facts)
	if err != nil {
		return nil, err
	}

	var results []AddResult
	for _, a := range actions {
		a.Event = strings.ToUpper(strings.TrimSpace(a.Event))
		a.Text = strings.TrimSpace(a.Text)

		switch a.Event {
		case history.EventAdd:
			if a.Text == "" {
				continue
			}
			r, err := e.insert(ctx, a.Text, userID, metadata, vectors[a.Text])
			if err != nil {
				return results, err
			}
			results = append(results, r)

		case history.EventUpdate:
			m, ok := idMap[strings.TrimSpace(a.ID)]
			if !ok || a.Text == "" {
				e.log.Warn().Str("id", a.ID).Msg("update decision references an unknown memory, skipping")
				continue
			}
			if a.Text == m.Memory {
				continue
			}
			r, err := e.update(ctx, m.ID, m.Memory, a.Text, vectors[a.Text])
			if err != nil {
				return results, err
			}
			results = append(results, r)

		case history.EventDelete:
			m, ok := idMap[strings.TrimSpace(a.ID)]
			if !ok {
				e.log.Warn().Str("id", a.ID).Msg("delete decision references an unknown memory, skipping")
				continue
			}
			if err := e.remove(ctx, m.ID, m.Memory); err != nil {
				return results, err
			}
			results = append(results, AddResult{ID: m.ID, Memory: m.Memory, Event: history.EventDelete})

		case eventNone, "":
		default:
			e.log.Warn().Str("event", a.Event).Msg("unknown memory event, skipping")
		}
	}
	return results, nil
}

func (e *Engine) extractFacts(ctx context.Context, text string) ([]string, error) {
	system, err := e.d.Prompts.FactExtraction(e.now())
	if err != nil {
		return nil, err
	}
	raw, err := e.d.LLM.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: "Input:\n" + text},
	}, llm.Options{JSON: true})
	if err != nil {
		return nil, fmt.Errorf("extract facts: %w", err)
	}
	var fr factsResponse
	if err := llm.DecodeJSON(raw, &fr); err != nil {
		return nil, fmt.Errorf("extract facts: %w", err)
	}
	out := fr.Facts[:0]
	for _, f := range fr.Facts {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out, nil
}

func (e *Engine) decide(ctx context.Context, old []promptMemory, facts []string) ([]memoryAction, error) {
	oldJSON, err := json.Marshal(old)
	if err != nil {
		return nil, err
	}
	factsJSON, err := json.Marshal(facts)
	if err != nil {
		return nil, err
	}
	prompt, err := e.d.Prompts.UpdateMemory(string(oldJSON), string(factsJSON))
	if err != nil {
		return nil, err
	}
	raw, err := e.d.LLM.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, llm.Options{JSON: true})
	if err != nil {
		return nil, fmt.Errorf("decide memory updates: %w", err)
	}
	var ur updateResponse
	if err := llm.DecodeJSON(raw, &ur); err != nil {
		return nil, fmt.Errorf("decide memory updates: %w", err)
	}
	return ur.Memory, nil
}
