package handlers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/51302890/mcp-mem0/internal/store"
)

const (
	defaultSearchLimit = 3
	defaultMinScore    = 0.5
	savedPreviewLen    = 100
	noResultsMessage   = "No relevant memories found"
)

// Particles that carry no meaning for similarity search when they stand alone.
var stopTokens = map[string]struct{}{"的": {}, "是": {}, "在": {}, "和": {}, "有": {}}

// cleanQuery drops whitespace-separated tokens that are exactly a stop token.
// Words merely containing one are kept. A query made only of stop tokens is
// kept as typed.
func cleanQuery(q string) string {
	fields := strings.Fields(q)
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, stop := stopTokens[f]; !stop {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return strings.TrimSpace(q)
	}
	return strings.Join(kept, " ")
}

// rankResults keeps hits scoring at least minScore, best first, at most limit.
func rankResults(items []store.MemoryItem, minScore float64, limit int) []store.MemoryItem {
	out := make([]store.MemoryItem, 0, len(items))
	for _, it := range items {
		if it.Score >= minScore {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func formatResults(items []store.MemoryItem) string {
	if len(items) == 0 {
		return noResultsMessage
	}
	blocks := make([]string, len(items))
	for i, it := range items {
		blocks[i] = fmt.Sprintf("[score: %.2f] %s", it.Score, it.Memory)
	}
	return strings.Join(blocks, "\n\n")
}

func savedMessage(text string) string {
	r := []rune(text)
	if len(r) > savedPreviewLen {
		return fmt.Sprintf("Successfully saved memory: %s...", string(r[:savedPreviewLen]))
	}
	return fmt.Sprintf("Successfully saved memory: %s", text)
}
