package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/51302890/mcp-mem0/internal/history"
	"github.com/51302890/mcp-mem0/internal/memory"
	"github.com/51302890/mcp-mem0/internal/store"
)

type memoryAPI interface {
	Add(ctx context.Context, text, userID string, metadata map[string]any) ([]memory.AddResult, error)
	Search(ctx context.Context, query, userID string, limit int) ([]store.MemoryItem, error)
	GetAll(ctx context.Context, userID string, limit int) ([]store.MemoryItem, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context, userID string) (int, error)
	History(ctx context.Context, id string) ([]history.Record, error)
	ResetHistory(ctx context.Context) error
}

func runAdd(ctx context.Context, m memoryAPI, userID, text string, out io.Writer) error {
	res, err := m.Add(ctx, text, userID, map[string]any{"source": "memoryctl"})
	if err != nil {
		return err
	}
	if len(res) == 0 {
		_, err = fmt.Fprintln(out, "nothing new to remember")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, r := range res {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Event, r.ID, r.Memory)
	}
	return tw.Flush()
}

func runSearch(ctx context.Context, m memoryAPI, userID, query string, topK int, out io.Writer) error {
	if query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	items, err := m.Search(ctx, query, userID, topK)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, it := range items {
		fmt.Fprintf(tw, "%.3f\t%s\t%s\n", it.Score, it.ID, it.Memory)
	}
	return tw.Flush()
}

func runList(ctx context.Context, m memoryAPI, userID string, limit int, out io.Writer) error {
	items, err := m.GetAll(ctx, userID, limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", it.ID, it.CreatedAt.Format("2006-01-02 15:04:05"), it.Memory)
	}
	return tw.Flush()
}

func runDelete(ctx context.Context, m memoryAPI, id string, out io.Writer) error {
	if err := m.Delete(ctx, id); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "deleted %s\n", id)
	return err
}

func runHistory(ctx context.Context, m memoryAPI, id string, out io.Writer) error {
	records, err := m.History(ctx, id)
	if err != nil {
		return err
	}
	if records == nil {
		records = []history.Record{}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func runReset(ctx context.Context, m memoryAPI, userID string, withHistory bool, out io.Writer) error {
	n, err := m.DeleteAll(ctx, userID)
	if err != nil {
		return err
	}
	if withHistory {
		if err := m.ResetHistory(ctx); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(out, "deleted %d memories of %s\n", n, userID)
	return err
}
