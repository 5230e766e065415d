package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/51302890/mcp-mem0/internal/history"
	"github.com/51302890/mcp-mem0/internal/memory"
	"github.com/51302890/mcp-mem0/internal/shardqueue"
	"github.com/51302890/mcp-mem0/internal/store/storetest"
)

const dims = 3

// wordEmbedder puts texts mentioning tea and Go on separate axes.
type wordEmbedder struct{}

func (wordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, dims)
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "tea"):
		v[0] = 1
	case strings.Contains(lower, "go"):
		v[1] = 1
	default:
		v[2] = 1
	}
	return v, nil
}

type healthy struct{}

func (healthy) IsHealthy() bool             { return true }
func (healthy) Components() map[string]bool { return map[string]bool{"store": true} }

func newTestServer(t *testing.T) *server.MCPServer {
	t.Helper()
	h, err := history.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	q := shardqueue.NewShardExecutor(shardqueue.Config{Shards: 1}, zerolog.Nop())
	t.Cleanup(q.Stop)

	engine, err := memory.New(memory.Deps{
		Store:    storetest.NewMemStore(dims),
		Embedder: wordEmbedder{},
		History:  h,
		Queue:    q,
	}, memory.Config{Infer: false}, zerolog.Nop())
	require.NoError(t, err)

	s, err := NewServer("test-mcp-mem0", "0.0.1", engine, "user")
	require.NoError(t, err)
	return s
}

func initialize(ctx context.Context, t *testing.T, c *client.Client) {
	t.Helper()
	_, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      mcp.Implementation{Name: "test-client", Version: "1.0.0"},
		},
	})
	require.NoError(t, err)
}

func callText(ctx context.Context, t *testing.T, c *client.Client, tool string, args map[string]any) string {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args
	res, err := c.CallTool(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestInProcess_ToolRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr := transport.NewInProcessTransport(newTestServer(t))
	require.NoError(t, tr.Start(ctx))
	c := client.NewClient(tr)
	defer c.Close()
	initialize(ctx, t, c)

	tools, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"save_memory", "get_all_memories", "search_memories", "delete_memory", "get_memory_history"}, names)

	out := callText(ctx, t, c, "save_memory", map[string]any{"text": "I drink green tea every morning"})
	assert.Contains(t, out, `"event": "ADD"`)
	callText(ctx, t, c, "save_memory", map[string]any{"text": "I write Go at work"})

	all := callText(ctx, t, c, "get_all_memories", nil)
	assert.Contains(t, all, "I drink green tea every morning")
	assert.Contains(t, all, "I write Go at work")

	hits := callText(ctx, t, c, "search_memories", map[string]any{"query": "tea", "limit": 1})
	assert.Equal(t, "[score: 1.00] I drink green tea every morning", hits)

	none := callText(ctx, t, c, "search_memories", map[string]any{"query": "weather"})
	assert.Equal(t, "No relevant memories found", none)
}

func TestSSE_ServesToolsAndHealth(t *testing.T) {
	ts := httptest.NewServer(newSSEHandler(newTestServer(t), healthy{}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := client.NewSSEMCPClient(ts.URL + "/sse")
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Start(ctx))
	initialize(ctx, t, c)

	out := callText(ctx, t, c, "save_memory", map[string]any{"text": "Prefers tea over coffee"})
	assert.Contains(t, out, "Prefers tea over coffee")
}
