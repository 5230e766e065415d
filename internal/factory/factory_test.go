package factory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/51302890/mcp-mem0/internal/config"
	"github.com/51302890/mcp-mem0/internal/shardqueue"
)

func baseSettings() *config.Settings {
	return &config.Settings{
		LLMProvider:     config.ProviderOpenAI,
		LLMBaseURL:      "http://llm.local/v1",
		LLMAPIKey:       "sk-llm",
		EmbeddingAPIKey: "sk-emb",
		EmbeddingDims:   3,
		LLMTimeout:      time.Second,
		LLMMaxRetries:   2,
	}
}

func TestEmbeddingConfig_ReusesLLMBaseOnlyForOpenAI(t *testing.T) {
	s := baseSettings()
	c := embeddingConfig(s)
	assert.Equal(t, "http://llm.local/v1", c.OpenAIBaseURL)
	assert.Equal(t, "sk-emb", c.APIKey)
	assert.Equal(t, 3, c.Dims)
	assert.Empty(t, c.BaseURL)

	s.LLMProvider = config.ProviderDeepSeek
	assert.Empty(t, embeddingConfig(s).OpenAIBaseURL)
}

func TestLLMConfig(t *testing.T) {
	s := baseSettings()
	s.LLMChoice = "gpt-4.1-mini"
	c := llmConfig(s)
	assert.Equal(t, "openai", c.Provider)
	assert.Equal(t, "gpt-4.1-mini", c.Model)
	assert.Equal(t, 2, c.MaxRetries)

	chat, err := NewLLM(s, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1-mini", chat.Model())
}

func TestNewEmbeddingProvider_WarmsUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	s := baseSettings()
	s.EmbeddingBaseURL = srv.URL
	p := NewEmbeddingProvider(context.Background(), s, zerolog.Nop())
	assert.Equal(t, 3, p.Dimensions())

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestNewHistory(t *testing.T) {
	s := baseSettings()
	s.HistoryDBPath = filepath.Join(t.TempDir(), "nested", "history.db")

	h, err := NewHistory(s, zerolog.Nop())
	require.NoError(t, err)
	defer h.Close()
	assert.NoError(t, h.HealthPing(context.Background()))
}

func TestNewWriteQueue(t *testing.T) {
	t.Setenv("SQ_SHARDS", "2")
	q, err := NewWriteQueue(zerolog.Nop())
	require.NoError(t, err)
	defer q.Stop()

	require.NoError(t, q.Do(context.Background(), "user", shardqueue.JobFunc(func(context.Context) error { return nil })))
}

func TestNewWriteQueue_BadEnv(t *testing.T) {
	t.Setenv("SQ_SHARDS", "many")
	_, err := NewWriteQueue(zerolog.Nop())
	assert.Error(t, err)
}

func TestServiceClose_Partial(t *testing.T) {
	assert.NoError(t, (&Service{}).Close())
}
