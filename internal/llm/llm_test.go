package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	classerr "github.com/51302890/mcp-mem0/internal/errors"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestOpenAI_Generate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": `{"facts":["likes tea"]}`}}},
		})
	}))
	defer srv.Close()

	c, err := New(Config{Provider: "deepseek", BaseURL: srv.URL, APIKey: "sk-test"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "deepseek-chat", c.Model())

	out, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "I like tea"}}, Options{JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"facts":["likes tea"]}`, out)

	assert.Equal(t, "deepseek-chat", got.Model)
	assert.InDelta(t, 0.2, got.Temperature, 1e-9)
	assert.Equal(t, 2000, got.MaxTokens)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestOpenAI_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": map[string]string{"message": "overloaded"}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "ok"}}},
		})
	}))
	defer srv.Close()

	c, err := New(Config{Provider: "openai", BaseURL: srv.URL, APIKey: "k", MaxRetries: 2}, zerolog.Nop())
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAI_AuthErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]string{"message": "invalid api key"}})
	}))
	defer srv.Close()

	c, err := New(Config{Provider: "openrouter", BaseURL: srv.URL, APIKey: "bad", MaxRetries: 3}, zerolog.Nop())
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Options{})
	require.Error(t, err)
	assert.True(t, classerr.IsIrrecoverable(err))
	assert.Contains(t, err.Error(), "invalid api key")
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAI_ExhaustedRetriesAreFinal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": map[string]string{"message": "overloaded"}})
	}))
	defer srv.Close()

	c, err := New(Config{Provider: "openai", BaseURL: srv.URL, APIKey: "k", MaxRetries: 1}, zerolog.Nop())
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Options{})
	require.Error(t, err)
	assert.True(t, classerr.IsIrrecoverable(err), "write queue must not retry on top of the client")
	assert.Contains(t, err.Error(), "overloaded")
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAI_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c, err := New(Config{Provider: "openai", BaseURL: srv.URL, APIKey: "k"}, zerolog.Nop())
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), nil, Options{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOllama_Generate(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{
			"message": map[string]string{"role": "assistant", "content": `{"facts":[]}`},
			"done":    true,
		})
	}))
	defer srv.Close()

	c, err := New(Config{Provider: "ollama", BaseURL: srv.URL, Model: "qwen2.5:3b"}, zerolog.Nop())
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), []Message{{Role: RoleSystem, Content: "s"}, {Role: RoleUser, Content: "u"}}, Options{JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"facts":[]}`, out)

	assert.Equal(t, "qwen2.5:3b", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, "json", got.Format)
	assert.Len(t, got.Messages, 2)
	assert.EqualValues(t, 2000, got.Options["num_predict"])
}

func TestOllama_ModelMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": `model "nope" not found`})
	}))
	defer srv.Close()

	c, err := New(Config{Provider: "ollama", BaseURL: srv.URL, Model: "nope", MaxRetries: 2}, zerolog.Nop())
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), nil, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "gemini"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestExtractJSON(t *testing.T) {
	cases := map[string]string{
		`{"facts":[]}`:                            `{"facts":[]}`,
		"```json\n{\"facts\":[\"a\"]}\n```":       `{"facts":["a"]}`,
		"Here you go:\n{\"memory\":[]}\nThanks!": `{"memory":[]}`,
		"no json at all":                          "no json at all",
	}
	for in, want := range cases {
		assert.Equal(t, want, ExtractJSON(in))
	}

	var v struct {
		Facts []string `json:"facts"`
	}
	require.NoError(t, DecodeJSON("```\n{\"facts\":[\"x\",\"y\"]}\n```", &v))
	assert.Equal(t, []string{"x", "y"}, v.Facts)
	assert.Error(t, DecodeJSON("nope", &v))
}
