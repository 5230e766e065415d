package factory

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/51302890/mcp-mem0/internal/config"
	emb "github.com/51302890/mcp-mem0/internal/embeddings"
	"github.com/51302890/mcp-mem0/internal/llm"
)

const warmupTimeout = 20 * time.Second

// NewLLM builds the chat client for LLM_PROVIDER.
func NewLLM(s *config.Settings, log zerolog.Logger) (llm.Client, error) {
	return llm.New(llmConfig(s), log)
}

func llmConfig(s *config.Settings) llm.Config {
	return llm.Config{
		Provider:   s.LLMProvider,
		BaseURL:    s.LLMBaseURL,
		APIKey:     s.LLMAPIKey,
		Model:      s.LLMChoice,
		Timeout:    s.LLMTimeout,
		MaxRetries: s.LLMMaxRetries,
	}
}

// NewEmbeddingProvider creates the embedder and launches an async warmup;
// the provider is returned immediately for fast startup.
func NewEmbeddingProvider(ctx context.Context, s *config.Settings, log zerolog.Logger) *emb.Checked {
	provider := emb.New(embeddingConfig(s), log)

	go func() {
		warmupCtx, cancel := context.WithTimeout(ctx, warmupTimeout)
		defer cancel()

		if vec, err := provider.Embed(warmupCtx, "factory-warmup-check"); err != nil {
			log.Warn().Err(err).Str("provider", provider.Name()).Msg("embedding provider warmup failed")
		} else {
			log.Debug().Str("provider", provider.Name()).Int("vec_len", len(vec)).Msg("embedding provider warmup completed")
		}
	}()

	return provider
}

// embeddingConfig reuses LLM_BASE_URL for embeddings only when the LLM
// provider is OpenAI itself; other providers may not serve /embeddings.
func embeddingConfig(s *config.Settings) emb.Config {
	c := emb.Config{
		BaseURL:    s.EmbeddingBaseURL,
		APIKey:     s.EmbeddingAPIKey,
		Model:      s.EmbeddingModelChoice,
		Dims:       s.EmbeddingDims,
		Timeout:    s.LLMTimeout,
		MaxRetries: s.LLMMaxRetries,
	}
	if s.LLMProvider == config.ProviderOpenAI {
		c.OpenAIBaseURL = s.LLMBaseURL
	}
	return c
}
