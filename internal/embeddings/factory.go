package embeddings

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/51302890/mcp-mem0/internal/embeddings/ollama"
	"github.com/51302890/mcp-mem0/internal/embeddings/openai"
)

const (
	DefaultOllamaModel = "nomic-embed-text"
	DefaultOpenAIModel = "text-embedding-3-small"
	defaultOpenAIBase  = "https://api.openai.com/v1"
)

// Config holds the embedding-related settings.
type Config struct {
	// BaseURL selects the Ollama embedder when set.
	BaseURL string
	// OpenAIBaseURL is used for the OpenAI-compatible embedder; empty means
	// the public OpenAI endpoint.
	OpenAIBaseURL string
	APIKey        string
	Model         string
	Dims          int
	Timeout       time.Duration
	MaxRetries    int
}

// New picks the provider: Ollama when BaseURL is set, otherwise an
// OpenAI-compatible API. The result enforces Dims.
func New(cfg Config, log zerolog.Logger) *Checked {
	if cfg.BaseURL != "" {
		model := cfg.Model
		if model == "" {
			model = DefaultOllamaModel
		}
		log.Info().Str("embedder", "ollama").Str("model", model).Str("base_url", cfg.BaseURL).Int("dims", cfg.Dims).Msg("Embedding provider selected")
		p := ollama.New(cfg.BaseURL, model, cfg.Timeout, cfg.MaxRetries)
		return WithDimensions(p, "ollama/"+model, cfg.Dims)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	base := cfg.OpenAIBaseURL
	if base == "" {
		base = defaultOpenAIBase
	}
	log.Info().Str("embedder", "openai").Str("model", model).Str("base_url", base).Int("dims", cfg.Dims).Msg("Embedding provider selected")
	p := openai.New(base, cfg.APIKey, model, cfg.Dims, cfg.Timeout, cfg.MaxRetries)
	return WithDimensions(p, "openai/"+model, cfg.Dims)
}
