// Package llm talks to the chat-completion APIs used for fact extraction and
// memory update decisions.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrEmptyResponse is returned when a provider answers without content.
var ErrEmptyResponse = errors.New("llm returned an empty response")

// Roles used in chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tune a single Generate call.
type Options struct {
	// JSON asks the provider to answer with a JSON object.
	JSON bool
}

// Client generates a completion for a conversation.
type Client interface {
	Generate(ctx context.Context, msgs []Message, opts Options) (string, error)
	Model() string
}

// Config selects and tunes a provider.
type Config struct {
	Provider    string // openai, openrouter, deepseek or ollama
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

const (
	defaultTemperature = 0.2
	defaultMaxTokens   = 2000
	defaultTimeout     = 60 * time.Second
)

var defaultBaseURLs = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
	"deepseek":   "https://api.deepseek.com/v1",
	"ollama":     "http://localhost:11434",
}

var defaultModels = map[string]string{
	"openai":     "gpt-4o-mini",
	"openrouter": "openai/gpt-4o-mini",
	"deepseek":   "deepseek-chat",
	"ollama":     "llama3.1:latest",
}

// New builds the client for cfg.Provider, filling unset fields with the
// provider defaults.
func New(cfg Config, log zerolog.Logger) (Client, error) {
	base, ok := defaultBaseURLs[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = base
	}
	if cfg.Model == "" {
		cfg.Model = defaultModels[cfg.Provider]
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	log = log.With().Str("component", "llm").Str("provider", cfg.Provider).Str("model", cfg.Model).Logger()

	if cfg.Provider == "ollama" {
		return newOllama(cfg, log), nil
	}
	return newOpenAI(cfg, log), nil
}
