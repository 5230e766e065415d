package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	classerr "github.com/51302890/mcp-mem0/internal/errors"
)

// ollamaClient uses Ollama's native /api/chat endpoint.
type ollamaClient struct {
	http *resty.Client
	cfg  Config
	log  zerolog.Logger
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error"`
}

func newOllama(cfg Config, log zerolog.Logger) *ollamaClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	c := resty.New().
		SetBaseURL(base).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)
	return &ollamaClient{http: c, cfg: cfg, log: log}
}

func (c *ollamaClient) Model() string { return c.cfg.Model }

func (c *ollamaClient) Generate(ctx context.Context, msgs []Message, opts Options) (string, error) {
	body := ollamaChatRequest{
		Model:    c.cfg.Model,
		Messages: msgs,
		Options: map[string]any{
			"temperature": c.cfg.Temperature,
			"num_predict": c.cfg.MaxTokens,
		},
	}
	if opts.JSON {
		body.Format = "json"
	}

	start := time.Now()
	var out string
	err := classerr.Retry(ctx, c.cfg.MaxRetries, 500*time.Millisecond, func() error {
		var res ollamaChatResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(&body).
			SetResult(&res).
			SetError(&res).
			Post("/api/chat")
		if err != nil {
			return classerr.NewNetworkError("ollama chat", err)
		}
		if resp.IsError() {
			msg := res.Error
			if msg == "" {
				msg = resp.String()
			}
			return classerr.NewHTTPError(resp.StatusCode(), msg, "ollama chat")
		}
		if res.Error != "" {
			return classerr.NewIrrecoverable(fmt.Errorf("ollama chat: %s", res.Error))
		}
		if strings.TrimSpace(res.Message.Content) == "" {
			return classerr.NewIrrecoverable(ErrEmptyResponse)
		}
		out = res.Message.Content
		return nil
	})
	observe("ollama", start, err)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return out, nil
}
