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

// openAIClient speaks the OpenAI chat-completions dialect, which OpenRouter
// and DeepSeek also accept.
type openAIClient struct {
	http *resty.Client
	cfg  Config
	log  zerolog.Logger
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func newOpenAI(cfg Config, log zerolog.Logger) *openAIClient {
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)
	if cfg.APIKey != "" {
		c.SetAuthToken(cfg.APIKey)
	}
	if cfg.Provider == "openrouter" {
		c.SetHeader("X-Title", "mcp-mem0")
	}
	return &openAIClient{http: c, cfg: cfg, log: log}
}

func (c *openAIClient) Model() string { return c.cfg.Model }

func (c *openAIClient) Generate(ctx context.Context, msgs []Message, opts Options) (string, error) {
	body := chatRequest{
		Model:       c.cfg.Model,
		Messages:    msgs,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	if opts.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	start := time.Now()
	var out string
	err := classerr.Retry(ctx, c.cfg.MaxRetries, 500*time.Millisecond, func() error {
		var (
			res    chatResponse
			errRes apiError
		)
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(&body).
			SetResult(&res).
			SetError(&errRes).
			Post("/chat/completions")
		if err != nil {
			return classerr.NewNetworkError("chat completion", err)
		}
		if resp.IsError() {
			msg := errRes.Error.Message
			if msg == "" {
				msg = resp.String()
			}
			c.log.Warn().Int("status", resp.StatusCode()).Str("error", msg).Msg("chat completion failed")
			return classerr.NewHTTPError(resp.StatusCode(), msg, "chat completion")
		}
		if len(res.Choices) == 0 || strings.TrimSpace(res.Choices[0].Message.Content) == "" {
			return classerr.NewIrrecoverable(ErrEmptyResponse)
		}
		out = res.Choices[0].Message.Content
		c.log.Debug().
			Int("prompt_tokens", res.Usage.PromptTokens).
			Int("completion_tokens", res.Usage.CompletionTokens).
			Str("finish_reason", res.Choices[0].FinishReason).
			Msg("chat completion")
		return nil
	})
	observe(c.cfg.Provider, start, err)
	if err != nil {
		return "", fmt.Errorf("%s generate: %w", c.cfg.Provider, err)
	}
	return out, nil
}
