// Package ollama calls the Ollama embeddings API.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	classerr "github.com/51302890/mcp-mem0/internal/errors"
)

type Provider struct {
	client     *resty.Client
	model      string
	maxRetries int
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
	Error     string    `json:"error"`
}

// New returns a provider for baseURL ("http://" is assumed when the scheme
// is missing).
func New(baseURL, model string, timeout time.Duration, maxRetries int) *Provider {
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := resty.New().
		SetBaseURL(base).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &Provider{client: c, model: model, maxRetries: maxRetries}
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("ollama embed: empty text")
	}

	var vec []float32
	err := classerr.Retry(ctx, p.maxRetries, 250*time.Millisecond, func() error {
		var er embedResponse
		resp, err := p.client.R().
			SetContext(ctx).
			SetBody(&embedRequest{Model: p.model, Prompt: text}).
			SetResult(&er).
			SetError(&er).
			Post("/api/embeddings")
		if err != nil {
			return classerr.NewNetworkError("ollama embed", err)
		}
		if resp.IsError() {
			msg := er.Error
			if msg == "" {
				msg = resp.String()
			}
			return classerr.NewHTTPError(resp.StatusCode(), msg, "ollama embed")
		}
		if er.Error != "" {
			return classerr.NewIrrecoverable(fmt.Errorf("ollama embed: %s", er.Error))
		}
		vec = make([]float32, len(er.Embedding))
		for i, v := range er.Embedding {
			vec[i] = float32(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// HealthPing checks /api/tags for the configured model.
func (p *Provider) HealthPing(ctx context.Context) error {
	var data struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	resp, err := p.client.R().SetContext(ctx).SetResult(&data).Get("/api/tags")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("ollama status %d", resp.StatusCode())
	}
	want := baseModelName(p.model)
	for _, m := range data.Models {
		if baseModelName(m.Name) == want {
			return nil
		}
	}
	return fmt.Errorf("model %s not found", want)
}

func baseModelName(name string) string {
	return strings.SplitN(name, ":", 2)[0]
}
