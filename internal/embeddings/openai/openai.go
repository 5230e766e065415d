// Package openai calls an OpenAI-compatible /embeddings endpoint.
package openai

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
	dims       int
	maxRetries int
}

type embedRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// New returns a provider. dims is sent as the "dimensions" request field so
// models that support shortening return vectors of the configured size.
func New(baseURL, apiKey, model string, dims int, timeout time.Duration, maxRetries int) *Provider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &Provider{client: c, model: model, dims: dims, maxRetries: maxRetries}
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("openai embed: empty text")
	}
	// newlines degrade embedding quality on OpenAI models
	input := strings.ReplaceAll(text, "\n", " ")

	var vec []float32
	err := classerr.Retry(ctx, p.maxRetries, 250*time.Millisecond, func() error {
		var (
			res    embedResponse
			errRes apiError
		)
		resp, err := p.client.R().
			SetContext(ctx).
			SetBody(&embedRequest{Model: p.model, Input: input, Dimensions: p.dims}).
			SetResult(&res).
			SetError(&errRes).
			Post("/embeddings")
		if err != nil {
			return classerr.NewNetworkError("openai embed", err)
		}
		if resp.IsError() {
			msg := errRes.Error.Message
			if msg == "" {
				msg = resp.String()
			}
			return classerr.NewHTTPError(resp.StatusCode(), msg, "openai embed")
		}
		if len(res.Data) == 0 {
			return classerr.NewIrrecoverable(fmt.Errorf("openai embed: no data in response"))
		}
		vec = res.Data[0].Embedding
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// HealthPing lists models, which verifies reachability and the API key
// without spending tokens.
func (p *Provider) HealthPing(ctx context.Context) error {
	resp, err := p.client.R().SetContext(ctx).Get("/models")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("openai status %d", resp.StatusCode())
	}
	return nil
}
