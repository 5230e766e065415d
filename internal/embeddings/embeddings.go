// Package embeddings turns memory text and search queries into vectors.
package embeddings

import (
	"context"
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when a provider yields a vector whose
// length differs from the configured dimension.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Provider produces vector representations for text.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Checked wraps a Provider and rejects vectors of the wrong length.
type Checked struct {
	Provider
	name string
	dims int
}

// WithDimensions enforces that every vector from p has exactly dims entries.
func WithDimensions(p Provider, name string, dims int) *Checked {
	return &Checked{Provider: p, name: name, dims: dims}
}

func (c *Checked) Dimensions() int { return c.dims }
func (c *Checked) Name() string    { return c.name }

func (c *Checked) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := c.Provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) != c.dims {
		return nil, fmt.Errorf("%w: %s returned %d values, EMBEDDING_DIMS is %d", ErrDimensionMismatch, c.name, len(vec), c.dims)
	}
	return vec, nil
}

// HealthPing delegates to the wrapped provider when it can ping itself and
// otherwise embeds a short probe text.
func (c *Checked) HealthPing(ctx context.Context) error {
	if p, ok := c.Provider.(interface{ HealthPing(context.Context) error }); ok {
		return p.HealthPing(ctx)
	}
	_, err := c.Embed(ctx, "health-check")
	return err
}
