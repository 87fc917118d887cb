package embedding

import (
	"context"
	"fmt"

	"rook/internal/config"
	"rook/internal/ports"
)

// Client adapts the package's HTTP embedding call to ports.Embedder, so the
// ingestion gate, retrieval engine, and façade can depend on the narrow
// interface rather than this package's config-shaped free function.
type Client struct {
	cfg        config.EmbeddingConfig
	dimensions int
}

// NewClient builds a ports.Embedder backed by cfg. dimensions should match
// the vector store's configured dimensionality (config.DBConfig.Vector.
// Dimensions); it is not derived from the embedding endpoint itself since
// EmbedText doesn't report it.
func NewClient(cfg config.EmbeddingConfig, dimensions int) *Client {
	return &Client{cfg: cfg, dimensions: dimensions}
}

// Embed satisfies ports.Embedder. action is accepted for interface
// conformance; this HTTP embedding endpoint doesn't expose task-specific
// models, so it's ignored here (unlike providers that route "add" and
// "search" to distinct models).
func (c *Client) Embed(ctx context.Context, text string, action ports.EmbedAction) ([]float32, error) {
	out, err := EmbedText(ctx, c.cfg, []string{text})
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("embedding client: expected 1 vector, got %d", len(out))
	}
	return out[0], nil
}

// Dimensions reports the configured embedding width.
func (c *Client) Dimensions() int {
	return c.dimensions
}
