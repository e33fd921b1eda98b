package core

import "context"

// EmbeddingProvider turns a batch of texts into fixed-dimension vectors,
// one per input, order-preserving. Implementations must return
// KindEmbeddingUnavailable for transport/provider failures and
// KindDimensionMismatch when the provider returns vectors whose length
// disagrees with the configured dimension.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}
