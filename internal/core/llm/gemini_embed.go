package llm

import (
	"context"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/pendocareer/ragpipeline/internal/core"
)

// GeminiEmbedder is the alternate embedding provider, selected with
// EMBEDDING_PROVIDER=gemini.
type GeminiEmbedder struct {
	client    *genai.Client
	modelName string
	dim       int
}

func NewGeminiEmbedder(ctx context.Context, apiKey, modelName string, dim int) (*GeminiEmbedder, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "text-embedding-004"
	}
	return &GeminiEmbedder{client: cl, modelName: modelName, dim: dim}, nil
}

var _ core.EmbeddingProvider = (*GeminiEmbedder)(nil)

func (g *GeminiEmbedder) Dimension() int { return g.dim }

func (g *GeminiEmbedder) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// EmbedTexts batches all texts in one request via EmbeddingBatch.
func (g *GeminiEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := g.client.EmbeddingModel(g.modelName)

	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, core.WrapErr(core.KindEmbeddingUnavailable, err, "gemini batch embed")
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, core.Errf(core.KindEmbeddingUnavailable, "gemini returned %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		if len(e.Values) != g.dim {
			return nil, core.Errf(core.KindDimensionMismatch, "vector length %d, configured dimension %d", len(e.Values), g.dim)
		}
		out = append(out, e.Values)
	}
	return out, nil
}
