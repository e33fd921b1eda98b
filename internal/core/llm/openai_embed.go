package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pendocareer/ragpipeline/internal/core"
)

// OpenAIEmbedder calls any OpenAI-compatible /embeddings endpoint. It does not
// retry on its own; transient failures are surfaced as retryable pipeline
// errors and the job scheduler owns the backoff.
type OpenAIEmbedder struct {
	baseURL string
	apiKey  string
	model   string
	dim     int
	client  *http.Client
}

func NewOpenAIEmbedder(baseURL, apiKey, model string, dim int, timeout time.Duration) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding API key not set")
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIEmbedder{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		dim:     dim,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

var _ core.EmbeddingProvider = (*OpenAIEmbedder)(nil)

func (e *OpenAIEmbedder) Dimension() int { return e.dim }

type embedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedTexts sends the whole batch in one request; the caller bounds batch size.
func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, _ := json.Marshal(embedRequest{Input: texts, Model: e.model})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, core.WrapErr(core.KindEmbeddingUnavailable, err, "build embeddings request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, core.WrapErr(core.KindEmbeddingUnavailable, err, "embeddings request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, core.Errf(core.KindEmbeddingUnavailable, "embeddings endpoint returned %s: %s", resp.Status, payload)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, core.WrapErr(core.KindEmbeddingUnavailable, err, "decode embeddings response")
	}
	if len(parsed.Data) != len(texts) {
		return nil, core.Errf(core.KindEmbeddingUnavailable, "embeddings endpoint returned %d vectors for %d inputs", len(parsed.Data), len(texts))
	}

	// The API may return entries out of order; the index field is authoritative.
	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, core.Errf(core.KindEmbeddingUnavailable, "embeddings endpoint returned index %d out of range", d.Index)
		}
		if len(d.Embedding) != e.dim {
			return nil, core.Errf(core.KindDimensionMismatch, "vector length %d, configured dimension %d", len(d.Embedding), e.dim)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
