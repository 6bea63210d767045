package clients

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/adverant/idp-retrieval-platform/internal/logging"
)

// EmbeddingClient implements embed.Backend over an OpenAI-compatible
// embeddings endpoint, the same sashabaranov/go-openai client the
// Invoker's LLMClient uses for chat completions.
type EmbeddingClient struct {
	client *openai.Client
	log    *logging.Logger
}

// NewEmbeddingClient constructs an EmbeddingClient against baseURL
// (an OpenAI-compatible embeddings API).
func NewEmbeddingClient(apiKey, baseURL string) *EmbeddingClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &EmbeddingClient{
		client: openai.NewClientWithConfig(config),
		log:    logging.NewLogger("embedding-client"),
	}
}

func (c *EmbeddingClient) Name() string { return "openai-compatible" }

// Embed requests embeddings for texts using model, returning one vector
// per input text in the same order.
func (c *EmbeddingClient) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		out[d.Index] = d.Embedding
	}
	c.log.Debug("embedded batch", "model", model, "count", len(texts))
	return out, nil
}
