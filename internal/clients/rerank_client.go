// rerank_client.go adapts a GraphRAGClient-style remote-scoring
// call pattern into a rerank.Provider: a POST-JSON/parse-JSON round trip
// against a remote cross-encoder reranking service, via go-resty.
package clients

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

// RerankClient implements rerank.Provider against a remote scoring
// service.
type RerankClient struct {
	http *resty.Client
}

// NewRerankClient constructs a RerankClient rooted at baseURL.
func NewRerankClient(baseURL string) *RerankClient {
	return &RerankClient{http: resty.New().SetBaseURL(baseURL).SetTimeout(30_000_000_000)}
}

// ScoreBatch scores each text against query via the remote service.
func (c *RerankClient) ScoreBatch(ctx context.Context, query string, texts []string) ([]float64, error) {
	var out rerankResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(rerankRequest{Query: query, Texts: texts}).
		SetResult(&out).
		Post("/rerank")
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("rerank service returned status %d", resp.StatusCode())
	}
	if len(out.Scores) != len(texts) {
		return nil, fmt.Errorf("rerank service returned %d scores for %d texts", len(out.Scores), len(texts))
	}
	return out.Scores, nil
}
