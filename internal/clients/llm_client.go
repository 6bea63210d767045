// llm_client.go adapts an ArtifactClient/GraphRAGClient-style HTTP
// outbound-call pattern (context-aware request, status-code + JSON-body
// error handling) into the Invoker's (C21) BackendClient: an
// OpenAI-compatible path via sashabaranov/go-openai and a
// native/Ollama-compatible path via go-resty, selected by convention.
package clients

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	openai "github.com/sashabaranov/go-openai"

	"github.com/adverant/idp-retrieval-platform/internal/llm/invoke"
	"github.com/adverant/idp-retrieval-platform/internal/logging"
)

// LLMClient implements invoke.BackendClient, dispatching each call over
// whichever convention the request already encodes: a populated Messages
// slice means OpenAI-compatible/native, a populated System field means
// Ollama-compatible.
type LLMClient struct {
	apiKey string
	http   *resty.Client
	log    *logging.Logger
}

// NewLLMClient constructs an LLMClient. apiKey may be empty for
// unauthenticated native endpoints.
func NewLLMClient(apiKey string) *LLMClient {
	return &LLMClient{
		apiKey: apiKey,
		http:   resty.New().SetTimeout(300_000_000_000),
		log:    logging.NewLogger("llm-client"),
	}
}

// Invoke sends req to endpoint and returns the generated text.
func (c *LLMClient) Invoke(ctx context.Context, endpoint string, req invoke.Request) (string, error) {
	if len(req.Messages) > 0 {
		return c.invokeOpenAICompatible(ctx, endpoint, req)
	}
	return c.invokeOllamaCompatible(ctx, endpoint, req)
}

func (c *LLMClient) invokeOpenAICompatible(ctx context.Context, endpoint string, req invoke.Request) (string, error) {
	config := openai.DefaultConfig(c.apiKey)
	config.BaseURL = endpoint
	client := openai.NewClientWithConfig(config)

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	ccReq := openai.ChatCompletionRequest{Messages: messages}
	if req.Temperature != nil {
		ccReq.Temperature = float32(*req.Temperature)
	}
	if req.TopP != nil {
		ccReq.TopP = float32(*req.TopP)
	}
	if req.MaxTokens != nil {
		ccReq.MaxTokens = *req.MaxTokens
	}

	resp, err := client.CreateChatCompletion(ctx, ccReq)
	if err != nil {
		return "", fmt.Errorf("openai-compatible invocation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai-compatible invocation returned no choices")
	}
	c.log.Debug("openai-compatible invocation complete", "endpoint", endpoint, "model", resp.Model)
	return resp.Choices[0].Message.Content, nil
}

type ollamaRequest struct {
	Prompt      string   `json:"prompt"`
	System      string   `json:"system,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	Stream      bool     `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func (c *LLMClient) invokeOllamaCompatible(ctx context.Context, endpoint string, req invoke.Request) (string, error) {
	var out ollamaResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(ollamaRequest{
			Prompt:      req.Prompt,
			System:      req.System,
			Temperature: req.Temperature,
			TopP:        req.TopP,
			TopK:        req.TopK,
		}).
		SetResult(&out).
		Post(endpoint + "/api/generate")
	if err != nil {
		return "", fmt.Errorf("ollama-compatible invocation failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("ollama-compatible endpoint returned status %d", resp.StatusCode())
	}
	return out.Response, nil
}
