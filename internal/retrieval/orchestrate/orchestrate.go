// Package orchestrate implements the Retrieval Orchestrator (C19): the
// embed-if-absent -> search -> optional rerank -> context-concatenate ->
// forward-to-router pipeline. Grounded on retrieval_lambda.py's step
// sequence and its "no partial context leak on error" rule.
package orchestrate

import (
	"context"
	"strings"

	"github.com/adverant/idp-retrieval-platform/internal/retrieval/rerank"
	"github.com/adverant/idp-retrieval-platform/internal/retrieval/vectorstore"
)

// Embedder computes a single query embedding.
type Embedder interface {
	EmbedQuery(ctx context.Context, model, query string) ([]float32, error)
}

// Router forwards a query plus retrieved context onward. It mirrors the
// LLM Router's enqueue-only contract (C20): Dispatch never blocks on
// invocation, it only returns a queued acknowledgement.
type Router interface {
	Dispatch(ctx context.Context, req RouterRequest) (RouterAck, error)
}

// RouterRequest is forwarded to the LLM Router with the retrieved context
// appended.
type RouterRequest struct {
	Prompt  string
	Backend string
	Context string
}

// RouterAck is the LLM Router's "202 queued" acknowledgement.
type RouterAck struct {
	Queued bool   `json:"queued"`
	TaskID string `json:"taskId,omitempty"`
}

// Request is a single retrieval-orchestration call.
type Request struct {
	Query          string              `json:"query"`
	Embedding      []float32           `json:"embedding,omitempty"` // if non-nil, step 1 (embed) is skipped
	EmbeddingModel string              `json:"embeddingModel,omitempty"`
	StorageMode    string              `json:"storageMode"`
	Collection     string              `json:"collection"`
	TopK           int                 `json:"topK"`
	Filters        vectorstore.Filters `json:"filters,omitempty"`
	Rerank         bool                `json:"rerank"`
	Backend        string              `json:"backend,omitempty"`
}

// Result is the orchestrator's output; Error is set (and Context/Ack left
// zero) on any step failure, mirroring retrieval_lambda.py's "no partial
// context leak" rule.
type Result struct {
	Context string   `json:"context,omitempty"`
	Ack     RouterAck `json:"ack"`
	Error   string   `json:"error,omitempty"`
}

// Orchestrator is the C19 component.
type Orchestrator struct {
	embedder Embedder
	vectors  *vectorstore.Proxy
	reranker *rerank.Reranker
	router   Router
}

// New constructs an Orchestrator. reranker may be nil: step 3 ("if a
// reranker is configured AND query present, rerank") is then skipped.
func New(embedder Embedder, vectors *vectorstore.Proxy, reranker *rerank.Reranker, router Router) *Orchestrator {
	return &Orchestrator{embedder: embedder, vectors: vectors, reranker: reranker, router: router}
}

// Run executes the full retrieval-orchestration pipeline.
func (o *Orchestrator) Run(ctx context.Context, req Request) Result {
	embedding := req.Embedding
	if embedding == nil {
		e, err := o.embedder.EmbedQuery(ctx, req.EmbeddingModel, req.Query)
		if err != nil {
			return Result{Error: err.Error()}
		}
		embedding = e
	}

	matches, err := o.vectors.Search(ctx, req.StorageMode, req.Collection, embedding, req.TopK, req.Filters)
	if err != nil {
		return Result{Error: err.Error()}
	}

	rerankMatches := toRerankMatches(matches)
	if o.reranker != nil && req.Rerank && req.Query != "" {
		rerankMatches = o.reranker.Rerank(ctx, req.Query, rerankMatches, req.TopK)
	}

	retrievedContext := concatenateText(rerankMatches)

	ack, err := o.router.Dispatch(ctx, RouterRequest{Prompt: req.Query, Backend: req.Backend, Context: retrievedContext})
	if err != nil {
		return Result{Error: err.Error()}
	}

	return Result{Context: retrievedContext, Ack: ack}
}

func toRerankMatches(matches []vectorstore.Match) []rerank.Match {
	out := make([]rerank.Match, len(matches))
	for i, m := range matches {
		out[i] = rerank.Match{Match: m, Text: stringField(m.Metadata, "text")}
	}
	return out
}

func stringField(meta map[string]interface{}, key string) string {
	if meta == nil {
		return ""
	}
	if v, ok := meta[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// concatenateText joins each match's metadata.text with single spaces,
// before handing the concatenated context to the router.
func concatenateText(matches []rerank.Match) string {
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Text != "" {
			parts = append(parts, m.Text)
		}
	}
	return strings.Join(parts, " ")
}
