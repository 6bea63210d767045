// Package embed implements the Embedder (C15): per-doctype model
// selection over a pluggable backend, batched, metadata carried through.
// Grounded on embedding_lambda.py's model-map dispatch.
package embed

import (
	"context"

	pipeerrors "github.com/adverant/idp-retrieval-platform/internal/errors"
	"github.com/adverant/idp-retrieval-platform/internal/retrieval/chunk"
)

// Backend embeds a batch of texts with a named model. Abstract backends
// (sbert-equivalent, openai-equivalent, cohere-equivalent) are configured,
// swappable collaborators.
type Backend interface {
	Name() string
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// Embedder is the C15 component.
type Embedder struct {
	backend Backend
	// ModelByDocType maps chunk metadata docType to an embedding model
	// name; DefaultModel is used when no entry matches.
	ModelByDocType map[string]string
	DefaultModel   string
}

// New constructs an Embedder over backend.
func New(backend Backend, defaultModel string) *Embedder {
	return &Embedder{backend: backend, ModelByDocType: map[string]string{}, DefaultModel: defaultModel}
}

// Embed embeds every chunk, grouping by the model its docType selects so
// each backend call is a single batch per model. On any backend error the
// whole batch fails.
func (e *Embedder) Embed(ctx context.Context, chunks []chunk.Chunk) ([][]float32, []chunk.Metadata, error) {
	if len(chunks) == 0 {
		return nil, nil, nil
	}

	byModel := make(map[string][]int)
	for i, c := range chunks {
		model := e.modelFor(c.Metadata.DocType)
		byModel[model] = append(byModel[model], i)
	}

	embeddings := make([][]float32, len(chunks))
	metadatas := make([]chunk.Metadata, len(chunks))
	for i, c := range chunks {
		metadatas[i] = c.Metadata
	}

	for model, indices := range byModel {
		texts := make([]string, len(indices))
		for i, idx := range indices {
			texts[i] = chunks[idx].Text
		}
		vectors, err := e.backend.Embed(ctx, model, texts)
		if err != nil {
			return nil, nil, &pipeerrors.ProcessingError{
				Code:    pipeerrors.ErrorEmbedFailed,
				Message: "embedding backend failed for model " + model,
				Cause:   err,
			}
		}
		if len(vectors) != len(indices) {
			return nil, nil, &pipeerrors.ProcessingError{
				Code:    pipeerrors.ErrorEmbedFailed,
				Message: "embedding backend returned mismatched vector count",
			}
		}
		for i, idx := range indices {
			embeddings[idx] = vectors[i]
		}
	}

	return embeddings, metadatas, nil
}

// EmbedQuery embeds a single query string with model (DefaultModel if
// empty), satisfying the Retrieval Orchestrator's (C19) Embedder contract.
func (e *Embedder) EmbedQuery(ctx context.Context, model, query string) ([]float32, error) {
	if model == "" {
		model = e.DefaultModel
	}
	vectors, err := e.backend.Embed(ctx, model, []string{query})
	if err != nil {
		return nil, &pipeerrors.ProcessingError{
			Code:    pipeerrors.ErrorEmbedFailed,
			Message: "embedding backend failed for model " + model,
			Cause:   err,
		}
	}
	if len(vectors) != 1 {
		return nil, &pipeerrors.ProcessingError{
			Code:    pipeerrors.ErrorEmbedFailed,
			Message: "embedding backend returned mismatched vector count",
		}
	}
	return vectors[0], nil
}

func (e *Embedder) modelFor(docType string) string {
	if model, ok := e.ModelByDocType[docType]; ok {
		return model
	}
	return e.DefaultModel
}
