package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/idp-retrieval-platform/internal/retrieval/chunk"
)

type stubBackend struct {
	name  string
	calls map[string][]string
	err   error
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) Embed(_ context.Context, model string, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.calls == nil {
		s.calls = map[string][]string{}
	}
	s.calls[model] = texts
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i]))}
	}
	return out, nil
}

func TestEmbedSelectsModelPerDocType(t *testing.T) {
	backend := &stubBackend{name: "stub"}
	e := New(backend, "default-model")
	e.ModelByDocType["legal"] = "legal-model"

	chunks := []chunk.Chunk{
		{Text: "a", Metadata: chunk.Metadata{DocType: "legal"}},
		{Text: "bb", Metadata: chunk.Metadata{DocType: "other"}},
	}

	embeddings, metadatas, err := e.Embed(context.Background(), chunks)
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	require.Len(t, metadatas, 2)

	assert.Contains(t, backend.calls["legal-model"], "a")
	assert.Contains(t, backend.calls["default-model"], "bb")
}

func TestEmbedFailsBatchOnBackendError(t *testing.T) {
	backend := &stubBackend{name: "stub", err: assert.AnError}
	e := New(backend, "default-model")
	_, _, err := e.Embed(context.Background(), []chunk.Chunk{{Text: "x"}})
	assert.Error(t, err)
}

func TestEmbedEmptyInput(t *testing.T) {
	backend := &stubBackend{name: "stub"}
	e := New(backend, "default-model")
	embeddings, metadatas, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, embeddings)
	assert.Nil(t, metadatas)
}

func TestEmbedQueryUsesDefaultModelWhenUnset(t *testing.T) {
	backend := &stubBackend{name: "stub"}
	e := New(backend, "default-model")

	vec, err := e.EmbedQuery(context.Background(), "", "hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, backend.calls["default-model"])
	assert.Equal(t, []float32{5}, vec)
}

func TestEmbedQueryPropagatesBackendError(t *testing.T) {
	backend := &stubBackend{name: "stub", err: assert.AnError}
	e := New(backend, "default-model")

	_, err := e.EmbedQuery(context.Background(), "", "hello")
	assert.Error(t, err)
}
