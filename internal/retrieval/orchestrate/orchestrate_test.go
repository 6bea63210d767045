package orchestrate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/idp-retrieval-platform/internal/retrieval/vectorstore"
)

type stubEmbedder struct {
	embedding []float32
	err       error
}

func (s *stubEmbedder) EmbedQuery(_ context.Context, _, _ string) ([]float32, error) {
	return s.embedding, s.err
}

type stubVectorBackend struct {
	matches []vectorstore.Match
}

func (s *stubVectorBackend) CreateCollection(context.Context, string, int) error { return nil }
func (s *stubVectorBackend) DropCollection(context.Context, string) error       { return nil }
func (s *stubVectorBackend) Insert(context.Context, string, []vectorstore.Item, bool) ([]string, error) {
	return nil, nil
}
func (s *stubVectorBackend) Update(context.Context, string, []vectorstore.Item) error { return nil }
func (s *stubVectorBackend) Delete(context.Context, string, []string) error          { return nil }
func (s *stubVectorBackend) Search(context.Context, string, []float32, int) ([]vectorstore.Match, error) {
	return s.matches, nil
}

type stubRouter struct {
	ack RouterAck
	err error
	got RouterRequest
}

func (s *stubRouter) Dispatch(_ context.Context, req RouterRequest) (RouterAck, error) {
	s.got = req
	return s.ack, s.err
}

func TestRunConcatenatesContextAndDispatches(t *testing.T) {
	backend := &stubVectorBackend{matches: []vectorstore.Match{
		{ID: "1", Metadata: map[string]interface{}{"text": "Alpha"}},
		{ID: "2", Metadata: map[string]interface{}{"text": "Beta"}},
	}}
	proxy := vectorstore.New(backend, nil, nil)
	router := &stubRouter{ack: RouterAck{Queued: true, TaskID: "t1"}}
	o := New(&stubEmbedder{embedding: []float32{0.1}}, proxy, nil, router)

	result := o.Run(context.Background(), Request{Query: "q", TopK: 10})
	require.Empty(t, result.Error)
	assert.Equal(t, "Alpha Beta", result.Context)
	assert.Equal(t, "t1", result.Ack.TaskID)
	assert.Equal(t, "Alpha Beta", router.got.Context)
}

func TestRunSkipsEmbeddingWhenProvided(t *testing.T) {
	backend := &stubVectorBackend{}
	proxy := vectorstore.New(backend, nil, nil)
	embedder := &stubEmbedder{err: errors.New("should not be called")}
	router := &stubRouter{}
	o := New(embedder, proxy, nil, router)

	result := o.Run(context.Background(), Request{Embedding: []float32{0.5}, TopK: 5})
	assert.Empty(t, result.Error)
}

func TestRunReturnsErrorOnEmbedFailureWithNoContextLeak(t *testing.T) {
	proxy := vectorstore.New(&stubVectorBackend{}, nil, nil)
	embedder := &stubEmbedder{err: errors.New("embed down")}
	router := &stubRouter{}
	o := New(embedder, proxy, nil, router)

	result := o.Run(context.Background(), Request{Query: "q"})
	assert.NotEmpty(t, result.Error)
	assert.Empty(t, result.Context)
}

func TestRunReturnsErrorOnRouterFailure(t *testing.T) {
	backend := &stubVectorBackend{matches: []vectorstore.Match{
		{ID: "1", Metadata: map[string]interface{}{"text": "Alpha"}},
	}}
	proxy := vectorstore.New(backend, nil, nil)
	router := &stubRouter{err: errors.New("router down")}
	o := New(&stubEmbedder{embedding: []float32{0.1}}, proxy, nil, router)

	result := o.Run(context.Background(), Request{Query: "q", TopK: 10})
	assert.NotEmpty(t, result.Error)
	assert.Empty(t, result.Context)
}
