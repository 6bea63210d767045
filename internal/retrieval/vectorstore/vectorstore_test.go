package vectorstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	matches []Match
	dropped []string
	created []string
}

func (s *stubBackend) CreateCollection(_ context.Context, name string, _ int) error {
	s.created = append(s.created, name)
	return nil
}
func (s *stubBackend) DropCollection(_ context.Context, name string) error {
	s.dropped = append(s.dropped, name)
	return nil
}
func (s *stubBackend) Insert(_ context.Context, _ string, items []Item, _ bool) ([]string, error) {
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = "id"
	}
	return ids, nil
}
func (s *stubBackend) Update(_ context.Context, _ string, _ []Item) error { return nil }
func (s *stubBackend) Delete(_ context.Context, _ string, _ []string) error { return nil }
func (s *stubBackend) Search(_ context.Context, _ string, _ []float32, _ int) ([]Match, error) {
	return s.matches, nil
}

type stubTTL struct {
	registered map[string]time.Time
	removed    []string
}

func (t *stubTTL) Register(_ context.Context, collection string, expiresAt time.Time) error {
	if t.registered == nil {
		t.registered = map[string]time.Time{}
	}
	t.registered[collection] = expiresAt
	return nil
}
func (t *stubTTL) Remove(_ context.Context, collection string) error {
	t.removed = append(t.removed, collection)
	return nil
}
func (t *stubTTL) List(_ context.Context) ([]Registration, error) { return nil, nil }

func TestProxyFiltersByDepartment(t *testing.T) {
	backend := &stubBackend{matches: []Match{
		{ID: "1", Metadata: map[string]interface{}{"department": "legal"}},
		{ID: "2", Metadata: map[string]interface{}{"department": "hr"}},
	}}
	p := New(backend, nil, nil)

	matches, err := p.Search(context.Background(), "", "kb_docs", nil, 10, Filters{Department: "legal"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "1", matches[0].ID)
}

func TestProxyFiltersByEntitiesIntersection(t *testing.T) {
	backend := &stubBackend{matches: []Match{
		{ID: "1", Metadata: map[string]interface{}{"entities": []string{"PERSON", "ORG"}}},
		{ID: "2", Metadata: map[string]interface{}{"entities": []string{"EMAIL"}}},
	}}
	p := New(backend, nil, nil)

	matches, err := p.Search(context.Background(), "", "kb_docs", nil, 10, Filters{Entities: []string{"ORG"}})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "1", matches[0].ID)
}

func TestProxyTruncatesToTopKAfterFiltering(t *testing.T) {
	backend := &stubBackend{matches: []Match{
		{ID: "1", Metadata: map[string]interface{}{"department": "legal"}},
		{ID: "2", Metadata: map[string]interface{}{"department": "legal"}},
		{ID: "3", Metadata: map[string]interface{}{"department": "legal"}},
	}}
	p := New(backend, nil, nil)

	matches, err := p.Search(context.Background(), "", "kb_docs", nil, 2, Filters{Department: "legal"})
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestProxyRegistersEphemeralCollectionTTL(t *testing.T) {
	backend := &stubBackend{}
	ttl := &stubTTL{}
	p := New(backend, nil, ttl)

	expires := time.Unix(1000, 0)
	require.NoError(t, p.CreateCollection(context.Background(), "", "kb_temp", 384, true, &expires))
	assert.Equal(t, expires, ttl.registered["kb_temp"])
}

func TestProxyDropRemovesTTLRegistration(t *testing.T) {
	backend := &stubBackend{}
	ttl := &stubTTL{}
	p := New(backend, nil, ttl)

	require.NoError(t, p.DropCollection(context.Background(), "", "kb_temp"))
	assert.Contains(t, ttl.removed, "kb_temp")
}

func TestProxyUnknownStorageModeErrors(t *testing.T) {
	backend := &stubBackend{}
	p := New(backend, nil, nil)

	_, err := p.Search(context.Background(), "nonexistent", "kb_docs", nil, 10, Filters{})
	assert.Error(t, err)
}

func TestProxyHybridSearchRequiresConfiguredBackend(t *testing.T) {
	backend := &stubBackend{}
	p := New(backend, nil, nil)

	_, err := p.HybridSearch(context.Background(), "kb_docs", nil, "keywords", 10, Filters{})
	assert.Error(t, err)
}
