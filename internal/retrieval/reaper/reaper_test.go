package reaper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/idp-retrieval-platform/internal/logging"
	"github.com/adverant/idp-retrieval-platform/internal/retrieval/vectorstore"
)

type stubBackend struct {
	dropped []string
	dropErr error
}

func (s *stubBackend) CreateCollection(context.Context, string, int) error { return nil }
func (s *stubBackend) DropCollection(_ context.Context, name string) error {
	s.dropped = append(s.dropped, name)
	return s.dropErr
}
func (s *stubBackend) Insert(context.Context, string, []vectorstore.Item, bool) ([]string, error) {
	return nil, nil
}
func (s *stubBackend) Update(context.Context, string, []vectorstore.Item) error { return nil }
func (s *stubBackend) Delete(context.Context, string, []string) error          { return nil }
func (s *stubBackend) Search(context.Context, string, []float32, int) ([]vectorstore.Match, error) {
	return nil, nil
}

type stubTTL struct {
	regs    []vectorstore.Registration
	removed []string
}

func (t *stubTTL) Register(context.Context, string, time.Time) error { return nil }
func (t *stubTTL) Remove(_ context.Context, collection string) error {
	t.removed = append(t.removed, collection)
	return nil
}
func (t *stubTTL) List(context.Context) ([]vectorstore.Registration, error) { return t.regs, nil }

func TestSweepDropsExpiredCollections(t *testing.T) {
	backend := &stubBackend{}
	ttl := &stubTTL{regs: []vectorstore.Registration{
		{Collection: "kb_expired", ExpiresAt: time.Unix(100, 0)},
		{Collection: "kb_fresh", ExpiresAt: time.Unix(10000, 0)},
	}}
	r := New(backend, ttl, logging.NewLogger("test"), func() time.Time { return time.Unix(5000, 0) })

	require.NoError(t, r.Sweep(context.Background()))
	assert.Equal(t, []string{"kb_expired"}, backend.dropped)
	assert.Equal(t, []string{"kb_expired"}, ttl.removed)
}

func TestSweepRemovesRegistrationEvenWhenBackendAlreadyDroppedIt(t *testing.T) {
	// QdrantBackend.DropCollection itself tolerates an already-gone
	// collection by returning nil (see isQdrantNotFound); Sweep should
	// then still remove the stale TTL registration.
	backend := &stubBackend{}
	ttl := &stubTTL{regs: []vectorstore.Registration{
		{Collection: "kb_gone", ExpiresAt: time.Unix(1, 0)},
	}}
	r := New(backend, ttl, logging.NewLogger("test"), func() time.Time { return time.Unix(2, 0) })

	require.NoError(t, r.Sweep(context.Background()))
	assert.Equal(t, []string{"kb_gone"}, ttl.removed)
}

func TestSweepSkipsUnexpiredCollections(t *testing.T) {
	backend := &stubBackend{}
	ttl := &stubTTL{regs: []vectorstore.Registration{
		{Collection: "kb_fresh", ExpiresAt: time.Unix(10000, 0)},
	}}
	r := New(backend, ttl, logging.NewLogger("test"), func() time.Time { return time.Unix(1, 0) })

	require.NoError(t, r.Sweep(context.Background()))
	assert.Empty(t, backend.dropped)
}
