package combine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/idp-retrieval-platform/internal/idp/splitter"
	"github.com/adverant/idp-retrieval-platform/internal/logging"
	"github.com/adverant/idp-retrieval-platform/internal/objectstore"
)

func putManifest(t *testing.T, ctx context.Context, gw *objectstore.Gateway, bucket, pdfPagePrefix, docID string, pages int) {
	t.Helper()
	m := splitter.Manifest{DocumentID: docID, Pages: pages}
	body, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, gw.Put(ctx, bucket, pdfPagePrefix+docID+"/manifest.json", body, "application/json"))
}

func TestCombineSkipsWithoutManifest(t *testing.T) {
	backend := objectstore.NewMemoryBackend()
	gw := objectstore.New(backend, logging.NewLogger("test"))
	s := New(gw, nil, logging.NewLogger("test"), "pdf-pages/", "text-pages/", "scan-pages/", "hocr/", "text-docs/")

	err := s.Combine(context.Background(), "bucket", "doc-missing")
	require.NoError(t, err)

	_, err = gw.Get(context.Background(), "bucket", "text-docs/doc-missing.json")
	assert.True(t, objectstore.IsNotFound(err))
}

func TestCombineWaitsForMissingPages(t *testing.T) {
	ctx := context.Background()
	backend := objectstore.NewMemoryBackend()
	gw := objectstore.New(backend, logging.NewLogger("test"))
	s := New(gw, nil, logging.NewLogger("test"), "pdf-pages/", "text-pages/", "scan-pages/", "hocr/", "text-docs/")

	putManifest(t, ctx, gw, "bucket", "pdf-pages/", "doc-1", 2)
	require.NoError(t, gw.Put(ctx, "bucket", "text-pages/doc-1/page_001.md", []byte("## Page 1\n\nIntro"), "text/markdown"))
	// page 2 missing

	err := s.Combine(ctx, "bucket", "doc-1")
	require.NoError(t, err)

	_, err = gw.Get(ctx, "bucket", "text-docs/doc-1.json")
	assert.True(t, objectstore.IsNotFound(err))
}

func TestCombineJoinsMixedTextAndScanPages(t *testing.T) {
	ctx := context.Background()
	backend := objectstore.NewMemoryBackend()
	gw := objectstore.New(backend, logging.NewLogger("test"))
	s := New(gw, nil, logging.NewLogger("test"), "pdf-pages/", "text-pages/", "scan-pages/", "hocr/", "text-docs/")

	putManifest(t, ctx, gw, "bucket", "pdf-pages/", "doc-1", 2)
	require.NoError(t, gw.Put(ctx, "bucket", "text-pages/doc-1/page_001.md", []byte("## Page 1\n\nIntro"), "text/markdown"))
	require.NoError(t, gw.Put(ctx, "bucket", "scan-pages/doc-1/page_002.md", []byte("## Page 2\n\nBody"), "text/markdown"))

	require.NoError(t, s.Combine(ctx, "bucket", "doc-1"))

	out, err := gw.Get(ctx, "bucket", "text-docs/doc-1.json")
	require.NoError(t, err)
	var doc DocumentText
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, 2, doc.PageCount)
	assert.Contains(t, doc.Pages[0], "Intro")
	assert.Contains(t, doc.Pages[1], "Body")
}

func TestCombineIsIdempotent(t *testing.T) {
	ctx := context.Background()
	backend := objectstore.NewMemoryBackend()
	gw := objectstore.New(backend, logging.NewLogger("test"))
	s := New(gw, nil, logging.NewLogger("test"), "pdf-pages/", "text-pages/", "scan-pages/", "hocr/", "text-docs/")

	putManifest(t, ctx, gw, "bucket", "pdf-pages/", "doc-1", 1)
	require.NoError(t, gw.Put(ctx, "bucket", "text-pages/doc-1/page_001.md", []byte("## Page 1\n\nOnly"), "text/markdown"))

	require.NoError(t, s.Combine(ctx, "bucket", "doc-1"))
	first, err := gw.Get(ctx, "bucket", "text-docs/doc-1.json")
	require.NoError(t, err)

	require.NoError(t, s.Combine(ctx, "bucket", "doc-1"))
	second, err := gw.Get(ctx, "bucket", "text-docs/doc-1.json")
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}
