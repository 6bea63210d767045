package ocrextract

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/idp-retrieval-platform/internal/logging"
	"github.com/adverant/idp-retrieval-platform/internal/objectstore"
)

type stubEngine struct {
	name  string
	words []Word
	conf  float64
	err   error
}

func (s *stubEngine) Name() string { return s.name }

func (s *stubEngine) Recognize(_ context.Context, _ []byte) ([]Word, float64, error) {
	return s.words, s.conf, s.err
}

func TestCascadeEscalatesOnLowConfidence(t *testing.T) {
	tier1 := &stubEngine{name: "cheap", words: []Word{{Text: "maybe"}}, conf: 0.5}
	tier2 := &stubEngine{name: "accurate", words: []Word{{Text: "Body"}}, conf: 0.95}
	c := NewCascade(logging.NewLogger("test"), tier1, tier2)

	words, conf, engine, err := c.recognize(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "accurate", engine)
	assert.Equal(t, 0.95, conf)
	assert.Equal(t, "Body", words[0].Text)
}

func TestCascadeAcceptsFirstTierAboveThreshold(t *testing.T) {
	tier1 := &stubEngine{name: "cheap", words: []Word{{Text: "Body"}}, conf: 0.9}
	tier2 := &stubEngine{name: "accurate", words: []Word{{Text: "never-reached"}}, conf: 0.99}
	c := NewCascade(logging.NewLogger("test"), tier1, tier2)

	_, _, engine, err := c.recognize(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "cheap", engine)
}

func TestHandleWritesMarkdownAndHOCR(t *testing.T) {
	backend := objectstore.NewMemoryBackend()
	gw := objectstore.New(backend, logging.NewLogger("test"))
	ctx := context.Background()

	require.NoError(t, gw.Put(ctx, "bucket", "scan-pages/doc-1/page_002.pdf", []byte("rasterized"), "application/pdf"))

	engine := &stubEngine{name: "tesseract", conf: 0.95, words: []Word{
		{Text: "Body", BBox: [4]int{0, 0, 40, 14}},
	}}
	cascade := NewCascade(logging.NewLogger("test"), engine)
	stage := New(gw, logging.NewLogger("test"), "scan-pages/", "hocr/", cascade)

	require.NoError(t, stage.Handle(ctx, "bucket", "scan-pages/doc-1/page_002.pdf"))

	md, err := gw.Get(ctx, "bucket", "scan-pages/doc-1/page_002.md")
	require.NoError(t, err)
	assert.Contains(t, string(md), "## Page 2")
	assert.Contains(t, string(md), "Body")

	hocr, err := gw.Get(ctx, "bucket", "hocr/doc-1/page_002.json")
	require.NoError(t, err)
	var page HOCRPage
	require.NoError(t, json.Unmarshal(hocr, &page))
	assert.Equal(t, 2, page.PageNumber)
	assert.Equal(t, "Body", page.Words[0].Text)
}

func TestZeroPad(t *testing.T) {
	assert.Equal(t, "001", zeroPad(1))
	assert.Equal(t, "042", zeroPad(42))
	assert.Equal(t, "1000", zeroPad(1000))
}

func TestDocumentIDFromKey(t *testing.T) {
	assert.Equal(t, "doc-1", documentIDFromKey("scan-pages/doc-1/page_001.pdf", "scan-pages/"))
}
