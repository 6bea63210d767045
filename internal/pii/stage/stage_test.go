package stage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/idp-retrieval-platform/internal/idp/combine"
	"github.com/adverant/idp-retrieval-platform/internal/idp/ocrextract"
	"github.com/adverant/idp-retrieval-platform/internal/logging"
	"github.com/adverant/idp-retrieval-platform/internal/objectstore"
	"github.com/adverant/idp-retrieval-platform/internal/pii/detect"
	"github.com/adverant/idp-retrieval-platform/internal/pii/redact"
)

type recordingPainter struct {
	calledWithBoxes []redact.Box
}

func (p *recordingPainter) Paint(_ context.Context, source []byte, boxes []redact.Box) ([]byte, error) {
	p.calledWithBoxes = boxes
	return append([]byte("redacted:"), source...), nil
}

func putHOCRDoc(t *testing.T, ctx context.Context, gw *objectstore.Gateway, bucket, hocrPrefix, docID string, pages []ocrextract.HOCRPage) {
	t.Helper()
	body, err := json.Marshal(combine.HOCRDocument{DocumentID: docID, Pages: pages})
	require.NoError(t, err)
	require.NoError(t, gw.Put(ctx, bucket, hocrPrefix+docID+".json", body, "application/json"))
}

func TestProcessSkipsWhenNoHOCR(t *testing.T) {
	ctx := context.Background()
	backend := objectstore.NewMemoryBackend()
	gw := objectstore.New(backend, logging.NewLogger("test"))
	painter := &recordingPainter{}
	s := New(gw, nil, logging.NewLogger("test"), detect.New(nil), redact.New(painter), nil, "text-docs/", "hocr/", "raw/", "redacted/")

	err := s.Process(ctx, "bucket", "doc-1")
	require.NoError(t, err)
	assert.Nil(t, painter.calledWithBoxes)
}

func TestProcessRedactsDetectedEntity(t *testing.T) {
	ctx := context.Background()
	backend := objectstore.NewMemoryBackend()
	gw := objectstore.New(backend, logging.NewLogger("test"))
	painter := &recordingPainter{}
	s := New(gw, nil, logging.NewLogger("test"), detect.New(nil), redact.New(painter), nil, "text-docs/", "hocr/", "raw/", "redacted/")

	pages := []ocrextract.HOCRPage{
		{
			PageNumber: 1,
			Words: []ocrextract.Word{
				{Text: "ssn", BBox: [4]int{0, 0, 10, 10}},
				{Text: "123-45-6789", BBox: [4]int{11, 0, 40, 10}},
			},
		},
	}
	putHOCRDoc(t, ctx, gw, "bucket", "hocr/", "doc-1", pages)
	require.NoError(t, gw.Put(ctx, "bucket", "raw/doc-1", []byte("original-bytes"), "application/octet-stream"))

	err := s.Process(ctx, "bucket", "doc-1")
	require.NoError(t, err)

	require.Len(t, painter.calledWithBoxes, 1)
	assert.Equal(t, 1, painter.calledWithBoxes[0].Page)

	out, err := gw.Get(ctx, "bucket", "redacted/doc-1")
	require.NoError(t, err)
	assert.Equal(t, "redacted:original-bytes", string(out))
}

func TestProcessNoOpWhenNoEntitiesDetected(t *testing.T) {
	ctx := context.Background()
	backend := objectstore.NewMemoryBackend()
	gw := objectstore.New(backend, logging.NewLogger("test"))
	painter := &recordingPainter{}
	s := New(gw, nil, logging.NewLogger("test"), detect.New(nil), redact.New(painter), nil, "text-docs/", "hocr/", "raw/", "redacted/")

	pages := []ocrextract.HOCRPage{
		{PageNumber: 1, Words: []ocrextract.Word{{Text: "hello", BBox: [4]int{0, 0, 10, 10}}}},
	}
	putHOCRDoc(t, ctx, gw, "bucket", "hocr/", "doc-2", pages)

	err := s.Process(ctx, "bucket", "doc-2")
	require.NoError(t, err)
	assert.Nil(t, painter.calledWithBoxes)

	_, err = gw.Get(ctx, "bucket", "redacted/doc-2")
	assert.True(t, objectstore.IsNotFound(err))
}
