package pageclass

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/idp-retrieval-platform/internal/idp/minipdf"
	"github.com/adverant/idp-retrieval-platform/internal/logging"
	"github.com/adverant/idp-retrieval-platform/internal/objectstore"
)

func newTestStage(t *testing.T) (*Stage, *objectstore.Gateway) {
	t.Helper()
	gw := objectstore.New(objectstore.NewMemoryBackend(), logging.NewLogger("pageclass-test"))
	return New(gw, logging.NewLogger("pageclass-test"), "pdf-pages/", "text-pages/", "scan-pages/"), gw
}

func TestHandleRoutesTextBearingPageToTextPages(t *testing.T) {
	stage, gw := newTestStage(t)
	ctx := context.Background()

	body := minipdf.WriteSinglePage("hello world")
	require.NoError(t, gw.Put(ctx, "bucket", "pdf-pages/doc/page_001.pdf", body, "application/pdf"))
	require.NoError(t, stage.Handle(ctx, "bucket", "pdf-pages/doc/page_001.pdf"))

	_, err := gw.Get(ctx, "bucket", "text-pages/doc/page_001.pdf")
	assert.NoError(t, err)
	_, err = gw.Get(ctx, "bucket", "scan-pages/doc/page_001.pdf")
	assert.Error(t, err)
}

func TestHandleRoutesEmptyPageToScanPages(t *testing.T) {
	stage, gw := newTestStage(t)
	ctx := context.Background()

	body := minipdf.WriteSinglePage("")
	require.NoError(t, gw.Put(ctx, "bucket", "pdf-pages/doc/page_001.pdf", body, "application/pdf"))
	require.NoError(t, stage.Handle(ctx, "bucket", "pdf-pages/doc/page_001.pdf"))

	_, err := gw.Get(ctx, "bucket", "scan-pages/doc/page_001.pdf")
	assert.NoError(t, err)
	_, err = gw.Get(ctx, "bucket", "text-pages/doc/page_001.pdf")
	assert.Error(t, err)
}

func TestHandleForceOCRRoutesEverythingToScanPages(t *testing.T) {
	stage, gw := newTestStage(t)
	stage.ForceOCR = true
	ctx := context.Background()

	body := minipdf.WriteSinglePage("hello world")
	require.NoError(t, gw.Put(ctx, "bucket", "pdf-pages/doc/page_001.pdf", body, "application/pdf"))
	require.NoError(t, stage.Handle(ctx, "bucket", "pdf-pages/doc/page_001.pdf"))

	_, err := gw.Get(ctx, "bucket", "scan-pages/doc/page_001.pdf")
	assert.NoError(t, err)
}

func TestMatchesExcludesManifest(t *testing.T) {
	stage, _ := newTestStage(t)
	assert.True(t, stage.Matches("bucket", "pdf-pages/doc/page_001.pdf"))
	assert.False(t, stage.Matches("bucket", "pdf-pages/doc/manifest.json"))
}
