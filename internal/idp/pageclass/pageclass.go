// Package pageclass implements the Page Classifier (C7): per-page
// has-text check routes each split page to text-pages or scan-pages,
// grounded on services/idp/4-pdf-page-classifier/app.py's `_page_has_text`
// / `_copy_page`.
package pageclass

import (
	"bytes"
	"context"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/adverant/idp-retrieval-platform/internal/dispatch"
	"github.com/adverant/idp-retrieval-platform/internal/logging"
	"github.com/adverant/idp-retrieval-platform/internal/objectstore"
)

// Stage is the C7 component.
type Stage struct {
	gw             *objectstore.Gateway
	log            *logging.Logger
	pdfPagePrefix  string
	textPagePrefix string
	scanPagePrefix string
	// ForceOCR routes every page to scan-pages regardless of embedded
	// text.
	ForceOCR bool
}

// New constructs a Page Classifier Stage.
func New(gw *objectstore.Gateway, log *logging.Logger, pdfPagePrefix, textPagePrefix, scanPagePrefix string) *Stage {
	return &Stage{
		gw:             gw,
		log:            log,
		pdfPagePrefix:  dispatch.NormalizePrefix(pdfPagePrefix),
		textPagePrefix: dispatch.NormalizePrefix(textPagePrefix),
		scanPagePrefix: dispatch.NormalizePrefix(scanPagePrefix),
	}
}

func (s *Stage) Name() string { return "page-classifier" }

func (s *Stage) Matches(_, key string) bool {
	return strings.HasPrefix(key, s.pdfPagePrefix) &&
		strings.HasSuffix(strings.ToLower(key), ".pdf") &&
		!strings.HasSuffix(key, "manifest.json")
}

// Handle copies a split page to text-pages or scan-pages, preserving its
// relative key (documentId/page_NNN.pdf).
func (s *Stage) Handle(ctx context.Context, bucket, key string) error {
	body, err := s.gw.Get(ctx, bucket, key)
	if err != nil {
		return err
	}

	rel := strings.TrimPrefix(key, s.pdfPagePrefix)

	hasText := !s.ForceOCR && pageHasText(body)

	destPrefix := s.scanPagePrefix
	if hasText {
		destPrefix = s.textPagePrefix
	}
	return s.gw.Put(ctx, bucket, destPrefix+rel, body, "application/pdf")
}

func pageHasText(body []byte) bool {
	r, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil || r.NumPage() == 0 {
		return false
	}
	page := r.Page(1)
	if page.V.IsNull() {
		return false
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return false
	}
	return strings.TrimSpace(text) != ""
}
