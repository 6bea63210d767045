// Package splitter implements the PDF Splitter (C6): split a multi-page
// PDF into single-page objects plus a manifest written last, grounded on
// services/idp/3-pdf-split/app.py's `_split_pdf` (manifest-last-write
// invariant: its presence implies every page object already exists).
package splitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	pipeerrors "github.com/adverant/idp-retrieval-platform/internal/errors"
	"github.com/adverant/idp-retrieval-platform/internal/idp/minipdf"
	"github.com/adverant/idp-retrieval-platform/internal/dispatch"
	"github.com/adverant/idp-retrieval-platform/internal/logging"
	"github.com/adverant/idp-retrieval-platform/internal/objectstore"
)

// MaxPages bounds the zero-padded page filename scheme: documents
// exceeding this page count MUST be rejected at split time.
const MaxPages = 999

// Manifest is the sentinel the Combine Stage waits for.
type Manifest struct {
	DocumentID string `json:"documentId"`
	Pages      int    `json:"pages"`
}

// Stage is the C6 component.
type Stage struct {
	gw            *objectstore.Gateway
	log           *logging.Logger
	pdfRawPrefix  string
	pdfPagePrefix string
}

// New constructs a PDF Splitter Stage.
func New(gw *objectstore.Gateway, log *logging.Logger, pdfRawPrefix, pdfPagePrefix string) *Stage {
	return &Stage{
		gw:            gw,
		log:           log,
		pdfRawPrefix:  dispatch.NormalizePrefix(pdfRawPrefix),
		pdfPagePrefix: dispatch.NormalizePrefix(pdfPagePrefix),
	}
}

func (s *Stage) Name() string { return "splitter" }

func (s *Stage) Matches(_, key string) bool {
	return strings.HasPrefix(key, s.pdfRawPrefix) && strings.HasSuffix(strings.ToLower(key), ".pdf")
}

// Handle reads a raw PDF, writes one object per page, then the manifest.
func (s *Stage) Handle(ctx context.Context, bucket, key string) error {
	docID := DocumentID(key, s.pdfRawPrefix)

	body, err := s.gw.Get(ctx, bucket, key)
	if err != nil {
		return err
	}

	r, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return &pipeerrors.ProcessingError{Code: pipeerrors.ErrorParseFailed, Message: "invalid PDF", JobID: docID, Cause: err}
	}

	pageCount := r.NumPage()
	if pageCount > MaxPages {
		return &pipeerrors.ProcessingError{
			Code:    pipeerrors.ErrorInputInvalid,
			Message: fmt.Sprintf("document has %d pages, exceeds max %d", pageCount, MaxPages),
			JobID:   docID,
		}
	}

	for i := 1; i <= pageCount; i++ {
		page := r.Page(i)
		text := ""
		if !page.V.IsNull() {
			if t, terr := page.GetPlainText(nil); terr == nil {
				text = t
			}
		}
		pageBody := minipdf.WriteSinglePage(text)
		pageKey := fmt.Sprintf("%s%s/page_%03d.pdf", s.pdfPagePrefix, docID, i)
		if err := s.gw.Put(ctx, bucket, pageKey, pageBody, "application/pdf"); err != nil {
			return err
		}
	}

	manifest := Manifest{DocumentID: docID, Pages: pageCount}
	manifestBody, err := json.Marshal(manifest)
	if err != nil {
		return err
	}
	manifestKey := fmt.Sprintf("%s%s/manifest.json", s.pdfPagePrefix, docID)
	return s.gw.Put(ctx, bucket, manifestKey, manifestBody, "application/json")
}

// DocumentID derives the stable documentId from the source filename stem,
// stripped of prefix and extension, as `3-pdf-split/app.py` does.
func DocumentID(key, prefix string) string {
	rel := strings.TrimPrefix(key, prefix)
	rel = strings.TrimSuffix(rel, ".pdf")
	if idx := strings.LastIndex(rel, "/"); idx >= 0 {
		rel = rel[idx+1:]
	}
	return rel
}
