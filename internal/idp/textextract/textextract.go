// Package textextract implements the Text Extractor (C8): reads embedded
// text with positions from a single-page PDF object and renders it to
// Markdown via the shared layout-reconstruction algorithm, grounded on
// services/idp/5-pdf-text-extractor/app.py's `_extract_text`/`_json_to_markdown`.
package textextract

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	pipeerrors "github.com/adverant/idp-retrieval-platform/internal/errors"
	"github.com/adverant/idp-retrieval-platform/internal/dispatch"
	"github.com/adverant/idp-retrieval-platform/internal/idp/layout"
	"github.com/adverant/idp-retrieval-platform/internal/logging"
	"github.com/adverant/idp-retrieval-platform/internal/objectstore"
)

// Stage is the C8 component.
type Stage struct {
	gw             *objectstore.Gateway
	log            *logging.Logger
	textPagePrefix string
}

// New constructs a Text Extractor Stage. It reads and writes under the
// same textPagePrefix: the page classifier's PDF copy stays in place and
// the rendered Markdown is written beside it under a `.md` key, matching
// the original's shared
// TEXT_PAGE_PREFIX/PDF_TEXT_PAGE_PREFIX default.
func New(gw *objectstore.Gateway, log *logging.Logger, textPagePrefix string) *Stage {
	return &Stage{gw: gw, log: log, textPagePrefix: dispatch.NormalizePrefix(textPagePrefix)}
}

func (s *Stage) Name() string { return "text-extractor" }

func (s *Stage) Matches(_, key string) bool {
	return strings.HasPrefix(key, s.textPagePrefix) && strings.HasSuffix(strings.ToLower(key), ".pdf")
}

// Handle reads a text page PDF and writes its Markdown rendering to the
// same relative path with a `.md` extension.
func (s *Stage) Handle(ctx context.Context, bucket, key string) error {
	body, err := s.gw.Get(ctx, bucket, key)
	if err != nil {
		return err
	}

	pageNumber := pageNumberFromKey(key)

	boxes, err := extractBoxes(body)
	if err != nil {
		return &pipeerrors.ProcessingError{Code: pipeerrors.ErrorParseFailed, Message: "failed to extract page text", JobID: key, Cause: err}
	}

	md := layout.RenderPage(pageNumber, boxes)
	mdKey := strings.TrimSuffix(key, ".pdf") + ".md"
	return s.gw.Put(ctx, bucket, mdKey, []byte(md), "text/markdown")
}

// extractBoxes pulls word-level boxes with position from a single-page PDF
// via ledongthuc/pdf's row-oriented text API.
func extractBoxes(body []byte) ([]layout.Box, error) {
	r, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, err
	}
	if r.NumPage() == 0 {
		return nil, nil
	}
	page := r.Page(1)
	if page.V.IsNull() {
		return nil, nil
	}

	rows, err := page.GetTextByRow()
	if err != nil {
		return fallbackBoxes(page)
	}

	var boxes []layout.Box
	for _, row := range rows {
		for _, t := range row.Content {
			if strings.TrimSpace(t.S) == "" {
				continue
			}
			boxes = append(boxes, layout.Box{
				Top:    row.Position,
				Bottom: row.Position + t.FontSize,
				Left:   t.X,
				Text:   t.S,
			})
		}
	}
	return boxes, nil
}

// fallbackBoxes degrades to one box per plain-text line when the
// row-position API is unavailable for a given page, still producing valid
// (if layout-flattened) Markdown.
func fallbackBoxes(page pdf.Page) ([]layout.Box, error) {
	text, err := page.GetPlainText(nil)
	if err != nil {
		return nil, err
	}
	var boxes []layout.Box
	top := 0.0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		boxes = append(boxes, layout.Box{Top: top, Bottom: top + 12, Left: 0, Text: line})
		top += 14
	}
	return boxes, nil
}

func pageNumberFromKey(key string) int {
	base := key
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	base = strings.TrimSuffix(base, ".pdf")
	base = strings.TrimPrefix(base, "page_")
	n, err := strconv.Atoi(strings.TrimLeft(base, "0"))
	if err != nil || base == "" {
		return 1
	}
	if n == 0 {
		return 1
	}
	return n
}
