// Package redact implements the Redactor (C13): maps PII entity character
// offsets to hOCR word bounding boxes and paints redaction rectangles.
// Grounded on redact_file_lambda.py's `_iter_words`/`_map_boxes` offset
// walk.
package redact

import (
	"context"
	"sort"

	"github.com/adverant/idp-retrieval-platform/internal/idp/ocrextract"
	"github.com/adverant/idp-retrieval-platform/internal/pii/detect"
)

// Box is a single redaction rectangle on a page.
type Box struct {
	Page int
	X1, Y1, X2, Y2 int
}

// wordSpan is one hOCR word with its absolute character offset range in
// the page-concatenated document text.
type wordSpan struct {
	page  int
	start int
	end   int
	box   [4]int
}

// BuildOffsetIndex walks hOCR pages in document order, assigning each word
// the offset range it would occupy in the concatenation of all page texts
// joined by a single newline per page boundary: each word consumes
// len(text)+1 offsets (the trailing separator), and each page adds one
// extra newline.
func BuildOffsetIndex(pages []ocrextract.HOCRPage) []wordSpan {
	var spans []wordSpan
	offset := 0
	for _, page := range pages {
		for _, w := range page.Words {
			start := offset
			end := start + len(w.Text)
			spans = append(spans, wordSpan{page: page.PageNumber, start: start, end: end, box: w.BBox})
			offset = end + 1 // +1 for the space/separator after each word
		}
		offset++ // +1 extra newline per page boundary
	}
	return spans
}

// MapEntities maps each entity's [start,end) character range to the word
// boxes it overlaps, returning deduplicated boxes per page.
func MapEntities(spans []wordSpan, entities []detect.Entity) []Box {
	var boxes []Box
	seen := make(map[[5]int]bool)

	for _, e := range entities {
		for _, sp := range spans {
			if sp.end <= e.Start || sp.start >= e.End {
				continue // no overlap
			}
			key := [5]int{sp.page, sp.box[0], sp.box[1], sp.box[2], sp.box[3]}
			if seen[key] {
				continue
			}
			seen[key] = true
			boxes = append(boxes, Box{Page: sp.page, X1: sp.box[0], Y1: sp.box[1], X2: sp.box[2], Y2: sp.box[3]})
		}
	}

	sort.Slice(boxes, func(i, j int) bool {
		if boxes[i].Page != boxes[j].Page {
			return boxes[i].Page < boxes[j].Page
		}
		if boxes[i].Y1 != boxes[j].Y1 {
			return boxes[i].Y1 < boxes[j].Y1
		}
		return boxes[i].X1 < boxes[j].X1
	})
	return boxes
}

// Painter draws opaque white rectangles over the given boxes onto a source
// artifact (PDF bytes or raster image bytes) and returns the redacted
// bytes. Concrete rasterization/PDF-painting is an external collaborator;
// Painter is the seam a real renderer plugs into.
type Painter interface {
	Paint(ctx context.Context, source []byte, boxes []Box) ([]byte, error)
}

// Redactor is the C13 component.
type Redactor struct {
	painter Painter
}

// New constructs a Redactor.
func New(painter Painter) *Redactor {
	return &Redactor{painter: painter}
}

// Redact builds the offset index from hocrPages, maps entities to boxes,
// and paints them over source, deduping identical boxes per page.
func (r *Redactor) Redact(ctx context.Context, source []byte, hocrPages []ocrextract.HOCRPage, entities []detect.Entity) ([]byte, []Box, error) {
	spans := BuildOffsetIndex(hocrPages)
	boxes := MapEntities(spans, entities)
	out, err := r.painter.Paint(ctx, source, boxes)
	if err != nil {
		return nil, nil, err
	}
	return out, boxes, nil
}
