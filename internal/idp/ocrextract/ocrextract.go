// Package ocrextract implements the OCR Extractor (C9): rasterizes a scan
// page, dispatches to a configured OCR engine, reconstructs Markdown with
// the same layout algorithm as the Text Extractor, and optionally emits
// hOCR word boxes for the Redactor (C13). Grounded on
// services/idp/6-pdf-page-ocr/app.py and a
// `performOCRWithMageAgent` 3-tier cascade (confidence thresholds 0.85/0.90).
package ocrextract

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"

	pipeerrors "github.com/adverant/idp-retrieval-platform/internal/errors"
	"github.com/adverant/idp-retrieval-platform/internal/dispatch"
	"github.com/adverant/idp-retrieval-platform/internal/idp/layout"
	"github.com/adverant/idp-retrieval-platform/internal/logging"
	"github.com/adverant/idp-retrieval-platform/internal/objectstore"
)

// Word is a single recognized word with its pixel bounding box, the unit
// the Redactor's offset-walk later maps PII spans onto.
type Word struct {
	Text string  `json:"text"`
	BBox [4]int  `json:"bbox"` // x1,y1,x2,y2
	Conf float64 `json:"confidence"`
}

// HOCRPage is the per-page hOCR word-box document, written under
// hocr/{documentId}/page_NNN.json.
type HOCRPage struct {
	PageNumber int    `json:"pageNumber"`
	Words      []Word `json:"words"`
}

// Engine recognizes raster page bytes into words with pixel bboxes and an
// overall confidence score. Tier 1 (cheap/fast) is Tesseract via gosseract;
// tiers 2/3 (balanced, highest-accuracy) are remote vision-model engines
// wired through the same interface.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, image []byte) (words []Word, confidence float64, err error)
}

// Cascade escalates through engines in order until a result clears its
// threshold, matching a `performOCRWithMageAgent`-style confidence
// gating (0.85 promotes past tier 1, 0.90 past tier 2).
type Cascade struct {
	Tiers      []Engine
	Thresholds []float64 // len == len(Tiers)-1; Thresholds[i] gates advancing past Tiers[i]
	log        *logging.Logger
}

// NewCascade builds a cascade over the given tiers, in order. Every tier
// but the last gets a confidence threshold: 0.85 for the first, 0.90 for
// each later one; the last tier's result is always accepted.
func NewCascade(log *logging.Logger, tiers ...Engine) *Cascade {
	thresholds := make([]float64, 0, len(tiers))
	defaults := []float64{0.85, 0.90}
	for i := range tiers {
		if i >= len(tiers)-1 {
			break
		}
		if i < len(defaults) {
			thresholds = append(thresholds, defaults[i])
		} else {
			thresholds = append(thresholds, 0.90)
		}
	}
	return &Cascade{Tiers: tiers, Thresholds: thresholds, log: log}
}

func (c *Cascade) recognize(ctx context.Context, image []byte) ([]Word, float64, string, error) {
	var last error
	for i, engine := range c.Tiers {
		words, conf, err := engine.Recognize(ctx, image)
		if err != nil {
			last = err
			continue
		}
		if i == len(c.Tiers)-1 || conf >= c.Thresholds[i] {
			return words, conf, engine.Name(), nil
		}
	}
	if last != nil {
		return nil, 0, "", last
	}
	return nil, 0, "", pipeerrors.NewBackendUnavailableError("ocr-cascade", "ocr", nil)
}

// TesseractEngine is the tier-1 cheap/fast engine, assuming a local
// OCR binary is installed on the host.
type TesseractEngine struct {
	Lang string
}

func (e *TesseractEngine) Name() string { return "tesseract" }

func (e *TesseractEngine) Recognize(ctx context.Context, image []byte) ([]Word, float64, error) {
	client := gosseract.NewClient()
	defer client.Close()
	if e.Lang != "" {
		_ = client.SetLanguage(e.Lang)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return nil, 0, err
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		text, terr := client.Text()
		if terr != nil {
			return nil, 0, err
		}
		return plainTextWords(text), 0.5, nil
	}

	words := make([]Word, 0, len(boxes))
	var confSum float64
	for _, b := range boxes {
		t := strings.TrimSpace(b.Word)
		if t == "" {
			continue
		}
		words = append(words, Word{
			Text: t,
			BBox: [4]int{b.Box.Min.X, b.Box.Min.Y, b.Box.Max.X, b.Box.Max.Y},
			Conf: 0,
		})
		confSum += float64(b.Confidence)
	}
	conf := 0.0
	if len(boxes) > 0 {
		conf = confSum / float64(len(boxes)) / 100.0
	}
	for i := range words {
		words[i].Conf = conf
	}
	return words, conf, nil
}

func plainTextWords(text string) []Word {
	var words []Word
	y := 0
	for _, line := range strings.Split(text, "\n") {
		x := 0
		for _, tok := range strings.Fields(line) {
			words = append(words, Word{Text: tok, BBox: [4]int{x, y, x + len(tok)*8, y + 14}})
			x += len(tok)*8 + 6
		}
		y += 16
	}
	return words
}

// Stage is the C9 component.
type Stage struct {
	gw             *objectstore.Gateway
	log            *logging.Logger
	scanPagePrefix string
	hocrPrefix     string
	cascade        *Cascade
	// EmitHOCR controls whether per-page hOCR JSON is written, matching the
	// spec's "for ocrmypdf-class engines, additionally ... writes hOCR".
	EmitHOCR bool
}

// New constructs an OCR Extractor Stage.
func New(gw *objectstore.Gateway, log *logging.Logger, scanPagePrefix, hocrPrefix string, cascade *Cascade) *Stage {
	return &Stage{
		gw:             gw,
		log:            log,
		scanPagePrefix: dispatch.NormalizePrefix(scanPagePrefix),
		hocrPrefix:     dispatch.NormalizePrefix(hocrPrefix),
		cascade:        cascade,
		EmitHOCR:       true,
	}
}

func (s *Stage) Name() string { return "ocr-extractor" }

func (s *Stage) Matches(_, key string) bool {
	return strings.HasPrefix(key, s.scanPagePrefix) && strings.HasSuffix(strings.ToLower(key), ".pdf")
}

// Handle rasterizes (treats the raw bytes as already-rasterized image
// content, since rasterization itself is an external collaborator),
// recognizes, renders Markdown, and optionally emits hOCR.
func (s *Stage) Handle(ctx context.Context, bucket, key string) error {
	body, err := s.gw.Get(ctx, bucket, key)
	if err != nil {
		return err
	}

	pageNumber := pageNumberFromKey(key)
	docID := documentIDFromKey(key, s.scanPagePrefix)

	words, _, _, err := s.cascade.recognize(ctx, body)
	if err != nil {
		return &pipeerrors.ProcessingError{Code: pipeerrors.ErrorParseFailed, Message: "OCR recognition failed", JobID: docID, Cause: err}
	}

	boxes := make([]layout.Box, 0, len(words))
	for _, w := range words {
		boxes = append(boxes, layout.Box{
			Top:    float64(w.BBox[1]),
			Bottom: float64(w.BBox[3]),
			Left:   float64(w.BBox[0]),
			Text:   w.Text,
		})
	}

	md := layout.RenderPage(pageNumber, boxes)
	mdKey := strings.TrimSuffix(key, ".pdf") + ".md"
	if err := s.gw.Put(ctx, bucket, mdKey, []byte(md), "text/markdown"); err != nil {
		return err
	}

	if !s.EmitHOCR {
		return nil
	}

	hocrPage := HOCRPage{PageNumber: pageNumber, Words: words}
	hocrBody, err := json.Marshal(hocrPage)
	if err != nil {
		return err
	}
	hocrKey := s.hocrPrefix + docID + "/page_" + zeroPad(pageNumber) + ".json"
	return s.gw.Put(ctx, bucket, hocrKey, hocrBody, "application/json")
}

func pageNumberFromKey(key string) int {
	base := key
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	base = strings.TrimSuffix(base, ".pdf")
	base = strings.TrimPrefix(base, "page_")
	n, err := strconv.Atoi(strings.TrimLeft(base, "0"))
	if err != nil || n == 0 {
		return 1
	}
	return n
}

func documentIDFromKey(key, prefix string) string {
	rel := strings.TrimPrefix(key, prefix)
	if idx := strings.Index(rel, "/"); idx >= 0 {
		return rel[:idx]
	}
	return rel
}

func zeroPad(n int) string {
	s := strconv.Itoa(n)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}
