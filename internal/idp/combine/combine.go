// Package combine implements the Combine Stage (C11): the manifest +
// page-completion join that turns a set of per-page Markdown (and
// optional hOCR) objects into a single DocumentText JSON once every page
// has landed. Grounded on services/idp/7-combine-pages/app.py's
// `_all_pages_present` / `_combine`.
package combine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/adverant/idp-retrieval-platform/internal/audit"
	"github.com/adverant/idp-retrieval-platform/internal/dispatch"
	"github.com/adverant/idp-retrieval-platform/internal/idp/ocrextract"
	"github.com/adverant/idp-retrieval-platform/internal/idp/splitter"
	"github.com/adverant/idp-retrieval-platform/internal/logging"
	"github.com/adverant/idp-retrieval-platform/internal/objectstore"
)

// DocumentText is the combined per-document output, shared in shape with
// the Office Extractor's direct-write output.
type DocumentText struct {
	DocumentID string   `json:"documentId"`
	Type       string   `json:"type"`
	PageCount  int      `json:"pageCount"`
	Pages      []string `json:"pages"`
}

// HOCRDocument is the optional combined per-document hOCR output.
type HOCRDocument struct {
	DocumentID string                 `json:"documentId"`
	Pages      []ocrextract.HOCRPage  `json:"pages"`
}

// Stage is the C11 component.
type Stage struct {
	gw            *objectstore.Gateway
	auditStore    *audit.Store
	log           *logging.Logger
	pdfPagePrefix string
	textPagePrefix string
	scanPagePrefix string
	hocrPrefix    string
	textDocPrefix string
	// RequireHOCR marks the documents whose configured OCR engine requires
	// hOCR ("if OCR engine requires hOCR,
	// head-check hOCR per page too").
	RequireHOCR bool
}

// New constructs a Combine Stage.
func New(gw *objectstore.Gateway, auditStore *audit.Store, log *logging.Logger, pdfPagePrefix, textPagePrefix, scanPagePrefix, hocrPrefix, textDocPrefix string) *Stage {
	return &Stage{
		gw:             gw,
		auditStore:     auditStore,
		log:            log,
		pdfPagePrefix:  dispatch.NormalizePrefix(pdfPagePrefix),
		textPagePrefix: dispatch.NormalizePrefix(textPagePrefix),
		scanPagePrefix: dispatch.NormalizePrefix(scanPagePrefix),
		hocrPrefix:     dispatch.NormalizePrefix(hocrPrefix),
		textDocPrefix:  dispatch.NormalizePrefix(textDocPrefix),
	}
}

func (s *Stage) Name() string { return "combine" }

// Matches fires on any page-text (.md) write under either text-pages or
// scan-pages ("triggered by any page-text write").
func (s *Stage) Matches(_, key string) bool {
	underText := len(key) >= len(s.textPagePrefix) && key[:len(s.textPagePrefix)] == s.textPagePrefix
	underScan := len(key) >= len(s.scanPagePrefix) && key[:len(s.scanPagePrefix)] == s.scanPagePrefix
	return (underText || underScan) && dispatch.HasExtension(key, ".md")
}

// Handle runs the manifest+page-completion join for the document that owns
// the triggering key.
func (s *Stage) Handle(ctx context.Context, bucket, key string) error {
	docID := documentIDFromPageKey(key, s.textPagePrefix, s.scanPagePrefix)
	return s.Combine(ctx, bucket, docID)
}

// Combine runs the join for a specific document, independent of which page
// triggered it, so it can also be invoked directly (re-combine, tests).
func (s *Stage) Combine(ctx context.Context, bucket, docID string) error {
	manifestKey := s.pdfPagePrefix + docID + "/manifest.json"
	manifestBody, err := s.gw.Get(ctx, bucket, manifestKey)
	if err != nil {
		if objectstore.IsNotFound(err) {
			// manifest absent: not yet split, or not a PDF-pipeline
			// document at all. Skip, not an error.
			return nil
		}
		return err
	}

	var manifest splitter.Manifest
	if err := json.Unmarshal(manifestBody, &manifest); err != nil {
		return err
	}

	// Resolve each page under whichever of text-pages/scan-pages actually
	// holds it (a document may mix extracted and OCR'd pages).
	resolved := make([]string, manifest.Pages)
	for i := 1; i <= manifest.Pages; i++ {
		rel := fmt.Sprintf("%s/page_%03d.md", docID, i)
		textKey := s.textPagePrefix + rel
		scanKey := s.scanPagePrefix + rel

		if meta, err := s.gw.Head(ctx, bucket, textKey); err != nil {
			return err
		} else if meta != nil {
			resolved[i-1] = textKey
			continue
		}
		if meta, err := s.gw.Head(ctx, bucket, scanKey); err != nil {
			return err
		} else if meta != nil {
			resolved[i-1] = scanKey
			continue
		}

		if s.auditStore != nil {
			_ = s.auditStore.Update(ctx, docID, audit.StatusMissingPages, &manifest.Pages, nil)
		}
		return nil
	}

	if s.RequireHOCR {
		for i := 1; i <= manifest.Pages; i++ {
			hocrKey := fmt.Sprintf("%s%s/page_%03d.json", s.hocrPrefix, docID, i)
			meta, err := s.gw.Head(ctx, bucket, hocrKey)
			if err != nil {
				return err
			}
			if meta == nil {
				if s.auditStore != nil {
					_ = s.auditStore.Update(ctx, docID, audit.StatusMissingPages, &manifest.Pages, nil)
				}
				return nil
			}
		}
	}

	pageTexts := make([]string, len(resolved))
	for i, key := range resolved {
		body, err := s.gw.Get(ctx, bucket, key)
		if err != nil {
			return err
		}
		pageTexts[i] = string(body)
	}

	doc := DocumentText{DocumentID: docID, Type: "pdf", PageCount: manifest.Pages, Pages: pageTexts}
	docBody, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := s.gw.Put(ctx, bucket, s.textDocPrefix+docID+".json", docBody, "application/json"); err != nil {
		return err
	}

	if s.RequireHOCR {
		hocrPages := make([]ocrextract.HOCRPage, 0, manifest.Pages)
		for i := 1; i <= manifest.Pages; i++ {
			hocrKey := fmt.Sprintf("%s%s/page_%03d.json", s.hocrPrefix, docID, i)
			body, err := s.gw.Get(ctx, bucket, hocrKey)
			if err != nil {
				return err
			}
			var page ocrextract.HOCRPage
			if err := json.Unmarshal(body, &page); err != nil {
				return err
			}
			hocrPages = append(hocrPages, page)
		}
		hocrDoc := HOCRDocument{DocumentID: docID, Pages: hocrPages}
		hocrBody, err := json.Marshal(hocrDoc)
		if err != nil {
			return err
		}
		if err := s.gw.Put(ctx, bucket, s.hocrPrefix+docID+".json", hocrBody, "application/json"); err != nil {
			return err
		}
	}

	if s.auditStore != nil {
		return s.auditStore.Update(ctx, docID, audit.StatusCombined, &manifest.Pages, nil)
	}
	return nil
}

func documentIDFromPageKey(key, textPrefix, scanPrefix string) string {
	rel := key
	switch {
	case len(key) >= len(textPrefix) && key[:len(textPrefix)] == textPrefix:
		rel = key[len(textPrefix):]
	case len(key) >= len(scanPrefix) && key[:len(scanPrefix)] == scanPrefix:
		rel = key[len(scanPrefix):]
	}
	for i := 0; i < len(rel); i++ {
		if rel[i] == '/' {
			return rel[:i]
		}
	}
	return rel
}
