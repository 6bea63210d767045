// Package classifier implements the Classifier Stage (C5): routes raw
// intake objects to the office-docs or pdf-raw prefix based on file
// extension, grounded on the intake-routing step that precedes
// services/idp/4-pdf-page-classifier/app.py's per-page has-text check.
package classifier

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/adverant/idp-retrieval-platform/internal/dispatch"
	"github.com/adverant/idp-retrieval-platform/internal/logging"
	"github.com/adverant/idp-retrieval-platform/internal/objectstore"
)

var officeExtensions = []string{".docx", ".pptx", ".xlsx"}

// Stage is the C5 component.
type Stage struct {
	gw           *objectstore.Gateway
	log          *logging.Logger
	rawPrefix    string
	officePrefix string
	pdfRawPrefix string
}

// New constructs a Classifier Stage.
func New(gw *objectstore.Gateway, log *logging.Logger, rawPrefix, officePrefix, pdfRawPrefix string) *Stage {
	return &Stage{
		gw:           gw,
		log:          log,
		rawPrefix:    dispatch.NormalizePrefix(rawPrefix),
		officePrefix: dispatch.NormalizePrefix(officePrefix),
		pdfRawPrefix: dispatch.NormalizePrefix(pdfRawPrefix),
	}
}

func (s *Stage) Name() string { return "classifier" }

func (s *Stage) Matches(_, key string) bool {
	return strings.HasPrefix(key, s.rawPrefix)
}

// Handle reads the object, decides office vs pdf-raw, and copies it to the
// destination prefix. Every PDF goes to pdf-raw regardless of embedded
// text — the Page Classifier (C7) makes that has-text call per page, since
// a single PDF can mix text and scanned pages. Unsupported types are
// skipped with a log, matching the original's "skip, don't fail" behavior.
func (s *Stage) Handle(ctx context.Context, bucket, key string) error {
	if !s.Matches(bucket, key) {
		return nil
	}

	body, err := s.gw.Get(ctx, bucket, key)
	if err != nil {
		return err
	}

	rel := strings.TrimPrefix(key, s.rawPrefix)
	ext := strings.ToLower(filepath.Ext(key))

	if contains(officeExtensions, ext) {
		return s.gw.Put(ctx, bucket, s.officePrefix+rel, body, mimetype.Detect(body).String())
	}

	if ext != ".pdf" {
		s.log.Debug("skipping unsupported object", "key", key)
		return nil
	}

	return s.gw.Put(ctx, bucket, s.pdfRawPrefix+rel, body, "application/pdf")
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}
