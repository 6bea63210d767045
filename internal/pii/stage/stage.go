// Package stage wires the PII Detector (C12) and Redactor (C13) onto the
// event-driven pipeline: it triggers on the Combine Stage's combined
// document write, reconstructs the exact page-concatenated text
// BuildOffsetIndex expects, detects entities, maps them to hOCR word
// boxes, and paints the redacted artifact to a sibling key. Grounded on
// detect_sensitive_info_lambda.py / redact_file_lambda.py's
// read-combined-doc -> detect -> redact -> write chain.
package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adverant/idp-retrieval-platform/internal/audit"
	"github.com/adverant/idp-retrieval-platform/internal/dispatch"
	"github.com/adverant/idp-retrieval-platform/internal/idp/combine"
	"github.com/adverant/idp-retrieval-platform/internal/idp/ocrextract"
	"github.com/adverant/idp-retrieval-platform/internal/logging"
	"github.com/adverant/idp-retrieval-platform/internal/objectstore"
	"github.com/adverant/idp-retrieval-platform/internal/pii/detect"
	"github.com/adverant/idp-retrieval-platform/internal/pii/redact"
)

// DomainResolver maps a document to the detection domain it should use
// (Medical/Legal/Default), e.g. from manifest metadata or a tag.
type DomainResolver interface {
	Resolve(ctx context.Context, bucket, documentID string) detect.Domain
}

// StaticDomain is a DomainResolver that always returns the same domain.
type StaticDomain detect.Domain

func (d StaticDomain) Resolve(context.Context, string, string) detect.Domain { return detect.Domain(d) }

// Stage is the combined C12+C13 component.
type Stage struct {
	gw             *objectstore.Gateway
	auditStore     *audit.Store
	log            *logging.Logger
	detector       *detect.Detector
	redactor       *redact.Redactor
	domains        DomainResolver
	textDocPrefix  string
	hocrPrefix     string
	rawPrefix      string
	redactedPrefix string
}

// New constructs a PII detection/redaction stage.
func New(gw *objectstore.Gateway, auditStore *audit.Store, log *logging.Logger, detector *detect.Detector, redactor *redact.Redactor, domains DomainResolver, textDocPrefix, hocrPrefix, rawPrefix, redactedPrefix string) *Stage {
	if domains == nil {
		domains = StaticDomain(detect.DomainDefault)
	}
	return &Stage{
		gw:             gw,
		auditStore:     auditStore,
		log:            log,
		detector:       detector,
		redactor:       redactor,
		domains:        domains,
		textDocPrefix:  dispatch.NormalizePrefix(textDocPrefix),
		hocrPrefix:     dispatch.NormalizePrefix(hocrPrefix),
		rawPrefix:      dispatch.NormalizePrefix(rawPrefix),
		redactedPrefix: dispatch.NormalizePrefix(redactedPrefix),
	}
}

func (s *Stage) Name() string { return "pii" }

// Matches fires on the combined document JSON the Combine Stage writes.
func (s *Stage) Matches(_, key string) bool {
	return len(key) >= len(s.textDocPrefix) && key[:len(s.textDocPrefix)] == s.textDocPrefix && dispatch.HasExtension(key, ".json")
}

func (s *Stage) Handle(ctx context.Context, bucket, key string) error {
	docID := strings.TrimSuffix(key[len(s.textDocPrefix):], ".json")
	return s.Process(ctx, bucket, docID)
}

// Process runs detection and redaction for a specific document.
func (s *Stage) Process(ctx context.Context, bucket, docID string) error {
	hocrKey := s.hocrPrefix + docID + ".json"
	hocrMeta, err := s.gw.Head(ctx, bucket, hocrKey)
	if err != nil {
		return err
	}
	if hocrMeta == nil {
		s.log.Debug("no hOCR for document, skipping PII scan", "documentId", docID)
		return nil
	}

	hocrBody, err := s.gw.Get(ctx, bucket, hocrKey)
	if err != nil {
		return err
	}
	var hocrDoc combine.HOCRDocument
	if err := json.Unmarshal(hocrBody, &hocrDoc); err != nil {
		return err
	}

	text := concatenatePages(hocrDoc.Pages)
	domain := s.domains.Resolve(ctx, bucket, docID)
	entities, err := s.detector.Detect(ctx, text, domain)
	if err != nil {
		return err
	}

	if s.auditStore != nil {
		if err := s.auditStore.Update(ctx, docID, audit.StatusPIIDetected, nil, nil); err != nil {
			return err
		}
	}

	if len(entities) == 0 {
		return nil
	}

	rawKey := s.rawPrefix + docID
	source, err := s.gw.Get(ctx, bucket, rawKey)
	if err != nil {
		return err
	}

	if s.auditStore != nil {
		if err := s.auditStore.Update(ctx, docID, audit.StatusRedactionStarted, nil, nil); err != nil {
			return err
		}
	}

	redacted, boxes, err := s.redactor.Redact(ctx, source, hocrDoc.Pages, entities)
	if err != nil {
		if s.auditStore != nil {
			msg := err.Error()
			_ = s.auditStore.Update(ctx, docID, audit.StatusRedactionError, nil, &msg)
		}
		return err
	}

	redactedKey := s.redactedPrefix + docID
	if err := s.gw.Put(ctx, bucket, redactedKey, redacted, "application/octet-stream"); err != nil {
		return err
	}

	info := fmt.Sprintf("%d boxes redacted", len(boxes))
	if s.auditStore != nil {
		return s.auditStore.Update(ctx, docID, audit.StatusRedacted, nil, &info)
	}
	return nil
}

// concatenatePages reconstructs the document text using exactly the
// offset scheme redact.BuildOffsetIndex assigns: one separator char after
// each word, one extra newline per page boundary. Any divergence here
// would desynchronize detected entity offsets from hOCR word-box offsets.
func concatenatePages(pages []ocrextract.HOCRPage) string {
	var b strings.Builder
	for _, page := range pages {
		for _, w := range page.Words {
			b.WriteString(w.Text)
			b.WriteByte(' ')
		}
		b.WriteByte('\n')
	}
	return b.String()
}
