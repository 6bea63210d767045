// Package detect implements the PII Detector (C12): regex pattern
// matching plus a pluggable NER backend, merged and domain-routed.
// Grounded on detect_sensitive_info_lambda.py's domain dispatch and
// pattern tables.
package detect

import (
	"context"
	"regexp"
)

// Entity is a detected span of sensitive text.
type Entity struct {
	Text  string  `json:"text"`
	Type  string  `json:"type"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float64 `json:"score,omitempty"`
}

// Domain selects which regex additions and NER engine are used.
type Domain string

const (
	DomainDefault Domain = ""
	DomainMedical Domain = "Medical"
	DomainLegal   Domain = "Legal"
)

// NEREngine is the pluggable ML/transformer-equivalent backend.
type NEREngine interface {
	Detect(ctx context.Context, text string) ([]Entity, error)
}

var defaultPatterns = map[string]*regexp.Regexp{
	"SSN":         regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	"CREDIT_CARD": regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`),
	"EMAIL":       regexp.MustCompile(`\b[\w.+-]+@[\w-]+\.[\w.-]+\b`),
	"PHONE":       regexp.MustCompile(`\b\d{3}[-.\s]\d{3}[-.\s]\d{4}\b`),
}

var domainPatterns = map[Domain]map[string]*regexp.Regexp{
	DomainLegal: {
		"CASE_NUMBER": regexp.MustCompile(`\b\d{2}-[A-Z]{2}-\d{4,6}\b`),
	},
	DomainMedical: {
		"MRN": regexp.MustCompile(`\bMRN[:\s]*\d{6,10}\b`),
	},
}

// Detector is the C12 component.
type Detector struct {
	ner NEREngine
}

// New constructs a Detector with an NER backend. ner may be nil, in which
// case regex-only detection is used (the NER backend is a configured,
// swappable collaborator).
func New(ner NEREngine) *Detector {
	return &Detector{ner: ner}
}

// Detect returns the UNION of regex and NER spans for text under domain.
// Duplicates across engines are tolerated.
func (d *Detector) Detect(ctx context.Context, text string, domain Domain) ([]Entity, error) {
	var entities []Entity

	for t, re := range defaultPatterns {
		entities = append(entities, matchAll(re, t, text)...)
	}
	for t, re := range domainPatterns[domain] {
		entities = append(entities, matchAll(re, t, text)...)
	}

	if d.ner != nil {
		mlEntities, err := d.ner.Detect(ctx, text)
		if err != nil {
			return nil, err
		}
		entities = append(entities, mlEntities...)
	}

	return entities, nil
}

func matchAll(re *regexp.Regexp, entityType, text string) []Entity {
	var out []Entity
	for _, loc := range re.FindAllStringIndex(text, -1) {
		out = append(out, Entity{
			Text:  text[loc[0]:loc[1]],
			Type:  entityType,
			Start: loc[0],
			End:   loc[1],
		})
	}
	return out
}
