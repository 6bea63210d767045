// Package chunk implements the Chunker (C14): paragraph/sentence packing
// (`simple`) and extension-aware token-counted packing (`universal`),
// selected per doctype. Grounded on chunking_lambda.py's strategy
// dispatch and pkoukk/tiktoken-go for token counting.
package chunk

import (
	"regexp"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Metadata carries through doctype, file identifiers, and tenant fields,
// plus optional extracted entities.
type Metadata struct {
	DocType    string                 `json:"docType,omitempty"`
	FileGUID   string                 `json:"file_guid,omitempty"`
	FileName   string                 `json:"file_name,omitempty"`
	Department string                 `json:"department,omitempty"`
	Team       string                 `json:"team,omitempty"`
	User       string                 `json:"user,omitempty"`
	Entities   []interface{}          `json:"entities,omitempty"`
	Extra      map[string]interface{} `json:"-"`
}

// Chunk is a single packed span of text with carried-through metadata.
type Chunk struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// Strategy is a pluggable chunking algorithm.
type Strategy interface {
	Chunk(text string, chunkSize, overlap int) []string
}

var sentenceSplit = regexp.MustCompile(`(?:[.!?])\s+`)

// SimpleStrategy packs paragraphs, falling back to sentence splitting, up
// to chunkSize characters; overlap only applies when a single sentence
// itself exceeds chunkSize.
type SimpleStrategy struct{}

func (SimpleStrategy) Chunk(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	paragraphs := strings.Split(text, "\n\n")

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	appendUnit := func(unit string) {
		unit = strings.TrimSpace(unit)
		if unit == "" {
			return
		}
		if current.Len() > 0 && current.Len()+1+len(unit) > chunkSize {
			flush()
		}
		if len(unit) > chunkSize {
			flush()
			chunks = append(chunks, splitOversized(unit, chunkSize, overlap)...)
			return
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(unit)
	}

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if len(p) <= chunkSize {
			appendUnit(p)
			continue
		}
		for _, sentence := range sentenceSplit.Split(p, -1) {
			appendUnit(sentence)
		}
	}
	flush()
	return chunks
}

// splitOversized hard-wraps a single sentence/paragraph that alone exceeds
// chunkSize, applying overlap between consecutive slices — the only case
// the simple strategy calls for overlap.
func splitOversized(text string, chunkSize, overlap int) []string {
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	var out []string
	step := chunkSize - overlap
	for start := 0; start < len(text); start += step {
		end := start + chunkSize
		if end > len(text) {
			end = len(text)
		}
		out = append(out, text[start:end])
		if end == len(text) {
			break
		}
	}
	return out
}

// UniversalStrategy is extension-aware and token-counted, for text/code/
// notebook content where character-length packing under- or over-shoots
// model context budgets.
type UniversalStrategy struct {
	Extension string
	encoding  *tiktoken.Tiktoken
}

// NewUniversalStrategy builds a token-counted strategy for the given file
// extension, using the cl100k_base encoding this LLM stack uses.
func NewUniversalStrategy(extension string) (*UniversalStrategy, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &UniversalStrategy{Extension: extension, encoding: enc}, nil
}

func (u *UniversalStrategy) Chunk(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	units := splitByExtension(text, u.Extension)

	var chunks []string
	var currentTokens []int
	var currentText strings.Builder

	flush := func() {
		if currentText.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(currentText.String()))
			currentText.Reset()
			currentTokens = nil
		}
	}

	for _, unit := range units {
		unit = strings.TrimRight(unit, "\n")
		if strings.TrimSpace(unit) == "" {
			continue
		}
		tokens := u.encoding.Encode(unit, nil, nil)
		if len(currentTokens)+len(tokens) > chunkSize && currentText.Len() > 0 {
			flush()
		}
		if currentText.Len() > 0 {
			currentText.WriteString("\n")
		}
		currentText.WriteString(unit)
		currentTokens = append(currentTokens, tokens...)
	}
	flush()

	return applyTokenOverlap(chunks, overlap)
}

// splitByExtension segments by double-newline for text, by line for code
// and notebook-derived extensions.
func splitByExtension(text, extension string) []string {
	switch strings.ToLower(extension) {
	case ".py", ".go", ".js", ".ts", ".java", ".c", ".cpp", ".ipynb":
		return strings.Split(text, "\n")
	default:
		return strings.Split(text, "\n\n")
	}
}

// applyTokenOverlap prepends a trailing slice of the previous chunk to
// each subsequent chunk, approximating token overlap via characters (an
// acceptable approximation since chunk boundaries are already
// token-budgeted).
func applyTokenOverlap(chunks []string, overlap int) []string {
	if overlap <= 0 || len(chunks) < 2 {
		return chunks
	}
	out := make([]string, len(chunks))
	out[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		tail := prev
		if len(tail) > overlap {
			tail = tail[len(tail)-overlap:]
		}
		out[i] = tail + "\n" + chunks[i]
	}
	return out
}

// Chunker is the C14 component: dispatches to a strategy per doctype.
type Chunker struct {
	// StrategyByDocType overrides the default strategy per docType.
	StrategyByDocType map[string]Strategy
	Default           Strategy
	ChunkSize         int
	Overlap           int
}

// New constructs a Chunker with the simple strategy as default.
func New() *Chunker {
	return &Chunker{
		StrategyByDocType: map[string]Strategy{},
		Default:           SimpleStrategy{},
		ChunkSize:         1000,
		Overlap:           100,
	}
}

// Chunk packs text into Chunks, carrying metadata through to every piece.
func (c *Chunker) Chunk(text string, meta Metadata) []Chunk {
	strategy := c.Default
	if s, ok := c.StrategyByDocType[meta.DocType]; ok {
		strategy = s
	}
	pieces := strategy.Chunk(text, c.ChunkSize, c.Overlap)

	chunks := make([]Chunk, 0, len(pieces))
	for _, p := range pieces {
		chunks = append(chunks, Chunk{Text: p, Metadata: meta})
	}
	return chunks
}
