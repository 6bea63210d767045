// Package rerank implements the Reranker (C18): pluggable scoring
// providers, attach-score/stable-sort/truncate. Grounded on
// rerank_lambda.py's provider dispatch and score-then-truncate pipeline.
package rerank

import (
	"context"
	"sort"

	"github.com/adverant/idp-retrieval-platform/internal/retrieval/vectorstore"
)

// Match is a candidate being reranked, carrying the text a provider scores
// against the query plus the original vector-store match it wraps.
type Match struct {
	vectorstore.Match
	Text        string  `json:"text"`
	RerankScore float64 `json:"rerank_score"`
}

// Provider scores (query, text) pairs. Concrete providers (huggingface
// cross-encoder-equivalent, cohere-equivalent, nvidia-style HTTP) are
// configured, swappable collaborators; ScoreBatch lets an
// HTTP-backed provider score in one round trip.
type Provider interface {
	ScoreBatch(ctx context.Context, query string, texts []string) ([]float64, error)
}

// Reranker is the C18 component.
type Reranker struct {
	provider Provider
}

// New constructs a Reranker over the given scoring provider.
func New(provider Provider) *Reranker {
	return &Reranker{provider: provider}
}

// Rerank scores every match against query, attaches rerank_score, sorts
// descending (stable), and truncates to topK. If scoring fails, every
// score defaults to 0 and the original order is preserved: a reranker
// outage degrades to "as retrieved", not failure.
func (r *Reranker) Rerank(ctx context.Context, query string, matches []Match, topK int) []Match {
	if len(matches) == 0 {
		return matches
	}

	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
	}

	scores, err := r.provider.ScoreBatch(ctx, query, texts)
	out := make([]Match, len(matches))
	copy(out, matches)

	if err != nil || len(scores) != len(matches) {
		for i := range out {
			out[i].RerankScore = 0
		}
	} else {
		for i := range out {
			out[i].RerankScore = scores[i]
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].RerankScore > out[j].RerankScore })
	}

	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}
