package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleStrategyPacksParagraphs(t *testing.T) {
	text := "First paragraph here.\n\nSecond paragraph here."
	pieces := SimpleStrategy{}.Chunk(text, 1000, 0)
	require.Len(t, pieces, 1)
	assert.Contains(t, pieces[0], "First paragraph")
	assert.Contains(t, pieces[0], "Second paragraph")
}

func TestSimpleStrategySplitsOnChunkSize(t *testing.T) {
	text := strings.Repeat("a", 40) + "\n\n" + strings.Repeat("b", 40)
	pieces := SimpleStrategy{}.Chunk(text, 50, 0)
	require.Len(t, pieces, 2)
}

func TestSimpleStrategyAppliesOverlapOnlyWhenOversized(t *testing.T) {
	oversized := strings.Repeat("x", 120)
	pieces := SimpleStrategy{}.Chunk(oversized, 50, 10)
	require.True(t, len(pieces) >= 2)
	// the tail of piece[0] should reappear at the head of piece[1] given overlap
	assert.Equal(t, pieces[0][len(pieces[0])-10:], pieces[1][:10])
}

func TestChunkerDispatchesByDocType(t *testing.T) {
	c := New()
	universal, err := NewUniversalStrategy(".go")
	require.NoError(t, err)
	c.StrategyByDocType["code"] = universal

	chunks := c.Chunk("package main\n\nfunc main() {}\n", Metadata{DocType: "code", FileGUID: "g1"})
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.Equal(t, "code", ch.Metadata.DocType)
		assert.Equal(t, "g1", ch.Metadata.FileGUID)
	}
}

func TestChunkerCarriesMetadataThrough(t *testing.T) {
	c := New()
	meta := Metadata{DocType: "pdf", FileGUID: "abc", Department: "legal", Team: "t1", User: "u1"}
	chunks := c.Chunk("Some short document text.", meta)
	require.Len(t, chunks, 1)
	assert.Equal(t, meta, chunks[0].Metadata)
}
