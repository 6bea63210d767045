package layout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconstructSingleLine(t *testing.T) {
	boxes := []Box{
		{Top: 10, Bottom: 22, Left: 0, Text: "Hello"},
		{Top: 10, Bottom: 22, Left: 60, Text: "World"},
	}
	// Two boxes on the same line are treated as a table row (>=2 boxes on
	// the same line), so a pure two-word line renders as
	// a one-row Markdown table.
	got := Reconstruct(boxes)
	assert.Contains(t, got, "Hello")
	assert.Contains(t, got, "World")
	assert.Contains(t, got, "---")
}

func TestReconstructParagraphGap(t *testing.T) {
	boxes := []Box{
		{Top: 0, Bottom: 12, Left: 0, Text: "First paragraph."},
		{Top: 14, Bottom: 26, Left: 0, Text: "Still first paragraph."},
		{Top: 50, Bottom: 62, Left: 0, Text: "Second paragraph."},
	}
	got := Reconstruct(boxes)
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	require.True(t, len(lines) >= 3)
	// a blank line must separate the paragraphs given the large top gap
	assert.Contains(t, got, "\n\n")
}

func TestReconstructTable(t *testing.T) {
	boxes := []Box{
		{Top: 0, Bottom: 12, Left: 0, Text: "Name"},
		{Top: 0, Bottom: 12, Left: 100, Text: "Age"},
		{Top: 14, Bottom: 26, Left: 0, Text: "Alice"},
		{Top: 14, Bottom: 26, Left: 100, Text: "30"},
	}
	got := Reconstruct(boxes)
	assert.Contains(t, got, "| Name | Age |")
	assert.Contains(t, got, "| --- | --- |")
	assert.Contains(t, got, "| Alice | 30 |")
}

func TestRenderPageHeader(t *testing.T) {
	got := RenderPage(1, []Box{{Top: 0, Bottom: 12, Left: 0, Text: "Hello World"}})
	assert.True(t, strings.HasPrefix(got, "## Page 1\n\n"))
	assert.Contains(t, got, "Hello World")
}

func TestMedianHeightEmpty(t *testing.T) {
	assert.Equal(t, 1.0, medianHeight(nil))
}
