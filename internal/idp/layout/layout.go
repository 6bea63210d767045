// Package layout implements the shared line/paragraph/table reconstruction
// algorithm used by both the Text Extractor (C8) and the OCR Extractor
// (C9), ported verbatim in behavior from `_results_to_layout_text` in
// services/idp/5-pdf-text-extractor/app.py:
//
//   - sort boxes by (top, left)
//   - line_height = median(box heights)
//   - group into lines when top - prevTop > 0.6*line_height
//   - within a line: >1 box -> buffer as a table row; a line reverting to
//     a single box flushes any buffered table as Markdown
//   - single-cell lines separated by a gap > 1.5*line_height emit a blank
//     line between paragraphs
package layout

import (
	"fmt"
	"sort"
	"strings"
)

// Box is a word/line bounding box with its recognized text. Coordinates
// use a top-down axis (top < bottom), consistent with PDF/OCR page space.
type Box struct {
	Top    float64
	Bottom float64
	Left   float64
	Text   string
}

const (
	lineGroupFactor  = 0.6
	paragraphGapFactor = 1.5
)

type line struct {
	top   float64
	boxes []Box
}

// Reconstruct groups boxes into lines/paragraphs/tables and renders
// Markdown body text (without the page header).
func Reconstruct(boxes []Box) string {
	if len(boxes) == 0 {
		return ""
	}

	sorted := make([]Box, len(boxes))
	copy(sorted, boxes)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Top != sorted[j].Top {
			return sorted[i].Top < sorted[j].Top
		}
		return sorted[i].Left < sorted[j].Left
	})

	lineHeight := medianHeight(sorted)
	groupThresh := lineHeight * lineGroupFactor
	paraThresh := lineHeight * paragraphGapFactor

	var lines []line
	for _, b := range sorted {
		if len(lines) == 0 || b.Top-lines[len(lines)-1].top > groupThresh {
			lines = append(lines, line{top: b.Top, boxes: []Box{b}})
			continue
		}
		last := &lines[len(lines)-1]
		last.boxes = append(last.boxes, b)
	}

	var out strings.Builder
	var tableRows [][]string
	var prevTop float64
	havePrev := false

	flushTable := func() {
		if len(tableRows) == 0 {
			return
		}
		header := tableRows[0]
		out.WriteString("| " + strings.Join(header, " | ") + " |\n")
		delim := make([]string, len(header))
		for i := range delim {
			delim[i] = "---"
		}
		out.WriteString("| " + strings.Join(delim, " | ") + " |\n")
		for _, row := range tableRows[1:] {
			out.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}
		tableRows = nil
	}

	for _, ln := range lines {
		sort.SliceStable(ln.boxes, func(i, j int) bool { return ln.boxes[i].Left < ln.boxes[j].Left })

		if len(ln.boxes) > 1 {
			cells := make([]string, len(ln.boxes))
			for i, b := range ln.boxes {
				cells[i] = strings.TrimSpace(b.Text)
			}
			tableRows = append(tableRows, cells)
			prevTop = ln.top
			havePrev = true
			continue
		}

		flushTable()

		if havePrev && ln.top-prevTop > paraThresh {
			out.WriteString("\n")
		}
		out.WriteString(strings.TrimSpace(ln.boxes[0].Text))
		out.WriteString("\n")
		prevTop = ln.top
		havePrev = true
	}
	flushTable()

	return out.String()
}

// PageHeader renders the "## Page N" Markdown header convention.
func PageHeader(pageNumber int) string {
	return fmt.Sprintf("## Page %d", pageNumber)
}

// RenderPage renders a full page Markdown body: header, blank line, then
// the reconstructed text.
func RenderPage(pageNumber int, boxes []Box) string {
	body := Reconstruct(boxes)
	return PageHeader(pageNumber) + "\n\n" + body
}

func medianHeight(boxes []Box) float64 {
	heights := make([]float64, len(boxes))
	for i, b := range boxes {
		heights[i] = b.Bottom - b.Top
	}
	sort.Float64s(heights)
	n := len(heights)
	if n == 0 {
		return 1
	}
	if n%2 == 1 {
		return heights[n/2]
	}
	return (heights[n/2-1] + heights[n/2]) / 2
}
