// Package minipdf builds small, valid single-page PDF documents from
// extracted page text. Full PDF page-splitting/rendering libraries are an
// explicit external collaborator ("individual file-format decoders...
// are out of scope"); this package is the minimal writer the
// PDF Splitter (C6) and OCR rasterization stub need to produce real,
// independently-openable per-page PDF objects without taking on a
// full PDF-authoring dependency.
package minipdf

import (
	"bytes"
	"fmt"
	"strings"
)

// WriteSinglePage renders text as the body of a one-page US-Letter PDF.
func WriteSinglePage(text string) []byte {
	escaped := escape(text)
	lines := strings.Split(escaped, "\n")

	var content bytes.Buffer
	content.WriteString("BT /F1 11 Tf 72 720 Td 14 TL\n")
	for _, line := range lines {
		fmt.Fprintf(&content, "(%s) Tj T*\n", line)
	}
	content.WriteString("ET")
	stream := content.Bytes()

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, 6)

	writeObj := func(n int, body string) {
		offsets[n] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", n, body)
	}

	writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	writeObj(3, "<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 5 0 R >> >> /MediaBox [0 0 612 792] /Contents 4 0 R >>")

	offsets[4] = buf.Len()
	fmt.Fprintf(&buf, "4 0 obj\n<< /Length %d >>\nstream\n", len(stream))
	buf.Write(stream)
	buf.WriteString("\nendstream\nendobj\n")

	writeObj(5, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	xrefStart := buf.Len()
	buf.WriteString("xref\n0 6\n0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF", xrefStart)

	return buf.Bytes()
}

func escape(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "(", "\\(", ")", "\\)")
	return r.Replace(s)
}
