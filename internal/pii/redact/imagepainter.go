package redact

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
)

// ImageZipPainter paints redaction boxes onto a zip archive of per-page
// PNG images (one entry per page, named "page_%03d.png"). The pii stage
// passes the stored raw object to Redact unchanged, so this painter
// applies when that object is such an archive. No
// PDF-stream-editing library appears anywhere in the reference corpus, so
// this targets the raster representation the OCR cascade (C9) already
// produces rather than rewriting PDF content streams directly.
type ImageZipPainter struct{}

// NewImageZipPainter constructs an ImageZipPainter.
func NewImageZipPainter() *ImageZipPainter { return &ImageZipPainter{} }

// Paint decodes source as a zip of per-page PNGs, draws an opaque white
// rectangle for every box on its page, and returns a new zip of the
// redacted pages.
func (p *ImageZipPainter) Paint(_ context.Context, source []byte, boxes []Box) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(source), int64(len(source)))
	if err != nil {
		return nil, fmt.Errorf("failed to open page image archive: %w", err)
	}

	byPage := make(map[int][]Box)
	for _, b := range boxes {
		byPage[b.Page] = append(byPage[b.Page], b)
	}

	var out bytes.Buffer
	zw := zip.NewWriter(&out)

	for _, f := range zr.File {
		pageNum, ok := pageNumberFromEntry(f.Name)
		if !ok {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open page image %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read page image %s: %w", f.Name, err)
		}

		if pageBoxes := byPage[pageNum]; len(pageBoxes) > 0 {
			data, err = redactPNG(data, pageBoxes)
			if err != nil {
				return nil, fmt.Errorf("failed to redact page %d: %w", pageNum, err)
			}
		}

		w, err := zw.Create(f.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to write page image %s: %w", f.Name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("failed to write page image %s: %w", f.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize redacted archive: %w", err)
	}
	return out.Bytes(), nil
}

func redactPNG(data []byte, boxes []Box) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	rgba, ok := img.(*image.RGBA)
	if !ok {
		b := img.Bounds()
		converted := image.NewRGBA(b)
		draw.Draw(converted, b, img, b.Min, draw.Src)
		rgba = converted
	}

	white := image.NewUniform(color.White)
	for _, box := range boxes {
		rect := image.Rect(box.X1, box.Y1, box.X2, box.Y2)
		draw.Draw(rgba, rect, white, image.Point{}, draw.Src)
	}

	var out bytes.Buffer
	if err := png.Encode(&out, rgba); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func pageNumberFromEntry(name string) (int, bool) {
	var n int
	if _, err := fmt.Sscanf(name, "page_%03d.png", &n); err != nil {
		return 0, false
	}
	return n, true
}
