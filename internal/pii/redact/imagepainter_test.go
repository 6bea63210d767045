package redact

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPageZip(t *testing.T, pages map[int]image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for n, img := range pages {
		w, err := zw.Create(pageName(n))
		require.NoError(t, err)
		require.NoError(t, png.Encode(w, img))
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func pageName(n int) string {
	return "page_" + pad3(n) + ".png"
}

func pad3(n int) string {
	s := "000"
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if len(digits) == 0 {
		digits = []byte{'0'}
	}
	return s[:3-len(digits)] + string(digits)
}

func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestImageZipPainterPaintsWhiteRectOverTargetPage(t *testing.T) {
	src := buildPageZip(t, map[int]image.Image{
		1: solidImage(20, 20, color.Black),
	})

	painter := NewImageZipPainter()
	out, err := painter.Paint(context.Background(), src, []Box{{Page: 1, X1: 2, Y1: 2, X2: 10, Y2: 10}})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	img, err := png.Decode(rc)
	require.NoError(t, err)

	r, g, b, _ := img.At(5, 5).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), g)
	assert.Equal(t, uint32(0xffff), b)

	r, _, _, _ = img.At(15, 15).RGBA()
	assert.Equal(t, uint32(0), r)
}

func TestImageZipPainterLeavesUntargetedPagesUnchanged(t *testing.T) {
	src := buildPageZip(t, map[int]image.Image{
		1: solidImage(10, 10, color.Black),
		2: solidImage(10, 10, color.Black),
	})

	painter := NewImageZipPainter()
	out, err := painter.Paint(context.Background(), src, []Box{{Page: 1, X1: 0, Y1: 0, X2: 10, Y2: 10}})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)

	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		img, err := png.Decode(rc)
		rc.Close()
		require.NoError(t, err)

		r, _, _, _ := img.At(5, 5).RGBA()
		if f.Name == "page_001.png" {
			assert.Equal(t, uint32(0xffff), r)
		} else {
			assert.Equal(t, uint32(0), r)
		}
	}
}
