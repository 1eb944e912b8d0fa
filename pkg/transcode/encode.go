package transcode

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

// Encoder renders an image at the given cell dimensions and quality to a
// specific wire format. Quality is meaningful only for lossy formats
// ("jpeg"); implementations ignore it otherwise.
type Encoder interface {
	Encode(img image.Image, format string, cols, rows, cellW, cellH, quality int) ([]byte, error)
}

// DefaultEncoder resizes with golang.org/x/image/draw's CatmullRom kernel
// (matching the teacher's resize pipeline) and encodes the result as PNG
// with the standard library's image/png, or as JPEG, GIF or BMP with
// disintegration/imaging's encoders. Any other format is rejected.
type DefaultEncoder struct{}

// Encode implements Encoder.
func (DefaultEncoder) Encode(img image.Image, format string, cols, rows, cellW, cellH, quality int) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("transcode: nil source image")
	}
	resized := resizeToCells(img, cols, rows, cellW, cellH)

	var buf bytes.Buffer
	switch format {
	case "", "auto", "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, resized); err != nil {
			return nil, fmt.Errorf("transcode: encode png: %w", err)
		}
	case "jpeg", "jpg":
		q := quality
		if q <= 0 {
			q = 85
		}
		if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
			return nil, fmt.Errorf("transcode: encode jpeg: %w", err)
		}
	case "gif":
		if err := imaging.Encode(&buf, resized, imaging.GIF); err != nil {
			return nil, fmt.Errorf("transcode: encode gif: %w", err)
		}
	case "bmp":
		if err := imaging.Encode(&buf, resized, imaging.BMP); err != nil {
			return nil, fmt.Errorf("transcode: encode bmp: %w", err)
		}
	default:
		return nil, fmt.Errorf("transcode: unsupported format %q", format)
	}
	return buf.Bytes(), nil
}

// resizeToCells scales img to fit within cols*cellW by rows*cellH pixels,
// preserving aspect ratio and never upscaling past the source resolution.
func resizeToCells(img image.Image, cols, rows, cellW, cellH int) image.Image {
	if cellW <= 0 {
		cellW = 8
	}
	if cellH <= 0 {
		cellH = 16
	}
	if cols <= 0 || rows <= 0 {
		return toNRGBA(img)
	}

	maxW, maxH := cols*cellW, rows*cellH
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	if srcW <= 0 || srcH <= 0 || (srcW <= maxW && srcH <= maxH) {
		return toNRGBA(img)
	}

	scale := minFloat(float64(maxW)/float64(srcW), float64(maxH)/float64(srcH))
	dstW := maxInt(1, int(float64(srcW)*scale+0.5))
	dstH := maxInt(1, int(float64(srcH)*scale+0.5))

	dst := image.NewNRGBA(image.Rect(0, 0, dstW, dstH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

func toNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
