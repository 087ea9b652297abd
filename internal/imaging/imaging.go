package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
)

const (
	// Images below both thresholds are left untouched: recompressing a small
	// asset costs quality for no meaningful byte savings.
	skipBelowBytes  = 500 * 1024
	skipBelowWidth  = 800
	skipBelowHeight = 600

	thumbnailBox     = 300
	thumbnailQuality = 80
)

// Result carries the outcome of a compression pass. When Compressed is false
// Data aliases the input bytes unchanged.
type Result struct {
	Data       []byte
	Width      int
	Height     int
	Compressed bool
	Ratio      float64
}

func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// Dimensions decodes only the header, so probing a large image is cheap.
func Dimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// targetWidthFor picks the resize bound from the source byte size. Larger
// inputs get squeezed harder. A zero return means "keep original width".
func targetWidthFor(sizeMB float64) int {
	switch {
	case sizeMB > 20:
		return 1200
	case sizeMB > 10:
		return 1080
	case sizeMB > 5:
		return 900
	case sizeMB > 2:
		return 800
	case sizeMB > 0.5:
		return 600
	default:
		return 0
	}
}

func maxHeightFor(sizeMB float64) int {
	switch {
	case sizeMB > 20:
		return 800
	case sizeMB > 10:
		return 700
	case sizeMB > 5:
		return 600
	case sizeMB > 2:
		return 500
	default:
		return 0
	}
}

func qualityFor(sizeMB float64) int {
	switch {
	case sizeMB > 20:
		return 60
	case sizeMB > 10:
		return 65
	case sizeMB > 5:
		return 70
	case sizeMB > 2:
		return 75
	case sizeMB > 0.5:
		return 80
	default:
		return 85
	}
}

// SmartCompress shrinks an image proportionally to its byte size and
// re-encodes it as JPEG. Small images pass through untouched. maxWidth and
// maxHeight > 0 further cap the resize bounds; images are never upscaled.
func SmartCompress(data []byte, maxWidth, maxHeight int) (*Result, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if int64(len(data)) < skipBelowBytes && w <= skipBelowWidth && h <= skipBelowHeight && maxWidth <= 0 && maxHeight <= 0 {
		return &Result{Data: data, Width: w, Height: h, Compressed: false, Ratio: 1}, nil
	}

	sizeMB := float64(len(data)) / (1024 * 1024)
	targetW := targetWidthFor(sizeMB)
	if maxWidth > 0 && (targetW == 0 || maxWidth < targetW) {
		targetW = maxWidth
	}
	maxH := maxHeightFor(sizeMB)
	if maxHeight > 0 && (maxH == 0 || maxHeight < maxH) {
		maxH = maxHeight
	}

	newW, newH := fitDimensions(w, h, targetW, maxH)
	out := img
	if newW != w || newH != h {
		out = resize(img, newW, newH)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: qualityFor(sizeMB)}); err != nil {
		return nil, fmt.Errorf("encode compressed image: %w", err)
	}

	// Re-encoding a small, already efficient file can grow it. Keep the
	// original in that case.
	if buf.Len() >= len(data) && newW == w && newH == h {
		return &Result{Data: data, Width: w, Height: h, Compressed: false, Ratio: 1}, nil
	}

	return &Result{
		Data:       buf.Bytes(),
		Width:      newW,
		Height:     newH,
		Compressed: true,
		Ratio:      float64(buf.Len()) / float64(len(data)),
	}, nil
}

// fitDimensions scales (w, h) down to honor maxW and maxH while keeping the
// aspect ratio. Zero bounds mean unconstrained. Never upscales.
func fitDimensions(w, h, maxW, maxH int) (int, int) {
	newW, newH := w, h
	if maxW > 0 && newW > maxW {
		newH = newH * maxW / newW
		newW = maxW
	}
	if maxH > 0 && newH > maxH {
		newW = newW * maxH / newH
		newH = maxH
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	return newW, newH
}

// Thumbnail renders the image into a 300x300 bounding box as JPEG. The box
// bounds the longer edge; aspect ratio is preserved and small images are not
// upscaled.
func Thumbnail(data []byte) (*Result, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	newW, newH := fitDimensions(w, h, thumbnailBox, thumbnailBox)
	out := img
	if newW != w || newH != h {
		out = resize(img, newW, newH)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return &Result{
		Data:       buf.Bytes(),
		Width:      newW,
		Height:     newH,
		Compressed: true,
		Ratio:      float64(buf.Len()) / float64(len(data)),
	}, nil
}

func resize(src image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

// Watermark stamps translucent text into the bottom-right corner and
// re-encodes as JPEG. Dimensions are unchanged.
func Watermark(data []byte, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return data, nil
	}
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	dc := gg.NewContextForImage(img)
	w := float64(dc.Width())
	h := float64(dc.Height())

	margin := w * 0.02
	if margin < 4 {
		margin = 4
	}
	dc.SetRGBA(0, 0, 0, 0.35)
	dc.DrawStringAnchored(text, w-margin+1, h-margin+1, 1, 1)
	dc.SetRGBA(1, 1, 1, 0.55)
	dc.DrawStringAnchored(text, w-margin, h-margin, 1, 1)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dc.Image(), &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode watermarked image: %w", err)
	}
	return buf.Bytes(), nil
}
