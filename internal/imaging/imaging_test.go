package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"
)

// noisyImage defeats JPEG/PNG compression so encoded size tracks pixel count.
func noisyImage(w, h int) image.Image {
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestSmartCompressSkipsSmallImages(t *testing.T) {
	// 400x300 solid color compresses far below the 500KB threshold.
	img := image.NewRGBA(image.Rect(0, 0, 400, 300))
	data := encodePNG(t, img)

	res, err := SmartCompress(data, 0, 0)
	if err != nil {
		t.Fatalf("SmartCompress: %v", err)
	}
	if res.Compressed {
		t.Fatalf("small image was compressed")
	}
	if !bytes.Equal(res.Data, data) {
		t.Fatalf("pass-through mutated the bytes")
	}
	if res.Width != 400 || res.Height != 300 {
		t.Fatalf("dimensions = %dx%d", res.Width, res.Height)
	}
}

func TestSmartCompressResizesLargeImages(t *testing.T) {
	// Noisy 2000x1500 PNG lands in the multi-megabyte band, so the output
	// width must drop to a size-derived bound.
	data := encodePNG(t, noisyImage(2000, 1500))

	res, err := SmartCompress(data, 0, 0)
	if err != nil {
		t.Fatalf("SmartCompress: %v", err)
	}
	if !res.Compressed {
		t.Fatalf("large image not compressed")
	}
	if res.Width >= 2000 {
		t.Fatalf("width %d not reduced", res.Width)
	}
	if len(res.Data) >= len(data) {
		t.Fatalf("compressed output (%d) not smaller than input (%d)", len(res.Data), len(data))
	}
	// Output is always JPEG.
	if _, format, err := Decode(res.Data); err != nil || format != "jpeg" {
		t.Fatalf("output format = %q err=%v", format, err)
	}
	// Aspect ratio survives within rounding.
	wantH := res.Width * 1500 / 2000
	if diff := res.Height - wantH; diff < -1 || diff > 1 {
		t.Fatalf("aspect ratio broken: %dx%d", res.Width, res.Height)
	}
}

func TestSmartCompressHonorsMaxWidth(t *testing.T) {
	data := encodePNG(t, noisyImage(1600, 900))

	res, err := SmartCompress(data, 640, 0)
	if err != nil {
		t.Fatalf("SmartCompress: %v", err)
	}
	if res.Width > 640 {
		t.Fatalf("width %d exceeds cap", res.Width)
	}
}

func TestSmartCompressHonorsMaxHeight(t *testing.T) {
	data := encodePNG(t, noisyImage(1600, 1200))

	res, err := SmartCompress(data, 0, 480)
	if err != nil {
		t.Fatalf("SmartCompress: %v", err)
	}
	if res.Height > 480 {
		t.Fatalf("height %d exceeds cap", res.Height)
	}
}

func TestWatermarkKeepsDimensions(t *testing.T) {
	data := encodeJPEG(t, noisyImage(600, 400), 90)

	out, err := Watermark(data, "company")
	if err != nil {
		t.Fatalf("Watermark: %v", err)
	}
	w, h, err := Dimensions(out)
	if err != nil {
		t.Fatalf("decode watermarked image: %v", err)
	}
	if w != 600 || h != 400 {
		t.Fatalf("watermark resized image to %dx%d", w, h)
	}

	// Empty text is a no-op.
	same, err := Watermark(data, "  ")
	if err != nil || !bytes.Equal(same, data) {
		t.Fatalf("empty watermark mutated bytes: err=%v", err)
	}
}

func TestSmartCompressNeverUpscales(t *testing.T) {
	data := encodeJPEG(t, noisyImage(320, 240), 90)

	res, err := SmartCompress(data, 1200, 0)
	if err != nil {
		t.Fatalf("SmartCompress: %v", err)
	}
	if res.Width > 320 || res.Height > 240 {
		t.Fatalf("upscaled to %dx%d", res.Width, res.Height)
	}
}

func TestThumbnailFitsBox(t *testing.T) {
	data := encodePNG(t, noisyImage(1200, 400))

	res, err := Thumbnail(data)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	if res.Width != 300 {
		t.Fatalf("thumbnail width = %d, want 300", res.Width)
	}
	if res.Height != 100 {
		t.Fatalf("thumbnail height = %d, want 100", res.Height)
	}
	if _, format, err := Decode(res.Data); err != nil || format != "jpeg" {
		t.Fatalf("thumbnail format = %q err=%v", format, err)
	}
}

func TestThumbnailDoesNotUpscaleSmallImages(t *testing.T) {
	data := encodePNG(t, noisyImage(120, 80))

	res, err := Thumbnail(data)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	if res.Width != 120 || res.Height != 80 {
		t.Fatalf("thumbnail resized small image to %dx%d", res.Width, res.Height)
	}
}

func TestDimensions(t *testing.T) {
	data := encodePNG(t, image.NewRGBA(image.Rect(0, 0, 77, 33)))
	w, h, err := Dimensions(data)
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if w != 77 || h != 33 {
		t.Fatalf("dimensions = %dx%d", w, h)
	}
	if _, _, err := Dimensions([]byte("not an image")); err == nil {
		t.Fatalf("garbage accepted")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, _, err := Decode([]byte{0x00, 0x01, 0x02}); err == nil {
		t.Fatalf("garbage decoded")
	}
}
