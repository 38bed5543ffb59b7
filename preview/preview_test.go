package preview

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func TestThumbnailDownscalesKeepingAspect(t *testing.T) {
	thumb := Thumbnail(testImage(200, 100), 50)
	b := thumb.Bounds()
	if b.Dx() != 50 || b.Dy() != 25 {
		t.Errorf("Expected 50x25, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestThumbnailNeverUpscales(t *testing.T) {
	src := testImage(40, 30)
	if Thumbnail(src, 480) != image.Image(src) {
		t.Error("Small images should be returned unchanged")
	}
	if Thumbnail(src, 0) != image.Image(src) {
		t.Error("A zero width should disable scaling")
	}
}

func TestDataURI(t *testing.T) {
	uri, err := DataURI(testImage(16, 16), 80)
	if err != nil {
		t.Fatalf("DataURI failed: %v", err)
	}
	const prefix = "data:image/jpeg;base64,"
	if !strings.HasPrefix(uri, prefix) {
		t.Fatalf("Unexpected prefix: %.40s", uri)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, prefix))
	if err != nil {
		t.Fatalf("Payload is not base64: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(raw)); err != nil {
		t.Errorf("Payload is not a JPEG: %v", err)
	}
}

func TestFromJPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(300, 150), nil); err != nil {
		t.Fatalf("Failed to build fixture: %v", err)
	}
	if _, err := FromJPEG(buf.Bytes(), 100, 70); err != nil {
		t.Errorf("FromJPEG failed: %v", err)
	}
	if _, err := FromJPEG([]byte("nope"), 100, 70); err == nil {
		t.Error("Expected an error for non-JPEG input")
	}
}
