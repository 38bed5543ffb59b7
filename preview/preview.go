// Package preview renders the small inline images shown on the result page.
package preview

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"

	"github.com/cockroachdb/errors"
	"github.com/nfnt/resize"
)

// Thumbnail scales img down to maxWidth keeping its aspect ratio. Images that
// already fit are returned as is.
func Thumbnail(img image.Image, maxWidth uint) image.Image {
	if maxWidth == 0 || uint(img.Bounds().Dx()) <= maxWidth {
		return img
	}
	return resize.Resize(maxWidth, 0, img, resize.Lanczos3)
}

// DataURI encodes img as a base64 JPEG data URI.
func DataURI(img image.Image, quality int) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", errors.Wrap(err, "encoding preview")
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Render is Thumbnail followed by DataURI.
func Render(img image.Image, maxWidth uint, quality int) (string, error) {
	return DataURI(Thumbnail(img, maxWidth), quality)
}

// FromJPEG decodes a JPEG byte slice and renders its preview.
func FromJPEG(data []byte, maxWidth uint, quality int) (string, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "decoding preview source")
	}
	return Render(img, maxWidth, quality)
}
