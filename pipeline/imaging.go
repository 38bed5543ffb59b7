package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/disintegration/gift"
	"golang.org/x/image/draw"

	"squeeze/encoder"
)

// Imaging is the narrow set of raster primitives the pipeline needs.
type Imaging interface {
	Decode(data []byte) (image.Image, string, error)
	Encode(ctx context.Context, w io.Writer, img image.Image, quality int) error
	AdjustBrightness(img image.Image, factor float64) image.Image
	AdjustContrast(img image.Image, factor float64) image.Image
}

// NativeImaging decodes with the registered image formats, encodes through an
// encoder registry entry and applies tone filters with gift.
type NativeImaging struct {
	encode    encoder.EncodeFunc
	maxPixels int
}

// NewNativeImaging builds the default Imaging. A nil encode uses the native
// JPEG encoder; maxPixels <= 0 disables the pixel cap.
func NewNativeImaging(encode encoder.EncodeFunc, maxPixels int) *NativeImaging {
	if encode == nil {
		encode = encoder.EncodeJPEG
	}
	return &NativeImaging{encode: encode, maxPixels: maxPixels}
}

func (n *NativeImaging) Decode(data []byte) (image.Image, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	if n.maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(n.maxPixels) {
		return nil, format, errors.Wrapf(ErrTooLarge, "%dx%d exceeds %d pixels", cfg.Width, cfg.Height, n.maxPixels)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, format, err
	}
	return img, format, nil
}

func (n *NativeImaging) Encode(ctx context.Context, w io.Writer, img image.Image, quality int) error {
	return n.encode(ctx, w, img, encoder.EncodeOptions{Quality: quality})
}

// AdjustBrightness multiplies every channel by factor.
func (n *NativeImaging) AdjustBrightness(img image.Image, factor float64) image.Image {
	f := float32(factor)
	return applyColorFunc(img, func(r, g, b, a float32) (float32, float32, float32, float32) {
		return clamp01(r * f), clamp01(g * f), clamp01(b * f), a
	})
}

// AdjustContrast scales each channel's distance from the image's mean luma.
func (n *NativeImaging) AdjustContrast(img image.Image, factor float64) image.Image {
	f := float32(factor)
	mean := float32(meanLuma(img)) / 255
	return applyColorFunc(img, func(r, g, b, a float32) (float32, float32, float32, float32) {
		return clamp01(mean + f*(r-mean)), clamp01(mean + f*(g-mean)), clamp01(mean + f*(b-mean)), a
	})
}

func applyColorFunc(img image.Image, fn func(r, g, b, a float32) (float32, float32, float32, float32)) image.Image {
	g := gift.New(gift.ColorFunc(fn))
	bounds := g.Bounds(img.Bounds())
	var dst draw.Image
	if _, ok := img.(*image.Gray); ok {
		dst = image.NewGray(bounds)
	} else {
		dst = image.NewRGBA(bounds)
	}
	g.Draw(dst, img)
	return dst
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// meanLuma returns the rounded mean ITU-R 601 luma of img in [0,255].
func meanLuma(img image.Image) int {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0
	}

	var sum uint64
	switch m := img.(type) {
	case *image.Gray:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := m.Pix[m.PixOffset(b.Min.X, y):m.PixOffset(b.Max.X, y)]
			for _, v := range row {
				sum += uint64(v)
			}
		}
	case *image.YCbCr:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				sum += uint64(m.Y[m.YOffset(x, y)])
			}
		}
	case *image.RGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := m.Pix[m.PixOffset(b.Min.X, y):m.PixOffset(b.Max.X, y)]
			for i := 0; i+3 < len(row); i += 4 {
				sum += uint64(luma(row[i], row[i+1], row[i+2]))
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				sum += uint64(color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y)
			}
		}
	}
	return int((sum + uint64(n)/2) / uint64(n))
}

// luma applies color.GrayModel's weights to 8-bit input.
func luma(r, g, b uint8) uint8 {
	return uint8((19595*uint32(r) + 38470*uint32(g) + 7471*uint32(b) + 1<<15) >> 16)
}
