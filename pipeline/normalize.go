package pipeline

import (
	"image"
	"image/color"
)

// classify derives the color mode from the concrete raster type. The PNG
// decoder returns *image.RGBA only for truecolor data without an alpha
// channel, so an opaque RGBA raster counts as RGB.
func classify(img image.Image) ColorMode {
	switch m := img.(type) {
	case *image.Gray, *image.Gray16:
		return ModeGrayscale
	case *image.Paletted:
		return ModePalette
	case *image.CMYK:
		return ModeCMYK
	case *image.YCbCr:
		return ModeRGB
	case *image.NRGBA, *image.NRGBA64, *image.NYCbCrA:
		return ModeRGBA
	case *image.RGBA:
		if m.Opaque() {
			return ModeRGB
		}
		return ModeRGBA
	case *image.RGBA64:
		if m.Opaque() {
			return ModeRGB
		}
		return ModeRGBA
	default:
		return ModeOther
	}
}

// normalize converts RGBA and palette rasters to opaque RGB and reduces
// 16-bit grayscale to 8 bits. Every other mode passes through untouched.
func normalize(src *SourceImage) *SourceImage {
	switch {
	case src.Mode.NeedsRGB():
		return &SourceImage{
			Image:       toRGB(src.Image),
			Mode:        ModeRGB,
			DecodedMode: src.DecodedMode,
			Format:      src.Format,
		}
	case src.Mode == ModeGrayscale:
		if g16, ok := src.Image.(*image.Gray16); ok {
			return &SourceImage{
				Image:       toGray(g16),
				Mode:        ModeGrayscale,
				DecodedMode: src.DecodedMode,
				Format:      src.Format,
			}
		}
	}
	return src
}

// toGray keeps the high byte of each 16-bit sample.
func toGray(src *image.Gray16) *image.Gray {
	b := src.Bounds()
	g := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		si, di := src.PixOffset(b.Min.X, y), g.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			g.Pix[di] = src.Pix[si]
			si += 2
			di++
		}
	}
	return g
}

// toRGB drops the alpha channel, keeping the straight color values, and
// resolves palette indices. The result is an opaque *image.RGBA.
func toRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	n := image.NewNRGBA(b)
	switch src := img.(type) {
	case *image.NRGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			copy(n.Pix[n.PixOffset(b.Min.X, y):n.PixOffset(b.Max.X, y)],
				src.Pix[src.PixOffset(b.Min.X, y):src.PixOffset(b.Max.X, y)])
		}
	case *image.NRGBA64:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			si, di := src.PixOffset(b.Min.X, y), n.PixOffset(b.Min.X, y)
			for x := b.Min.X; x < b.Max.X; x++ {
				// high byte of each big-endian channel
				n.Pix[di+0] = src.Pix[si+0]
				n.Pix[di+1] = src.Pix[si+2]
				n.Pix[di+2] = src.Pix[si+4]
				si += 8
				di += 4
			}
		}
	case *image.NYCbCrA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := src.YCbCrAt(x, y)
				r, g, bl := color.YCbCrToRGB(c.Y, c.Cb, c.Cr)
				n.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: bl, A: 0xff})
			}
		}
	case *image.Paletted:
		lut := make([]color.NRGBA, len(src.Palette))
		for i, c := range src.Palette {
			lut[i] = color.NRGBAModel.Convert(c).(color.NRGBA)
		}
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				if idx := int(src.ColorIndexAt(x, y)); idx < len(lut) {
					n.SetNRGBA(x, y, lut[idx])
				}
			}
		}
	default:
		// premultiplied sources have no color left on fully transparent pixels
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
				n.SetNRGBA(x, y, color.NRGBA{R: uint8(c.R >> 8), G: uint8(c.G >> 8), B: uint8(c.B >> 8), A: 0xff})
			}
		}
	}
	for i := 3; i < len(n.Pix); i += 4 {
		n.Pix[i] = 0xff
	}
	return &image.RGBA{Pix: n.Pix, Stride: n.Stride, Rect: n.Rect}
}
