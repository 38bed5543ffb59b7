package pipeline

import (
	"image"
	"math"
	"strings"

	"github.com/cockroachdb/errors"
)

// ColorMode tags how a decoded raster stores color.
type ColorMode int

const (
	ModeOther ColorMode = iota
	ModeRGB
	ModeRGBA
	ModePalette
	ModeGrayscale
	ModeCMYK
)

func (m ColorMode) String() string {
	switch m {
	case ModeRGB:
		return "RGB"
	case ModeRGBA:
		return "RGBA"
	case ModePalette:
		return "P"
	case ModeGrayscale:
		return "L"
	case ModeCMYK:
		return "CMYK"
	default:
		return "other"
	}
}

// NeedsRGB reports whether normalization converts the mode to RGB. Palette
// images are always converted, even when every palette entry is opaque.
func (m ColorMode) NeedsRGB() bool {
	return m == ModeRGBA || m == ModePalette
}

// SourceImage is a decoded raster owned by a single pipeline invocation.
type SourceImage struct {
	Image image.Image
	Mode  ColorMode
	// DecodedMode is the mode the decoder produced, before normalization.
	DecodedMode ColorMode
	Format      string // container the bytes were decoded from: "jpeg" or "png"
}

func (s *SourceImage) Width() int  { return s.Image.Bounds().Dx() }
func (s *SourceImage) Height() int { return s.Image.Bounds().Dy() }

// Enhancement selects the optional tone adjustment.
type Enhancement int

const (
	EnhanceNone Enhancement = iota
	EnhanceBrightness
	EnhanceContrast
)

func (e Enhancement) String() string {
	switch e {
	case EnhanceNone:
		return "none"
	case EnhanceBrightness:
		return "brightness"
	case EnhanceContrast:
		return "contrast"
	default:
		return "unknown"
	}
}

// Label is the wording shown in the UI select box.
func (e Enhancement) Label() string {
	switch e {
	case EnhanceBrightness:
		return "Increase Brightness"
	case EnhanceContrast:
		return "Increase Contrast"
	default:
		return "None"
	}
}

// Enhancements lists the selectable options in display order.
var Enhancements = []Enhancement{EnhanceNone, EnhanceBrightness, EnhanceContrast}

// ParseEnhancement accepts either the short name or the UI label.
func ParseEnhancement(s string) (Enhancement, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return EnhanceNone, nil
	case "brightness", "increase brightness":
		return EnhanceBrightness, nil
	case "contrast", "increase contrast":
		return EnhanceContrast, nil
	}
	return EnhanceNone, errors.WithHint(
		errors.Mark(errors.Newf("unknown enhancement %q", s), ErrInvalidRequest),
		"Choose None, Increase Brightness or Increase Contrast.")
}

const (
	MinQuality = 1
	MaxQuality = 100
)

// CompressionRequest carries the per-request knobs.
type CompressionRequest struct {
	Quality     int
	Enhancement Enhancement
	// Factor scales the selected attribute; 1.0 is the identity.
	Factor float64
}

// Validate enforces the pipeline contract; the UI applies narrower ranges.
func (r CompressionRequest) Validate() error {
	if r.Quality < MinQuality || r.Quality > MaxQuality {
		return errors.WithHint(
			errors.Mark(errors.Newf("quality %d outside [%d,%d]", r.Quality, MinQuality, MaxQuality), ErrInvalidRequest),
			"Quality must be between 1 and 100.")
	}
	switch r.Enhancement {
	case EnhanceNone:
		return nil
	case EnhanceBrightness, EnhanceContrast:
	default:
		return errors.Mark(errors.Newf("unknown enhancement %d", int(r.Enhancement)), ErrInvalidRequest)
	}
	return validateFactor(r.Factor)
}

func validateFactor(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return errors.WithHint(
			errors.Mark(errors.Newf("enhancement factor %v is not a finite non-negative number", f), ErrInvalidRequest),
			"The enhancement factor must be a non-negative number.")
	}
	return nil
}

// CompressionResult is what a successful Process returns.
type CompressionResult struct {
	Data []byte

	// OriginalSize is meaningful only when OriginalSizeKnown is set.
	OriginalSize      int64
	OriginalSizeKnown bool

	// CompressedSize always equals len(Data).
	CompressedSize int64

	// IntermediateSize is the pre-enhancement encode, only measured when
	// the pipeline runs with MeasureIntermediate.
	IntermediateSize     int64
	IntermediateMeasured bool

	Width        int
	Height       int
	SourceMode   ColorMode
	SourceFormat string
	Quality      int
	Enhancement  Enhancement
	Factor       float64
}
