// Package pipeline turns an uploaded JPEG or PNG into a recompressed JPEG,
// optionally adjusting brightness or contrast on the way.
//
// Each call is self-contained: Decoded -> Normalized -> (Compressed) ->
// (Enhanced) -> Finalized, with no state shared between calls.
package pipeline

import (
	"bytes"
	"context"
	"image"
	"io"
	"io/fs"

	"github.com/cockroachdb/errors"

	"squeeze/logger"
)

type Options struct {
	// MaxPixels caps width*height before a full decode; <= 0 disables it.
	MaxPixels int
	// MeasureIntermediate runs an extra encode before enhancement and
	// reports its size. The final output does not depend on it.
	MeasureIntermediate bool
}

type Pipeline struct {
	imaging Imaging
	opts    Options
}

// New returns a pipeline over imaging. A nil imaging uses NativeImaging with
// the native JPEG encoder.
func New(imaging Imaging, opts Options) *Pipeline {
	if imaging == nil {
		imaging = NewNativeImaging(nil, opts.MaxPixels)
	}
	return &Pipeline{imaging: imaging, opts: opts}
}

// DecodeAndNormalize decodes raw and converts RGBA/palette rasters to RGB.
// Failures are marked ErrDecode; no partial image is returned.
func (p *Pipeline) DecodeAndNormalize(raw []byte) (*SourceImage, error) {
	if len(raw) == 0 {
		return nil, decodeError(errors.New("empty upload"))
	}
	img, format, err := p.imaging.Decode(raw)
	if err != nil {
		return nil, decodeError(err)
	}

	mode := classify(img)
	src := &SourceImage{Image: img, Mode: mode, DecodedMode: mode, Format: format}
	out := normalize(src)
	logger.Debugf("decoded %s %dx%d mode=%s normalized=%s", format, out.Width(), out.Height(), src.Mode, out.Mode)
	return out, nil
}

// Compress encodes src as JPEG at quality.
func (p *Pipeline) Compress(ctx context.Context, src *SourceImage, quality int) ([]byte, error) {
	if quality < MinQuality || quality > MaxQuality {
		return nil, CompressionRequest{Quality: quality}.Validate()
	}
	var buf bytes.Buffer
	if err := p.imaging.Encode(ctx, &buf, src.Image, quality); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrap(ctxErr, "encode cancelled")
		}
		return nil, encodeError(err)
	}
	return buf.Bytes(), nil
}

// Enhance applies at most one tone adjustment. EnhanceNone and a factor of
// exactly 1 return src unchanged.
func (p *Pipeline) Enhance(src *SourceImage, kind Enhancement, factor float64) (*SourceImage, error) {
	if kind == EnhanceNone {
		return src, nil
	}
	if err := (CompressionRequest{Quality: MaxQuality, Enhancement: kind, Factor: factor}).Validate(); err != nil {
		return nil, err
	}
	if factor == 1 {
		return src, nil
	}

	var img image.Image
	switch kind {
	case EnhanceBrightness:
		img = p.imaging.AdjustBrightness(src.Image, factor)
	case EnhanceContrast:
		img = p.imaging.AdjustContrast(src.Image, factor)
	}
	logger.Debugf("applied %s x%.2f", kind, factor)
	return &SourceImage{Image: img, Mode: classify(img), DecodedMode: src.DecodedMode, Format: src.Format}, nil
}

// Process runs the whole request against upload. The original size is
// reported only when upload can state it (see SizeOf).
func (p *Pipeline) Process(ctx context.Context, upload io.Reader, req CompressionRequest) (*CompressionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	size, known := SizeOf(upload)
	raw, err := io.ReadAll(upload)
	if err != nil {
		return nil, decodeError(errors.Wrap(err, "reading upload"))
	}

	src, err := p.DecodeAndNormalize(raw)
	if err != nil {
		return nil, err
	}

	res := &CompressionResult{
		OriginalSize:      size,
		OriginalSizeKnown: known,
		Width:             src.Width(),
		Height:            src.Height(),
		SourceFormat:      src.Format,
		SourceMode:        src.DecodedMode,
		Quality:           req.Quality,
		Enhancement:       req.Enhancement,
		Factor:            req.Factor,
	}

	if p.opts.MeasureIntermediate {
		first, err := p.Compress(ctx, src, req.Quality)
		if err != nil {
			return nil, err
		}
		res.IntermediateSize = int64(len(first))
		res.IntermediateMeasured = true
		logger.Debugf("intermediate encode: %d bytes", res.IntermediateSize)
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "cancelled before enhancement")
	}
	enhanced, err := p.Enhance(src, req.Enhancement, req.Factor)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "cancelled before final encode")
	}
	final, err := p.Compress(ctx, enhanced, req.Quality)
	if err != nil {
		return nil, err
	}

	res.Data = final
	res.CompressedSize = int64(len(final))
	return res, nil
}

// SizeOf reports the total size of r when it can be determined without
// reading: regular files via Stat, and readers exposing Size() such as
// *bytes.Reader or the section readers behind multipart uploads.
func SizeOf(r io.Reader) (int64, bool) {
	switch s := r.(type) {
	case interface{ Stat() (fs.FileInfo, error) }:
		fi, err := s.Stat()
		if err != nil || !fi.Mode().IsRegular() {
			return 0, false
		}
		return fi.Size(), true
	case interface{ Size() int64 }:
		if n := s.Size(); n >= 0 {
			return n, true
		}
	}
	return 0, false
}
