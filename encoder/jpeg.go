package encoder

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// EncodeJPEG encodes with the standard library encoder (4:2:0 chroma
// subsampling, standard Huffman tables).
func EncodeJPEG(ctx context.Context, w io.Writer, img image.Image, o EncodeOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: o.Quality})
}

// EncodeMagick hands a lossless PNG of img to ImageMagick and streams back a
// JPEG with optimized Huffman tables.
func EncodeMagick(ctx context.Context, w io.Writer, img image.Image, o EncodeOptions) error {
	var in bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&in, img); err != nil {
		return errors.Wrap(err, "magick: staging png")
	}

	args := []string{
		"png:-",
		"-quality", strconv.Itoa(o.Quality),
		"-sampling-factor", "4:2:0",
		"-define", "jpeg:optimize-coding=true",
		"jpg:-",
	}
	cmd := exec.CommandContext(ctx, "magick", args...)
	cmd.Stdin = &in
	cmd.Stdout = w
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return errors.Wrapf(err, "magick: %s", msg)
		}
		return errors.Wrap(err, "magick")
	}
	return nil
}
