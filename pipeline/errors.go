package pipeline

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrDecode marks input that is not a readable JPEG or PNG.
	ErrDecode = errors.New("image decode failed")
	// ErrEncode marks an encoder that could not produce output.
	ErrEncode = errors.New("jpeg encode failed")
	// ErrInvalidRequest marks parameters outside the pipeline contract.
	ErrInvalidRequest = errors.New("invalid compression request")
	// ErrTooLarge is wrapped inside ErrDecode when the pixel cap is hit.
	ErrTooLarge = errors.New("image exceeds pixel limit")
)

const (
	hintDecode   = "The file could not be read as a JPEG or PNG image."
	hintTooLarge = "The image is too large to process."
	hintEncode   = "The image could not be encoded as JPEG."
	hintGeneric  = "Something went wrong while processing the image."
)

func decodeError(err error) error {
	hint := hintDecode
	if errors.Is(err, ErrTooLarge) {
		hint = hintTooLarge
	}
	return errors.WithHint(errors.Mark(errors.Wrap(err, "decode"), ErrDecode), hint)
}

func encodeError(err error) error {
	return errors.WithHint(errors.Mark(errors.Wrap(err, "encode"), ErrEncode), hintEncode)
}

// UserMessage returns the text to show an end user for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if hint := errors.FlattenHints(err); hint != "" {
		return hint
	}
	return hintGeneric
}

// Stage names the pipeline step an error belongs to.
func Stage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "validate"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrEncode):
		return "encode"
	default:
		return "process"
	}
}
