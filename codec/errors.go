package codec

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Error kinds. Every error returned by a codec matches exactly one of them with errors.Is.
var (
	// ErrAgain means no progress was possible now. Retry after feeding or draining.
	ErrAgain = errors.New("resource temporarily unavailable")
	// ErrEOF means the stream is fully drained.
	ErrEOF = io.EOF
	// ErrBadInput rejects an unknown codec, format or option.
	ErrBadInput = errors.New("bad input")
	// ErrResource reports a failed DMA allocation, commit or mapping.
	ErrResource = errors.New("resource failure")
	// ErrHwFail reports a raster failure the CPU path could not cover either.
	ErrHwFail = errors.New("hardware failure")
	// ErrFrameDropped reports a frame abandoned after its fence got stuck.
	ErrFrameDropped = errors.New("frame dropped")
	// ErrFatal reports an engine refusal or an unrecoverable internal state.
	ErrFatal = errors.New("fatal codec error")
)

var kinds = []error{ErrAgain, ErrEOF, ErrBadInput, ErrResource, ErrHwFail, ErrFrameDropped, ErrFatal}

// Wrap tags err with kind. The result matches both kind and err. A nil err yields nil.
func Wrap(kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w: %w", msg, kind, err)
}

// Errorf returns a new error of the given kind.
func Errorf(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}

// KindOf returns the kind an error carries, ErrFatal for untagged errors and nil for nil.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrFatal
}

// IsControl reports whether err is ordinary flow control: ErrAgain or ErrEOF.
func IsControl(err error) bool {
	return errors.Is(err, ErrAgain) || errors.Is(err, ErrEOF)
}
