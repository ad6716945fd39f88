package imaging

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode matches every *DecodeError.
	ErrDecode = errors.New("image decode failed")

	// ErrInvalidRaster is returned when a raster violates its buffer invariant.
	ErrInvalidRaster = errors.New("invalid raster")

	// ErrResourceUnavailable is returned when a working buffer cannot be
	// allocated, for example because the pixel count exceeds a configured limit.
	ErrResourceUnavailable = errors.New("resource unavailable")
)

// DecodeError reports a source image that could not be decoded into a Raster.
type DecodeError struct {
	// Source names the input (usually a file path). May be empty.
	Source string

	// Err is the underlying decoder error.
	Err error
}

func (e *DecodeError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("failed to decode image %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("failed to decode image: %v", e.Err)
}

// Unwrap exposes both ErrDecode and the decoder error to errors.Is/As.
func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}
