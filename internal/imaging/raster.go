package imaging

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/disintegration/imaging"
)

// Raster is an immutable 8-bit RGBA pixel grid.
//
// Pix holds Width*Height*4 samples in row-major R,G,B,A order with straight
// alpha. Once a Raster has been handed out, nothing writes to Pix again.
type Raster struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewRaster allocates a zeroed raster of the given size.
//
// Returns ErrInvalidRaster for non-positive dimensions and
// ErrResourceUnavailable when the buffer size overflows an int.
func NewRaster(width, height int) (*Raster, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidRaster, width, height)
	}
	if height > math.MaxInt/4/width {
		return nil, fmt.Errorf("%w: cannot allocate %dx%d pixel buffer", ErrResourceUnavailable, width, height)
	}
	return &Raster{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*4),
	}, nil
}

// Validate checks the buffer invariant len(Pix) == Width*Height*4.
func (r *Raster) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil raster", ErrInvalidRaster)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidRaster, r.Width, r.Height)
	}
	if r.Height > math.MaxInt/4/r.Width || len(r.Pix) != r.Width*r.Height*4 {
		return fmt.Errorf("%w: buffer length %d does not match %dx%d", ErrInvalidRaster, len(r.Pix), r.Width, r.Height)
	}
	return nil
}

// PixelCount returns Width*Height.
func (r *Raster) PixelCount() int {
	return r.Width * r.Height
}

// Bounds returns the raster rectangle anchored at (0,0).
func (r *Raster) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.Width, r.Height)
}

// FromImage copies any image.Image into a new Raster.
//
// The image is converted to straight-alpha NRGBA first, so 16-bit and
// paletted sources are reduced to 8 bits per channel.
func FromImage(img image.Image) (*Raster, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidRaster)
	}
	b := img.Bounds()
	dst, err := NewRaster(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}

	nrgba := imaging.Clone(img)
	rowLen := dst.Width * 4
	for y := 0; y < dst.Height; y++ {
		srcOff := nrgba.PixOffset(nrgba.Rect.Min.X, nrgba.Rect.Min.Y+y)
		copy(dst.Pix[y*rowLen:(y+1)*rowLen], nrgba.Pix[srcOff:srcOff+rowLen])
	}
	return dst, nil
}

// ToNRGBA returns a copy of the raster as an *image.NRGBA.
func (r *Raster) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(r.Bounds())
	copy(out.Pix, r.Pix)
	return out
}

// view wraps Pix without copying. Callers must treat the result as read-only.
func (r *Raster) view() *image.NRGBA {
	return &image.NRGBA{Pix: r.Pix, Stride: r.Width * 4, Rect: r.Bounds()}
}

// newLike allocates an output raster with the same dimensions as r.
// r must already be valid.
func (r *Raster) newLike() *Raster {
	return &Raster{Width: r.Width, Height: r.Height, Pix: make([]uint8, len(r.Pix))}
}

// forEachRow runs fn for every row, spreading rows across CPUs.
// Rows are disjoint, so fn may write its own row of an output buffer freely.
// Remaining rows are skipped once ctx is done.
func forEachRow(ctx context.Context, height int, fn func(y int)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			if ctx.Err() != nil {
				return
			}
			fn(y)
		}
	})
	return ctx.Err()
}

// clamp8 rounds v to the nearest integer in [0,255].
func clamp8(v float64) uint8 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}

// clampFloat constrains v to [lo, hi].
func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clampInt constrains an integer value to the range [lo, hi].
func clampInt(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
