package imaging

import (
	"context"
)

// Monochrome converts a color raster to grayscale with per-hue-bucket weighting.
//
// Each pixel's BT.601 luminance is multiplied by its hue bucket's factor
// (1 + slider/200), clamped to [0,255] and rounded. R, G and B of the output
// all carry that value; alpha is copied unchanged.
//
// With all-zero settings the output is the plain BT.601 luminance, and applying
// the transform to its own output changes nothing.
//
// Parameters:
//   - ctx: Cancels the conversion between rows.
//   - src: Source raster. Not modified.
//   - s: Slider values, expected to be normalized.
//
// Returns a new raster with the same dimensions as src.
func Monochrome(ctx context.Context, src *Raster, s HueBucketSettings) (*Raster, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	factors := s.factors()
	dst := src.newLike()
	rowLen := src.Width * 4

	err := forEachRow(ctx, src.Height, func(y int) {
		row := src.Pix[y*rowLen : (y+1)*rowLen]
		out := dst.Pix[y*rowLen : (y+1)*rowLen]
		for i := 0; i < rowLen; i += 4 {
			r, g, b := row[i], row[i+1], row[i+2]
			v := clamp8(Luma601(r, g, b) * factors[ClassifyHue(r, g, b)])
			out[i], out[i+1], out[i+2], out[i+3] = v, v, v, row[i+3]
		}
	})
	if err != nil {
		return nil, err
	}
	return dst, nil
}
