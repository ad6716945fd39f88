package imaging

import (
	"context"
	"math"
)

// ToneCurve applies the dodge & burn adjustments to a grayscale raster.
//
// Stages run per pixel in a fixed order, each clamped to [0,255]:
//
//  1. Exposure: v * 2^OverallExposure
//  2. Shadow lift: n + (ShadowsLift/100)*(1-n)
//  3. Highlight recovery: n - (HighlightsRecover/100)*n*(n-0.5)
//  4. Local contrast: 0.5 + (n-0.5)*(1+LocalContrast/100)
//
// where n is the running value normalized to [0,1]. Stages 2-4 are skipped
// when their setting is zero. Swapping stages changes the result.
//
// The input luminance is taken with BT.709 weights, which for a gray pixel is
// just its channel value. Alpha is copied unchanged.
func ToneCurve(ctx context.Context, src *Raster, s ToneCurveSettings) (*Raster, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	gain := math.Pow(2, s.OverallExposure)
	dst := src.newLike()
	rowLen := src.Width * 4

	err := forEachRow(ctx, src.Height, func(y int) {
		row := src.Pix[y*rowLen : (y+1)*rowLen]
		out := dst.Pix[y*rowLen : (y+1)*rowLen]
		for i := 0; i < rowLen; i += 4 {
			v := clamp8(toneCurveValue(Luma709(row[i], row[i+1], row[i+2]), gain, s))
			out[i], out[i+1], out[i+2], out[i+3] = v, v, v, row[i+3]
		}
	})
	if err != nil {
		return nil, err
	}
	return dst, nil
}

// toneCurveValue runs the four stages on one luminance value in [0,255].
func toneCurveValue(luma, gain float64, s ToneCurveSettings) float64 {
	v := clampFloat(luma*gain, 0, 255)

	if s.ShadowsLift != 0 {
		n := v / 255
		v = clampFloat((n+(s.ShadowsLift/100)*(1-n))*255, 0, 255)
	}
	if s.HighlightsRecover != 0 {
		n := v / 255
		v = clampFloat((n-(s.HighlightsRecover/100)*n*(n-0.5))*255, 0, 255)
	}
	if s.LocalContrast != 0 {
		n := v / 255
		v = clampFloat((0.5+(n-0.5)*(1+s.LocalContrast/100))*255, 0, 255)
	}
	return v
}
