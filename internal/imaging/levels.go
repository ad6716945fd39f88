package imaging

import (
	"context"
	"image"
	"math"

	"github.com/anthonynsimon/bild/convolution"
)

// sharpenKernel is the 3x3 Laplacian sharpen:
//
//	 0 -1  0
//	-1  5 -1
//	 0 -1  0
//
// Its weights sum to 1, so flat regions are left unchanged.
var sharpenKernel = convolution.Kernel{
	Matrix: []float64{
		0, -1, 0,
		-1, 5, -1,
		0, -1, 0,
	},
	Width:  3,
	Height: 3,
}

// Levels applies black/white point normalization with gamma, then sharpens.
//
// # Pass 1: Levels
//
// For each pixel's BT.709 luminance l:
//
//	out = 255 * clamp((l - BlackPoint) / (WhitePoint - BlackPoint), 0, 1) ^ (1/Gamma)
//
// BlackPoint is clamped to [0,254] and WhitePoint to [BlackPoint+1, 255]
// before use, so the divisor is never zero.
//
// # Pass 2: Sharpen
//
// The sharpen kernel is convolved over the complete pass-1 buffer with edge
// pixels replicated outward. The convolved value is clamped to [0,255] and
// blended with the pass-1 value:
//
//	out = pass1*(1-a) + sharpened*a,  a = SharpenAmount/100
//
// SharpenAmount <= 0 skips pass 2, so the output is exactly the levels pass.
//
// Alpha is copied unchanged.
func Levels(ctx context.Context, src *Raster, s LevelsSettings) (*Raster, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	leveled, err := levelsPass(ctx, src, s)
	if err != nil {
		return nil, err
	}

	dst := src.newLike()
	rowLen := src.Width * 4

	if s.SharpenAmount <= 0 {
		err = forEachRow(ctx, src.Height, func(y int) {
			gray := leveled.Pix[y*leveled.Stride : y*leveled.Stride+src.Width]
			writeGrayRow(dst.Pix[y*rowLen:(y+1)*rowLen], src.Pix[y*rowLen:(y+1)*rowLen], gray)
		})
		if err != nil {
			return nil, err
		}
		return dst, nil
	}

	// Non-wrapping convolution pads the source by extending its edge pixels.
	sharpened := convolution.Convolve(leveled, &sharpenKernel, &convolution.Options{Wrap: false})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mix := math.Min(s.SharpenAmount, 100) / 100
	err = forEachRow(ctx, src.Height, func(y int) {
		srcRow := src.Pix[y*rowLen : (y+1)*rowLen]
		out := dst.Pix[y*rowLen : (y+1)*rowLen]
		for x := 0; x < src.Width; x++ {
			p1 := float64(leveled.Pix[y*leveled.Stride+x])
			conv := float64(sharpened.Pix[sharpened.PixOffset(x, y)])
			v := clamp8(p1*(1-mix) + conv*mix)
			i := x * 4
			out[i], out[i+1], out[i+2], out[i+3] = v, v, v, srcRow[i+3]
		}
	})
	if err != nil {
		return nil, err
	}
	return dst, nil
}

// levelsPass computes pass 1 into a fresh gray buffer.
func levelsPass(ctx context.Context, src *Raster, s LevelsSettings) (*image.Gray, error) {
	bp := clampFloat(s.BlackPoint, 0, 254)
	wp := clampFloat(s.WhitePoint, bp+1, 255)
	invGamma := 1 / math.Max(s.Gamma, 0.0001)
	span := wp - bp

	gray := image.NewGray(src.Bounds())
	rowLen := src.Width * 4

	err := forEachRow(ctx, src.Height, func(y int) {
		row := src.Pix[y*rowLen : (y+1)*rowLen]
		out := gray.Pix[y*gray.Stride : y*gray.Stride+src.Width]
		for x := range out {
			i := x * 4
			n := clampFloat((Luma709(row[i], row[i+1], row[i+2])-bp)/span, 0, 1)
			out[x] = clamp8(math.Pow(n, invGamma) * 255)
		}
	})
	if err != nil {
		return nil, err
	}
	return gray, nil
}

// writeGrayRow expands one row of gray samples into RGBA, keeping src alpha.
func writeGrayRow(dst, src []uint8, gray []uint8) {
	for x, v := range gray {
		i := x * 4
		dst[i], dst[i+1], dst[i+2], dst[i+3] = v, v, v, src[i+3]
	}
}
