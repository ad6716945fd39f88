package imaging

import (
	colorful "github.com/lucasb-eyer/go-colorful"
)

// HueBucket is one of six 60°-wide sectors of the color wheel.
//
// Sector boundaries (degrees, lower bound inclusive):
//   - Red:     [330, 360) and [0, 30)
//   - Yellow:  [30, 90)
//   - Green:   [90, 150)
//   - Cyan:    [150, 210)
//   - Blue:    [210, 270)
//   - Magenta: [270, 330)
type HueBucket int

const (
	BucketRed HueBucket = iota
	BucketYellow
	BucketGreen
	BucketCyan
	BucketBlue
	BucketMagenta

	bucketCount
)

var bucketNames = [bucketCount]string{"red", "yellow", "green", "cyan", "blue", "magenta"}

func (b HueBucket) String() string {
	if b < 0 || b >= bucketCount {
		return "unknown"
	}
	return bucketNames[b]
}

// HSV returns the hue in [0, 360), saturation and value in [0, 1] of an
// 8-bit color. Achromatic colors report hue 0.
//
// The hue is a float and may land a hair below a sector boundary, so use
// ClassifyHue, not the hue angle, to pick a bucket.
func HSV(r, g, b uint8) (h, s, v float64) {
	return colorful.Color{
		R: float64(r) / 255.0,
		G: float64(g) / 255.0,
		B: float64(b) / 255.0,
	}.Hsv()
}

// ClassifyHue returns the hue bucket of an 8-bit color.
//
// The bucket is decided on the integer channels, so colors exactly on a
// sector boundary (hue 30, 90, ... 330) always land in the upper sector.
// With d = max-min, the hue inside the dominant channel's 120° span is
// offset by 60*(a-b)/d from its center, and the boundaries at ±30° reduce
// to comparing 2*(a-b) against d. Achromatic colors are red.
func ClassifyHue(r, g, b uint8) HueBucket {
	ri, gi, bi := int(r), int(g), int(b)
	hi := max(ri, gi, bi)
	d := hi - min(ri, gi, bi)
	if d == 0 {
		return BucketRed
	}

	switch hi {
	case ri:
		// hue = 60*(g-b)/d, wrapping below 0.
		if gi >= bi {
			if 2*(gi-bi) >= d {
				return BucketYellow
			}
			return BucketRed
		}
		if 2*(bi-gi) <= d {
			return BucketRed
		}
		return BucketMagenta
	case gi:
		// hue = 120 + 60*(b-r)/d
		if bi >= ri {
			if 2*(bi-ri) >= d {
				return BucketCyan
			}
			return BucketGreen
		}
		if 2*(ri-bi) > d {
			return BucketYellow
		}
		return BucketGreen
	default:
		// hue = 240 + 60*(r-g)/d
		if ri >= gi {
			if 2*(ri-gi) >= d {
				return BucketMagenta
			}
			return BucketBlue
		}
		if 2*(gi-ri) > d {
			return BucketCyan
		}
		return BucketBlue
	}
}

// Luma601 computes ITU-R BT.601 luminance (0.299*R + 0.587*G + 0.114*B).
func Luma601(r, g, b uint8) float64 {
	if r == g && g == b {
		return float64(r)
	}
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// Luma709 computes ITU-R BT.709 luminance (0.2126*R + 0.7152*G + 0.0722*B).
func Luma709(r, g, b uint8) float64 {
	if r == g && g == b {
		return float64(r)
	}
	return 0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(b)
}
