package imaging

import "math"

// HistogramBins is the number of luminance bins.
const HistogramBins = 256

// Histogram is a normalized luminance histogram.
//
// Index i holds the relative population of luminance i, scaled so the most
// populous bin is 100. Values are integers in [0, 100].
type Histogram [HistogramBins]int

// ComputeHistogram counts pixels per BT.709 luminance bin and normalizes the
// counts against the fullest bin.
//
// Luminance is rounded to the nearest integer to pick the bin. Each bin is
// then scaled as round(count / maxCount * 100). An image whose pixels all fall
// into one bin yields a single 100 and 255 zeros.
//
// The only error is an invalid raster. Callers generally treat a histogram
// failure as non-fatal and simply omit it.
func ComputeHistogram(src *Raster) (Histogram, error) {
	var hist Histogram
	if err := src.Validate(); err != nil {
		return hist, err
	}

	var counts [HistogramBins]int
	for i := 0; i < len(src.Pix); i += 4 {
		bin := int(math.Round(Luma709(src.Pix[i], src.Pix[i+1], src.Pix[i+2])))
		counts[clampInt(bin, 0, HistogramBins-1)]++
	}

	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}
	if maxCount == 0 {
		maxCount = 1
	}

	for i, c := range counts {
		hist[i] = int(math.Round(float64(c) / float64(maxCount) * 100))
	}
	return hist, nil
}

// Max returns the largest bin value (100 for any non-empty image).
func (h Histogram) Max() int {
	m := 0
	for _, v := range h {
		if v > m {
			m = v
		}
	}
	return m
}
