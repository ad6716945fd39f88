package imaging

import (
	"testing"
)

// solid returns a w x h raster filled with one opaque color.
func solid(t *testing.T, w, h int, r, g, b uint8) *Raster {
	t.Helper()
	ras, err := NewRaster(w, h)
	if err != nil {
		t.Fatalf("NewRaster failed: %v", err)
	}
	for i := 0; i < len(ras.Pix); i += 4 {
		ras.Pix[i], ras.Pix[i+1], ras.Pix[i+2], ras.Pix[i+3] = r, g, b, 255
	}
	return ras
}

// grayRow returns a 1-row opaque gray raster with the given values.
func grayRow(t *testing.T, values ...uint8) *Raster {
	t.Helper()
	ras, err := NewRaster(len(values), 1)
	if err != nil {
		t.Fatalf("NewRaster failed: %v", err)
	}
	for x, v := range values {
		ras.Pix[x*4], ras.Pix[x*4+1], ras.Pix[x*4+2], ras.Pix[x*4+3] = v, v, v, 255
	}
	return ras
}

// channel returns channel c (0=R .. 3=A) of every pixel.
func channel(r *Raster, c int) []uint8 {
	out := make([]uint8, 0, r.PixelCount())
	for i := c; i < len(r.Pix); i += 4 {
		out = append(out, r.Pix[i])
	}
	return out
}

// isGray reports whether every pixel has R == G == B.
func isGray(r *Raster) bool {
	for i := 0; i < len(r.Pix); i += 4 {
		if r.Pix[i] != r.Pix[i+1] || r.Pix[i+1] != r.Pix[i+2] {
			return false
		}
	}
	return true
}
