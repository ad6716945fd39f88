package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// CropRaster extracts a rectangular region as a new raster.
//
// (x1,y1) is inclusive and (x2,y2) is exclusive, matching image.Rect.
func CropRaster(src *Raster, x1, y1, x2, y2 int) (*Raster, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	// Validate coordinates
	if x1 < 0 || y1 < 0 || x2 > src.Width || y2 > src.Height {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (0,0)-(%d,%d)",
			x1, y1, x2, y2, src.Width, src.Height)
	}
	if x1 >= x2 || y1 >= y2 {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}

	return FromImage(imaging.Crop(src.view(), image.Rect(x1, y1, x2, y2)))
}

// RegionRect returns the rectangle of a named region of a width x height
// image: top-left, top-right, bottom-left, bottom-right, top-half,
// bottom-half, left-half, right-half or center (the middle 50% in each
// direction).
func RegionRect(width, height int, region string) (image.Rectangle, error) {
	midX := width / 2
	midY := height / 2

	var x1, y1, x2, y2 int

	switch region {
	case "top-left":
		x1, y1, x2, y2 = 0, 0, midX, midY
	case "top-right":
		x1, y1, x2, y2 = midX, 0, width, midY
	case "bottom-left":
		x1, y1, x2, y2 = 0, midY, midX, height
	case "bottom-right":
		x1, y1, x2, y2 = midX, midY, width, height
	case "top-half":
		x1, y1, x2, y2 = 0, 0, width, midY
	case "bottom-half":
		x1, y1, x2, y2 = 0, midY, width, height
	case "left-half":
		x1, y1, x2, y2 = 0, 0, midX, height
	case "right-half":
		x1, y1, x2, y2 = midX, 0, width, height
	case "center":
		qW := width / 4
		qH := height / 4
		x1, y1, x2, y2 = qW, qH, width-qW, height-qH
	default:
		return image.Rectangle{}, fmt.Errorf("unknown region: %s", region)
	}

	return image.Rect(x1, y1, x2, y2), nil
}

// CropRegion extracts a named region of a raster. See RegionRect.
func CropRegion(src *Raster, region string) (*Raster, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	rect, err := RegionRect(src.Width, src.Height, region)
	if err != nil {
		return nil, err
	}
	return CropRaster(src, rect.Min.X, rect.Min.Y, rect.Max.X, rect.Max.Y)
}
