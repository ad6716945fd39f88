package imaging

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// DecodeRaster decodes an encoded image (PNG, JPEG, GIF, BMP, TIFF or WebP)
// into a Raster.
//
// JPEG EXIF orientation is applied, so phone photos come out upright.
//
// # Errors
//
//   - *DecodeError (matching ErrDecode) if the data is not a decodable image
//   - ErrResourceUnavailable if the decoded size cannot be allocated
func DecodeRaster(r io.Reader) (*Raster, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return FromImage(img)
}

// RasterCache provides thread-safe caching of decoded rasters to avoid
// redundant disk reads and decodes.
//
// Rasters are keyed by the exact path string passed to Load. Because rasters
// are immutable, the same cached value can be handed to any number of
// pipelines.
//
// # Memory Management
//
// Cached rasters remain in memory until removed via Evict() or Clear().
type RasterCache struct {
	mu      sync.RWMutex
	rasters map[string]*Raster
}

// NewRasterCache creates an empty cache.
func NewRasterCache() *RasterCache {
	return &RasterCache{
		rasters: make(map[string]*Raster),
	}
}

// Load returns the cached raster for path or decodes it from disk.
//
// # Errors
//
//   - Returns a wrapped os error if the file cannot be opened
//   - Returns *DecodeError if the file is not a supported image
func (c *RasterCache) Load(path string) (*Raster, error) {
	c.mu.RLock()
	if r, ok := c.rasters[path]; ok {
		c.mu.RUnlock()
		return r, nil
	}
	c.mu.RUnlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	r, err := DecodeRaster(f)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.Source = path
		}
		return nil, err
	}

	c.mu.Lock()
	c.rasters[path] = r
	c.mu.Unlock()

	return r, nil
}

// Clear removes all rasters from the cache.
func (c *RasterCache) Clear() {
	c.mu.Lock()
	c.rasters = make(map[string]*Raster)
	c.mu.Unlock()
}

// Evict removes the raster cached for path, if any.
func (c *RasterCache) Evict(path string) {
	c.mu.Lock()
	delete(c.rasters, path)
	c.mu.Unlock()
}

// Len returns the number of cached rasters.
func (c *RasterCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rasters)
}

// RasterInfo describes a loaded image file.
type RasterInfo struct {
	// Width is the raster width in pixels.
	Width int `json:"width"`

	// Height is the raster height in pixels.
	Height int `json:"height"`

	// Format is the file format derived from the extension: "png", "jpeg",
	// "gif", "tiff", "bmp", or "unknown".
	Format string `json:"format"`

	// HasAlpha reports whether any pixel is not fully opaque.
	HasAlpha bool `json:"has_alpha"`

	// Grayscale reports whether every pixel has R == G == B.
	Grayscale bool `json:"grayscale"`

	// FileSizeBytes is the size of the file on disk.
	FileSizeBytes int64 `json:"file_size_bytes"`

	// HueShare is the fraction of chromatic pixels in each hue bucket, keyed
	// by bucket name. It shows which monochrome sliders will have an effect.
	// Nil for grayscale images.
	HueShare map[string]float64 `json:"hue_share,omitempty"`

	// MeanSaturation is the average HSV saturation in [0, 1].
	MeanSaturation float64 `json:"mean_saturation"`
}

// LoadRasterInfo loads path through the cache and describes it.
func LoadRasterInfo(cache *RasterCache, path string) (*RasterInfo, error) {
	r, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	info := Describe(r)
	info.FileSizeBytes = stat.Size()
	if f, err := imaging.FormatFromFilename(path); err == nil {
		info.Format = strings.ToLower(f.String())
	}
	return info, nil
}

// Describe reports the dimensions and pixel properties of a raster.
func Describe(r *Raster) *RasterInfo {
	info := &RasterInfo{
		Width:     r.Width,
		Height:    r.Height,
		Format:    "unknown",
		Grayscale: true,
	}

	var counts [bucketCount]int
	chromatic := 0
	satSum := 0.0
	for i := 0; i < len(r.Pix); i += 4 {
		cr, cg, cb := r.Pix[i], r.Pix[i+1], r.Pix[i+2]
		if r.Pix[i+3] != 0xFF {
			info.HasAlpha = true
		}
		if cr == cg && cg == cb {
			continue
		}
		_, sat, _ := HSV(cr, cg, cb)
		satSum += sat
		counts[ClassifyHue(cr, cg, cb)]++
		chromatic++
	}

	if n := r.PixelCount(); n > 0 {
		info.MeanSaturation = roundTo(satSum/float64(n), 3)
	}
	if chromatic > 0 {
		info.Grayscale = false
		info.HueShare = make(map[string]float64, bucketCount)
		for b, c := range counts {
			if c > 0 {
				info.HueShare[HueBucket(b).String()] = roundTo(float64(c)/float64(chromatic), 3)
			}
		}
	}
	return info
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
