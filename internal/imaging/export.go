package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// ExportSettings sizes the final raster for the engraver.
//
// The output is resized to WidthInches*DPI by HeightInches*DPI pixels. A zero
// value for any field keeps the raster at its native size.
type ExportSettings struct {
	WidthInches  float64 `json:"width_inches" yaml:"width_inches"`
	HeightInches float64 `json:"height_inches" yaml:"height_inches"`
	DPI          int     `json:"dpi" yaml:"dpi"`
}

// DefaultExportSettings returns 6x8 inches at 320 dpi.
func DefaultExportSettings() ExportSettings {
	return ExportSettings{WidthInches: 6, HeightInches: 8, DPI: 320}
}

// PixelSize returns the target size in pixels, or ok=false when the settings
// ask for the native size.
func (e ExportSettings) PixelSize() (width, height int, ok bool) {
	if e.WidthInches <= 0 || e.HeightInches <= 0 || e.DPI <= 0 {
		return 0, 0, false
	}
	width = int(math.Round(e.WidthInches * float64(e.DPI)))
	height = int(math.Round(e.HeightInches * float64(e.DPI)))
	if width <= 0 || height <= 0 {
		return 0, 0, false
	}
	return width, height, true
}

// ExportResult describes an encoded export.
type ExportResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Path        string `json:"path,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
	MimeType    string `json:"mime_type"`
}

// EncodeRaster writes r unchanged in the format named by ext (".png",
// ".jpg", ".tif", ...).
func EncodeRaster(w io.Writer, r *Raster, ext string) error {
	if err := r.Validate(); err != nil {
		return err
	}
	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return fmt.Errorf("unsupported export format %q: %w", ext, err)
	}
	if err := imaging.Encode(w, r.view(), format); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return nil
}

// ExportRaster resizes r to the export size with a Lanczos filter and encodes
// it in the format named by ext. It returns the written dimensions. Without a
// physical size, or when the size already matches, r is written unchanged.
func ExportRaster(w io.Writer, r *Raster, es ExportSettings, ext string) (width, height int, err error) {
	if err := r.Validate(); err != nil {
		return 0, 0, err
	}
	tw, th, ok := es.PixelSize()
	if !ok || (tw == r.Width && th == r.Height) {
		if err := EncodeRaster(w, r, ext); err != nil {
			return 0, 0, err
		}
		return r.Width, r.Height, nil
	}

	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return 0, 0, fmt.Errorf("unsupported export format %q: %w", ext, err)
	}
	img := imaging.Resize(r.view(), tw, th, imaging.Lanczos)
	if err := imaging.Encode(w, img, format); err != nil {
		return 0, 0, fmt.Errorf("failed to encode image: %w", err)
	}
	return tw, th, nil
}

// ExportFile exports r to path, picking the format from its extension.
func ExportFile(path string, r *Raster, es ExportSettings) (*ExportResult, error) {
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return nil, fmt.Errorf("unsupported export format for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create export file: %w", err)
	}

	width, height, err := ExportRaster(f, r, es, filepath.Ext(path))
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close export file: %w", cerr)
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	return &ExportResult{
		Width:    width,
		Height:   height,
		Path:     path,
		MimeType: mimeType(format),
	}, nil
}

// EncodePreview encodes r as a base64 PNG for display, scaled down with a
// Lanczos filter so neither side exceeds maxDimension. maxDimension <= 0
// keeps the native size.
func EncodePreview(r *Raster, maxDimension int) (*ExportResult, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	var img image.Image = r.view()
	if maxDimension > 0 && (r.Width > maxDimension || r.Height > maxDimension) {
		img = imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	b := img.Bounds()
	return &ExportResult{
		Width:       b.Dx(),
		Height:      b.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

func mimeType(f imaging.Format) string {
	switch f {
	case imaging.JPEG:
		return "image/jpeg"
	case imaging.GIF:
		return "image/gif"
	case imaging.TIFF:
		return "image/tiff"
	case imaging.BMP:
		return "image/bmp"
	default:
		return "image/png"
	}
}
