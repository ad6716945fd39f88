// Package imaging provides the raster type and the tone-mapping transforms used
// to prepare a photograph for laser engraving.
//
// The package implements the deterministic pixel operations of the engraving
// pipeline: hue-bucketed monochrome conversion, the dodge & burn tone curve,
// levels with gamma and sharpening, and the luminance histogram. It also holds
// the thin decode/encode adapters that turn files into rasters and back.
//
// # Raster Layout
//
// A Raster is a row-major buffer of 8-bit R,G,B,A samples with straight
// (non-premultiplied) alpha:
//   - Pix[(y*Width+x)*4+0] is red, +1 green, +2 blue, +3 alpha
//   - len(Pix) is always Width*Height*4
//   - (0,0) is the top-left pixel
//
// # Immutability
//
// Rasters are never modified after they are produced. Every transform
// allocates a new output raster and leaves its input untouched, so a rejected
// preview can simply be dropped. Transforms are safe to call concurrently on
// the same input.
//
// # Luminance
//
// Two weightings are in use:
//   - Monochrome uses ITU-R BT.601 (0.299, 0.587, 0.114)
//   - ToneCurve, Levels and ComputeHistogram use ITU-R BT.709
//     (0.2126, 0.7152, 0.0722)
//
// For gray pixels (R == G == B) both return the channel value exactly.
//
// # Settings
//
// Transforms expect settings that have been through Normalize. Out-of-range
// values are clamped at that boundary rather than rejected.
//
// # Error Handling
//
// Functions return errors for:
//   - Invalid rasters (nil, non-positive dimensions, buffer length mismatch)
//   - Buffers that are too large to allocate (ErrResourceUnavailable)
//   - Undecodable input (*DecodeError, matching ErrDecode)
//   - Cancelled contexts
package imaging
