// Package analysis turns photo-analysis output into suggested settings.
//
// An external analysis service inspects the photo and answers with JSON,
// either wrapped in a {"success": ..., "analysis": ..., "error": ...}
// envelope or as a bare result object. Parse accepts both and Hints maps the
// result onto pipeline settings:
//
//   - globalAdjustments.exposure becomes the tone curve exposure (stops)
//   - globalAdjustments.contrast*10 becomes local contrast
//   - globalAdjustments.midtoneBoost*10 becomes shadows lift
//
// Explicit monochrome, tone_curve and levels objects in the result take
// precedence over the derived values. Highlight, shadow and dot gain warnings
// are surfaced as notes. Hints never modify anything by themselves; the caller
// applies them like any other settings edit.
package analysis
