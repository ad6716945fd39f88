package imaging

import (
	"math"
	"strings"
)

// HueBucketSettings holds one slider per 60°-wide hue sector.
//
// Each slider ranges over [-100, 100] and scales the luminance of pixels in
// its sector by 1 + slider/200 (so -100 halves, +100 brightens by 50%).
type HueBucketSettings struct {
	Red     float64 `json:"red" yaml:"red"`
	Yellow  float64 `json:"yellow" yaml:"yellow"`
	Green   float64 `json:"green" yaml:"green"`
	Cyan    float64 `json:"cyan" yaml:"cyan"`
	Blue    float64 `json:"blue" yaml:"blue"`
	Magenta float64 `json:"magenta" yaml:"magenta"`
}

// Normalize clamps every slider to [-100, 100]. NaN becomes 0.
func (s HueBucketSettings) Normalize() HueBucketSettings {
	return HueBucketSettings{
		Red:     clampSetting(s.Red, -100, 100, 0),
		Yellow:  clampSetting(s.Yellow, -100, 100, 0),
		Green:   clampSetting(s.Green, -100, 100, 0),
		Cyan:    clampSetting(s.Cyan, -100, 100, 0),
		Blue:    clampSetting(s.Blue, -100, 100, 0),
		Magenta: clampSetting(s.Magenta, -100, 100, 0),
	}
}

// Slider returns the slider value for a bucket.
func (s HueBucketSettings) Slider(b HueBucket) float64 {
	switch b {
	case BucketYellow:
		return s.Yellow
	case BucketGreen:
		return s.Green
	case BucketCyan:
		return s.Cyan
	case BucketBlue:
		return s.Blue
	case BucketMagenta:
		return s.Magenta
	default:
		return s.Red
	}
}

// factors returns the per-bucket luminance multipliers indexed by HueBucket.
func (s HueBucketSettings) factors() [bucketCount]float64 {
	var f [bucketCount]float64
	for b := HueBucket(0); b < bucketCount; b++ {
		f[b] = 1 + s.Slider(b)/200
	}
	return f
}

// ToneCurveSettings drives the dodge & burn pass.
type ToneCurveSettings struct {
	// OverallExposure is in stops, [-2, 2]. The luminance is multiplied by 2^OverallExposure.
	OverallExposure float64 `json:"overall_exposure" yaml:"overall_exposure"`

	// ShadowsLift in [-100, 100] brightens dark tones more than light ones.
	ShadowsLift float64 `json:"shadows_lift" yaml:"shadows_lift"`

	// HighlightsRecover in [-100, 100] pulls bright tones toward mid-gray.
	HighlightsRecover float64 `json:"highlights_recover" yaml:"highlights_recover"`

	// LocalContrast in [-100, 100] scales tones around mid-gray by 1 + LocalContrast/100.
	LocalContrast float64 `json:"local_contrast" yaml:"local_contrast"`
}

// Normalize clamps every field to its declared range. NaN becomes 0.
func (s ToneCurveSettings) Normalize() ToneCurveSettings {
	return ToneCurveSettings{
		OverallExposure:   clampSetting(s.OverallExposure, -2, 2, 0),
		ShadowsLift:       clampSetting(s.ShadowsLift, -100, 100, 0),
		HighlightsRecover: clampSetting(s.HighlightsRecover, -100, 100, 0),
		LocalContrast:     clampSetting(s.LocalContrast, -100, 100, 0),
	}
}

// LevelsSettings drives the levels, gamma and sharpen pass.
//
// BlackPoint must stay strictly below WhitePoint; Normalize and
// NormalizeAgainst enforce that by moving one of the two points.
type LevelsSettings struct {
	BlackPoint    float64 `json:"black_point" yaml:"black_point"`       // [0, 254]
	WhitePoint    float64 `json:"white_point" yaml:"white_point"`       // [1, 255]
	Gamma         float64 `json:"gamma" yaml:"gamma"`                   // [0.5, 2.5]
	SharpenAmount float64 `json:"sharpen_amount" yaml:"sharpen_amount"` // [0, 100]
}

// DefaultLevelsSettings returns the identity levels with a mild sharpen.
func DefaultLevelsSettings() LevelsSettings {
	return LevelsSettings{
		BlackPoint:    0,
		WhitePoint:    255,
		Gamma:         1,
		SharpenAmount: 30,
	}
}

// Normalize clamps every field and, if BlackPoint >= WhitePoint, pulls the
// black point down to WhitePoint-1.
func (s LevelsSettings) Normalize() LevelsSettings {
	out := s.clampRanges()
	if out.BlackPoint >= out.WhitePoint {
		out.BlackPoint = out.WhitePoint - 1
	}
	return out
}

// NormalizeAgainst is Normalize for an edit of prev. When the edit leaves
// BlackPoint >= WhitePoint, the point the user did not move stays put and the
// moved one is pushed back: a white point dragged down to the black point
// becomes BlackPoint+1, a black point dragged up becomes WhitePoint-1.
func (s LevelsSettings) NormalizeAgainst(prev LevelsSettings) LevelsSettings {
	out := s.clampRanges()
	if out.BlackPoint < out.WhitePoint {
		return out
	}
	if out.WhitePoint != prev.WhitePoint && out.BlackPoint == prev.BlackPoint {
		out.WhitePoint = out.BlackPoint + 1
		return out
	}
	out.BlackPoint = out.WhitePoint - 1
	return out
}

func (s LevelsSettings) clampRanges() LevelsSettings {
	return LevelsSettings{
		BlackPoint:    clampSetting(s.BlackPoint, 0, 254, 0),
		WhitePoint:    clampSetting(s.WhitePoint, 1, 255, 255),
		Gamma:         clampSetting(s.Gamma, 0.5, 2.5, 1),
		SharpenAmount: clampSetting(s.SharpenAmount, 0, 100, 0),
	}
}

// Halftone cell shapes.
const (
	ShapeLine    = "line"
	ShapeRound   = "round"
	ShapeSquare  = "square"
	ShapeEllipse = "ellipse"
)

// HalftoneSettings describe the screen the engraver software applies to the
// exported grayscale image. They travel with the export; no pass here
// renders them.
type HalftoneSettings struct {
	OutputDPI int     `json:"output_dpi" yaml:"output_dpi"` // [150, 600]
	LPI       int     `json:"lpi" yaml:"lpi"`               // [40, 140]
	AngleDeg  float64 `json:"angle_deg" yaml:"angle_deg"`   // [-90, 90]
	Shape     string  `json:"shape" yaml:"shape"`           // line, round, square or ellipse
}

// DefaultHalftoneSettings returns a line screen suited to portraits on wood.
func DefaultHalftoneSettings() HalftoneSettings {
	return HalftoneSettings{OutputDPI: 320, LPI: 80, AngleDeg: -35, Shape: ShapeLine}
}

// Normalize clamps the numeric fields and canonicalizes Shape. A DPI or LPI
// that is not positive takes the default, "dot" means round and any other
// unknown shape becomes line.
func (s HalftoneSettings) Normalize() HalftoneSettings {
	def := DefaultHalftoneSettings()
	out := HalftoneSettings{
		OutputDPI: def.OutputDPI,
		LPI:       def.LPI,
		AngleDeg:  clampSetting(s.AngleDeg, -90, 90, def.AngleDeg),
		Shape:     ShapeLine,
	}
	if s.OutputDPI > 0 {
		out.OutputDPI = clampInt(s.OutputDPI, 150, 600)
	}
	if s.LPI > 0 {
		out.LPI = clampInt(s.LPI, 40, 140)
	}
	switch shape := strings.ToLower(strings.TrimSpace(s.Shape)); shape {
	case ShapeRound, ShapeSquare, ShapeEllipse:
		out.Shape = shape
	case "dot":
		out.Shape = ShapeRound
	}
	return out
}

// Presets are named settings bundles per stage.
type Presets struct {
	Monochrome map[string]HueBucketSettings `json:"monochrome" yaml:"monochrome"`
	ToneCurve  map[string]ToneCurveSettings `json:"tone_curve" yaml:"tone_curve"`
	Levels     map[string]LevelsSettings    `json:"levels" yaml:"levels"`
	Halftone   map[string]HalftoneSettings  `json:"halftone" yaml:"halftone"`
}

// DefaultPresets returns the built-in presets.
func DefaultPresets() Presets {
	return Presets{
		Monochrome: map[string]HueBucketSettings{
			"neutral":       {},
			"portrait-soft": {Red: 20, Yellow: 10, Blue: -10},
			"sky-contrast":  {Cyan: -30, Blue: -40, Yellow: 15},
		},
		ToneCurve: map[string]ToneCurveSettings{
			"neutral":         {},
			"lighten-subject": {OverallExposure: -0.1, ShadowsLift: 10, HighlightsRecover: 10, LocalContrast: 5},
		},
		Levels: map[string]LevelsSettings{
			"default":    DefaultLevelsSettings(),
			"no-sharpen": {BlackPoint: 0, WhitePoint: 255, Gamma: 1, SharpenAmount: 0},
		},
		Halftone: map[string]HalftoneSettings{
			"maple-portrait":    DefaultHalftoneSettings(),
			"extra-smooth-skin": {OutputDPI: 300, LPI: 70, AngleDeg: -15, Shape: ShapeRound},
		},
	}
}

func clampSetting(v, lo, hi, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}
	return clampFloat(v, lo, hi)
}
