package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/ironsheep/engrave-prep-mcp/internal/imaging"
)

// ErrMalformed is returned when the payload is neither an envelope nor a
// result object.
var ErrMalformed = errors.New("malformed analysis payload")

// ServiceError is the error reported inside an unsuccessful envelope.
type ServiceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ServiceError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("analysis failed: %s", e.Message)
	}
	return fmt.Sprintf("analysis failed (%s): %s", e.Code, e.Message)
}

// GlobalAdjustments are coarse tone suggestions.
type GlobalAdjustments struct {
	Exposure     *float64 `json:"exposure,omitempty"`
	Contrast     *float64 `json:"contrast,omitempty"`
	MidtoneBoost *float64 `json:"midtoneBoost,omitempty"`
}

// RangeWarning flags clipped highlights or blocked shadows.
type RangeWarning struct {
	HasIssue bool   `json:"hasIssue"`
	Message  string `json:"message"`
}

// DotGainRisk estimates how much dark tones will spread when burned.
type DotGainRisk struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// HalftoneSuggestion is a suggested halftone screen.
type HalftoneSuggestion struct {
	OutputDPI float64 `json:"outputDpi"`
	LPI       float64 `json:"lpi"`
	AngleDeg  float64 `json:"angleDeg"`
	Shape     string  `json:"shape"`
}

// EngraveSettings are suggested laser settings for the final job. They are
// reported back to the user, not applied to the image.
type EngraveSettings struct {
	Speed  float64 `json:"speed"`
	Power  float64 `json:"power"`
	LPI    float64 `json:"lpi"`
	Passes int     `json:"passes"`
	Focus  string  `json:"focus"`
}

func (e *EngraveSettings) String() string {
	plural := "es"
	if e.Passes == 1 {
		plural = ""
	}
	return fmt.Sprintf("Starting engrave settings: speed %g, power %g, %g LPI, %d pass%s, focus %s",
		e.Speed, e.Power, e.LPI, e.Passes, plural, e.Focus)
}

// Result is the analysis of one photo. Fields the pipeline has no use for
// (faces, background mask) are ignored.
type Result struct {
	GlobalAdjustments *GlobalAdjustments `json:"globalAdjustments,omitempty"`
	Notes             []string           `json:"notes,omitempty"`
	HighlightWarning  *RangeWarning      `json:"highlightWarning,omitempty"`
	ShadowWarning     *RangeWarning      `json:"shadowWarning,omitempty"`
	DotGainRisk       *DotGainRisk       `json:"dotGainRisk,omitempty"`

	Halftone                   *HalftoneSuggestion `json:"halftone,omitempty"`
	RecommendedEngraveSettings *EngraveSettings    `json:"recommendedEngraveSettings,omitempty"`

	Monochrome *imaging.HueBucketSettings `json:"monochrome,omitempty"`
	ToneCurve  *imaging.ToneCurveSettings `json:"tone_curve,omitempty"`
	Levels     *imaging.LevelsSettings    `json:"levels,omitempty"`
}

type envelope struct {
	Success  *bool         `json:"success"`
	Analysis *Result       `json:"analysis"`
	Error    *ServiceError `json:"error"`
}

// Parse decodes an analysis payload.
//
// # Errors
//
//   - *ServiceError if the envelope reports success=false
//   - ErrMalformed (wrapped) if data is not a JSON object of either shape
func Parse(data []byte) (*Result, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if env.Success != nil {
		if !*env.Success {
			if env.Error == nil {
				return nil, &ServiceError{Message: "no error details"}
			}
			return nil, env.Error
		}
		if env.Analysis == nil {
			return nil, fmt.Errorf("%w: successful envelope without analysis", ErrMalformed)
		}
		return env.Analysis, nil
	}

	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &res, nil
}

// Hints are suggested settings derived from a Result. Nil fields mean no
// suggestion for that stage.
type Hints struct {
	Monochrome *imaging.HueBucketSettings `json:"monochrome,omitempty"`
	ToneCurve  *imaging.ToneCurveSettings `json:"tone_curve,omitempty"`
	Levels     *imaging.LevelsSettings    `json:"levels,omitempty"`
	Halftone   *imaging.HalftoneSettings  `json:"halftone,omitempty"`

	// Engrave is passed through for display with the export.
	Engrave *EngraveSettings `json:"recommended_engrave_settings,omitempty"`

	Notes []string `json:"notes,omitempty"`
}

// Empty reports whether h suggests no settings at all.
func (h Hints) Empty() bool {
	return h.Monochrome == nil && h.ToneCurve == nil && h.Levels == nil && h.Halftone == nil
}

// Hints maps the result to suggested settings. All suggestions are
// normalized.
func (r *Result) Hints() Hints {
	var h Hints

	if r.Monochrome != nil {
		m := r.Monochrome.Normalize()
		h.Monochrome = &m
	}

	switch {
	case r.ToneCurve != nil:
		tc := r.ToneCurve.Normalize()
		h.ToneCurve = &tc
	case r.GlobalAdjustments != nil:
		tc := r.GlobalAdjustments.toneCurve().Normalize()
		h.ToneCurve = &tc
	}

	if r.Levels != nil {
		lv := r.Levels.Normalize()
		h.Levels = &lv
	}

	if r.Halftone != nil {
		ht := r.Halftone.settings().Normalize()
		h.Halftone = &ht
	}
	h.Engrave = r.RecommendedEngraveSettings

	h.Notes = append(h.Notes, r.Notes...)
	if w := r.HighlightWarning; w != nil && w.HasIssue {
		h.Notes = append(h.Notes, w.Message)
	}
	if w := r.ShadowWarning; w != nil && w.HasIssue {
		h.Notes = append(h.Notes, w.Message)
	}
	if d := r.DotGainRisk; d != nil {
		h.Notes = append(h.Notes, fmt.Sprintf("Dot gain risk (%s): %s", d.Level, d.Message))
	}
	if ht := r.Halftone; ht != nil {
		h.Notes = append(h.Notes, fmt.Sprintf("Halftone suggestion: %g dpi, %g LPI, angle %g°, shape %s",
			ht.OutputDPI, ht.LPI, ht.AngleDeg, ht.Shape))
	}
	if e := r.RecommendedEngraveSettings; e != nil {
		h.Notes = append(h.Notes, e.String())
	}
	return h
}

func (s *HalftoneSuggestion) settings() imaging.HalftoneSettings {
	return imaging.HalftoneSettings{
		OutputDPI: int(math.Round(s.OutputDPI)),
		LPI:       int(math.Round(s.LPI)),
		AngleDeg:  s.AngleDeg,
		Shape:     s.Shape,
	}
}

func (g *GlobalAdjustments) toneCurve() imaging.ToneCurveSettings {
	var tc imaging.ToneCurveSettings
	if g.Exposure != nil {
		tc.OverallExposure = *g.Exposure
	}
	if g.Contrast != nil {
		tc.LocalContrast = *g.Contrast * 10
	}
	if g.MidtoneBoost != nil {
		tc.ShadowsLift = *g.MidtoneBoost * 10
	}
	return tc
}
