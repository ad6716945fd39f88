package analysis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/engrave-prep-mcp/internal/imaging"
)

func TestParse_Envelope(t *testing.T) {
	data := []byte(`{
		"success": true,
		"analysis": {
			"faces": [],
			"backgroundMask": null,
			"globalAdjustments": {"exposure": 0.2, "contrast": -1, "midtoneBoost": 1.5},
			"notes": ["Subject is slightly underexposed"],
			"highlightWarning": {"hasIssue": true, "message": "Forehead highlights clip"},
			"shadowWarning": {"hasIssue": false, "message": "ignored"},
			"dotGainRisk": {"level": "medium", "message": "Dark hair may fill in"}
		}
	}`)

	res, err := Parse(data)
	require.NoError(t, err)
	require.NotNil(t, res.GlobalAdjustments)
	assert.Equal(t, []string{"Subject is slightly underexposed"}, res.Notes)

	h := res.Hints()
	require.NotNil(t, h.ToneCurve)
	assert.InDelta(t, 0.2, h.ToneCurve.OverallExposure, 1e-9)
	assert.InDelta(t, -10, h.ToneCurve.LocalContrast, 1e-9)
	assert.InDelta(t, 15, h.ToneCurve.ShadowsLift, 1e-9)
	assert.Zero(t, h.ToneCurve.HighlightsRecover)
	assert.Nil(t, h.Monochrome)
	assert.Nil(t, h.Levels)

	assert.Equal(t, []string{
		"Subject is slightly underexposed",
		"Forehead highlights clip",
		"Dot gain risk (medium): Dark hair may fill in",
	}, h.Notes)
}

func TestParse_BareResult(t *testing.T) {
	res, err := Parse([]byte(`{"globalAdjustments": {"exposure": -0.5}}`))
	require.NoError(t, err)

	h := res.Hints()
	require.NotNil(t, h.ToneCurve)
	assert.Equal(t, imaging.ToneCurveSettings{OverallExposure: -0.5}, *h.ToneCurve)
	assert.Empty(t, h.Notes)
}

func TestParse_ServiceError(t *testing.T) {
	_, err := Parse([]byte(`{"success": false, "error": {"code": "RATE_LIMIT", "message": "try later"}}`))
	require.Error(t, err)

	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "RATE_LIMIT", se.Code)
	assert.Equal(t, "analysis failed (RATE_LIMIT): try later", err.Error())
}

func TestParse_ServiceErrorWithoutDetails(t *testing.T) {
	_, err := Parse([]byte(`{"success": false}`))

	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "no error details", se.Message)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"array", `[1,2,3]`},
		{"truncated", `{"success": true`},
		{"success without analysis", `{"success": true}`},
		{"wrong type", `{"globalAdjustments": "high"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestHints_ExplicitSettingsWin(t *testing.T) {
	res, err := Parse([]byte(`{
		"globalAdjustments": {"exposure": 1, "contrast": 2, "midtoneBoost": 3},
		"tone_curve": {"overall_exposure": 0.5, "shadows_lift": 12},
		"monochrome": {"red": 150, "blue": -20},
		"levels": {"black_point": 200, "white_point": 100, "gamma": 1.2, "sharpen_amount": 40}
	}`))
	require.NoError(t, err)

	h := res.Hints()
	assert.False(t, h.Empty())
	assert.Equal(t, imaging.ToneCurveSettings{OverallExposure: 0.5, ShadowsLift: 12}, *h.ToneCurve)
	assert.Equal(t, imaging.HueBucketSettings{Red: 100, Blue: -20}, *h.Monochrome)
	assert.Equal(t, imaging.LevelsSettings{BlackPoint: 99, WhitePoint: 100, Gamma: 1.2, SharpenAmount: 40}, *h.Levels)
}

func TestHints_ClampsDerivedToneCurve(t *testing.T) {
	res, err := Parse([]byte(`{"globalAdjustments": {"exposure": 5, "contrast": 50}}`))
	require.NoError(t, err)

	h := res.Hints()
	assert.Equal(t, imaging.ToneCurveSettings{OverallExposure: 2, LocalContrast: 100}, *h.ToneCurve)
}

func TestHints_Empty(t *testing.T) {
	res, err := Parse([]byte(`{"notes": ["Nothing to suggest"]}`))
	require.NoError(t, err)

	h := res.Hints()
	assert.True(t, h.Empty())
	assert.Equal(t, []string{"Nothing to suggest"}, h.Notes)
}

func TestHints_HalftoneAndEngraveSettings(t *testing.T) {
	res, err := Parse([]byte(`{
		"success": true,
		"analysis": {
			"notes": [],
			"halftone": {"outputDpi": 340, "lpi": 85.4, "angleDeg": -30, "shape": "dot"},
			"recommendedEngraveSettings": {"speed": 1000, "power": 55, "lpi": 340, "passes": 1, "focus": "auto"}
		}
	}`))
	require.NoError(t, err)

	h := res.Hints()
	assert.False(t, h.Empty())
	require.NotNil(t, h.Halftone)
	assert.Equal(t, imaging.HalftoneSettings{OutputDPI: 340, LPI: 85, AngleDeg: -30, Shape: imaging.ShapeRound}, *h.Halftone)
	require.NotNil(t, h.Engrave)
	assert.Equal(t, 2, len(h.Notes))
	assert.Equal(t, "Halftone suggestion: 340 dpi, 85.4 LPI, angle -30°, shape dot", h.Notes[0])
	assert.Equal(t, "Starting engrave settings: speed 1000, power 55, 340 LPI, 1 pass, focus auto", h.Notes[1])
}

func TestHints_HalftoneClamped(t *testing.T) {
	res, err := Parse([]byte(`{"halftone": {"outputDpi": 2400, "lpi": 0, "angleDeg": 45, "shape": "line"}}`))
	require.NoError(t, err)

	h := res.Hints()
	require.NotNil(t, h.Halftone)
	assert.Equal(t, imaging.HalftoneSettings{OutputDPI: 600, LPI: 80, AngleDeg: 45, Shape: imaging.ShapeLine}, *h.Halftone)
	assert.Nil(t, h.Engrave)
}

func TestEngraveSettings_String(t *testing.T) {
	e := &EngraveSettings{Speed: 800, Power: 70.5, LPI: 270, Passes: 2, Focus: "manual"}
	assert.Equal(t, "Starting engrave settings: speed 800, power 70.5, 270 LPI, 2 passes, focus manual", e.String())
}
