package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/engrave-prep-mcp/internal/analysis"
	"github.com/ironsheep/engrave-prep-mcp/internal/imaging"
)

func solidRaster(t *testing.T, w, h int, r, g, b uint8) *imaging.Raster {
	t.Helper()
	ras, err := imaging.NewRaster(w, h)
	require.NoError(t, err)
	for i := 0; i < len(ras.Pix); i += 4 {
		ras.Pix[i], ras.Pix[i+1], ras.Pix[i+2], ras.Pix[i+3] = r, g, b, 255
	}
	return ras
}

// newTestOrchestrator never fires its debounce timer on its own; tests drive
// rendering with Preview or Flush.
func newTestOrchestrator(t *testing.T, mod func(*Options)) *Orchestrator {
	t.Helper()
	log, _ := test.NewNullLogger()
	opts := Options{
		Debounce: time.Hour,
		Defaults: DefaultSettings(),
		Presets:  imaging.DefaultPresets(),
		Logger:   log,
	}
	if mod != nil {
		mod(&opts)
	}
	o := New(opts)
	t.Cleanup(o.Close)
	return o
}

func TestOrchestrator_NoImage(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	_, err := o.Preview(context.Background())
	assert.ErrorIs(t, err, ErrNoImage)
	_, err = o.Commit()
	assert.ErrorIs(t, err, ErrNoImage)
	_, err = o.Skip()
	assert.ErrorIs(t, err, ErrNoImage)
	_, err = o.Histogram()
	assert.ErrorIs(t, err, ErrNoImage)
	_, err = o.Crop(0, 0, 1, 1)
	assert.ErrorIs(t, err, ErrNoImage)
	_, _, err = o.Export(&bytes.Buffer{}, imaging.ExportSettings{}, ".png")
	assert.ErrorIs(t, err, ErrNoImage)

	// Edits before a load are stored but render nothing.
	o.SetMonochrome(imaging.HueBucketSettings{Red: 10})
	assert.False(t, o.State().Pending)
}

func TestOrchestrator_FullPipeline(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	require.NoError(t, o.Load(solidRaster(t, 4, 4, 255, 0, 0)))

	st := o.State()
	assert.Equal(t, StageMonochrome, st.Stage)
	assert.True(t, st.Pending)

	_, err := o.Commit()
	assert.ErrorIs(t, err, ErrNoPreview)

	// Monochrome: pure red with neutral sliders gives BT.601 luminance 76.
	p, err := o.Preview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StageMonochrome, p.Stage)
	assert.Equal(t, uint8(76), p.Raster.Pix[0])
	require.NotNil(t, p.Histogram)
	assert.Equal(t, 100, p.Histogram[76])

	committed, err := o.Commit()
	require.NoError(t, err)
	assert.Same(t, p, committed)
	assert.Equal(t, StageToneCurve, o.State().Stage)
	assert.Same(t, p.Raster, o.Working())

	// Tone curve: one stop up doubles the luminance.
	o.SetToneCurve(imaging.ToneCurveSettings{OverallExposure: 1})
	p, err = o.Preview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(152), p.Raster.Pix[0])
	_, err = o.Commit()
	require.NoError(t, err)

	// Levels: identity levels and sharpening leave a flat image alone.
	p, err = o.Preview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StageLevels, p.Stage)
	assert.Equal(t, uint8(152), p.Raster.Pix[0])
	_, err = o.Commit()
	require.NoError(t, err)

	st = o.State()
	assert.Equal(t, StageDone, st.Stage)
	assert.False(t, st.Pending)

	_, err = o.Preview(context.Background())
	assert.ErrorIs(t, err, ErrStageOrder)
	_, err = o.Skip()
	assert.ErrorIs(t, err, ErrStageOrder)

	// The original is never modified.
	assert.Equal(t, uint8(255), st.Original.Pix[0])
	assert.Equal(t, uint8(0), st.Original.Pix[1])
}

func TestOrchestrator_SettingsDoNotTouchWorking(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	src := solidRaster(t, 2, 2, 10, 200, 30)
	require.NoError(t, o.Load(src))

	o.SetMonochrome(imaging.HueBucketSettings{Green: 100})
	o.SetToneCurve(imaging.ToneCurveSettings{OverallExposure: 2})
	o.SetLevels(imaging.LevelsSettings{BlackPoint: 50, WhitePoint: 200, Gamma: 2, SharpenAmount: 100})

	assert.Same(t, src, o.Working())
	assert.Equal(t, []uint8{10, 200, 30, 255}, o.Working().Pix[:4])
}

func TestOrchestrator_Skip(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	src := solidRaster(t, 2, 2, 0, 0, 255)
	require.NoError(t, o.Load(src))

	next, err := o.Skip()
	require.NoError(t, err)
	assert.Equal(t, StageToneCurve, next)
	assert.Same(t, src, o.Working())
	assert.Nil(t, o.LatestPreview())
}

func TestOrchestrator_CommitDiscardsStalePreview(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	require.NoError(t, o.Load(solidRaster(t, 2, 2, 255, 0, 0)))

	_, err := o.Preview(context.Background())
	require.NoError(t, err)
	_, err = o.Skip()
	require.NoError(t, err)

	// The monochrome preview does not belong to the tone curve stage.
	_, err = o.Commit()
	assert.ErrorIs(t, err, ErrNoPreview)
}

func TestOrchestrator_CurrentAndLatestPreview(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	require.NoError(t, o.Load(solidRaster(t, 2, 2, 255, 0, 0)))

	p, err := o.Preview(context.Background())
	require.NoError(t, err)
	assert.Same(t, p, o.CurrentPreview())

	// A newer edit makes the preview outdated, but it can still be committed.
	o.SetMonochrome(imaging.HueBucketSettings{Red: -100})
	assert.Nil(t, o.CurrentPreview())
	assert.Same(t, p, o.LatestPreview())
}

func TestOrchestrator_FlushRendersPendingEdit(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	require.NoError(t, o.Load(solidRaster(t, 2, 2, 255, 0, 0)))

	got := o.SetMonochrome(imaging.HueBucketSettings{Red: -100})
	assert.Equal(t, -100.0, got.Red)
	require.True(t, o.Flush())

	p := o.CurrentPreview()
	require.NotNil(t, p)
	// 76.245 * 0.5
	assert.Equal(t, uint8(38), p.Raster.Pix[0])
	assert.Equal(t, -100.0, p.Settings.Monochrome.Red)
	assert.False(t, o.State().Pending)
}

func TestOrchestrator_DebouncedEdits(t *testing.T) {
	previews := make(chan *Preview, 8)
	o := newTestOrchestrator(t, func(opts *Options) {
		opts.Debounce = 30 * time.Millisecond
		opts.OnPreview = func(p *Preview) { previews <- p }
	})
	require.NoError(t, o.Load(solidRaster(t, 2, 2, 255, 0, 0)))

	o.SetMonochrome(imaging.HueBucketSettings{Red: 20})
	o.SetMonochrome(imaging.HueBucketSettings{Red: 40})
	o.SetMonochrome(imaging.HueBucketSettings{Red: -100})

	select {
	case p := <-previews:
		assert.Equal(t, -100.0, p.Settings.Monochrome.Red)
		assert.Equal(t, uint8(38), p.Raster.Pix[0])
		assert.Same(t, p, o.CurrentPreview())
	case <-time.After(2 * time.Second):
		t.Fatal("no preview delivered")
	}

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, previews)
}

func TestOrchestrator_EditOtherStageDoesNotSchedule(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	require.NoError(t, o.Load(solidRaster(t, 2, 2, 255, 0, 0)))
	p, err := o.Preview(context.Background())
	require.NoError(t, err)

	o.SetLevels(imaging.LevelsSettings{BlackPoint: 10, WhitePoint: 240, Gamma: 1, SharpenAmount: 0})
	assert.Same(t, p, o.CurrentPreview())
	assert.False(t, o.State().Pending)
}

func TestOrchestrator_SetLevelsKeepsUntouchedPoint(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	got := o.SetLevels(imaging.LevelsSettings{BlackPoint: 100, WhitePoint: 255, Gamma: 1, SharpenAmount: 30})
	assert.Equal(t, 100.0, got.BlackPoint)

	// White point dragged below the black point.
	got = o.SetLevels(imaging.LevelsSettings{BlackPoint: 100, WhitePoint: 80, Gamma: 1, SharpenAmount: 30})
	assert.Equal(t, 100.0, got.BlackPoint)
	assert.Equal(t, 101.0, got.WhitePoint)

	// Black point dragged above the white point.
	got = o.SetLevels(imaging.LevelsSettings{BlackPoint: 150, WhitePoint: 101, Gamma: 1, SharpenAmount: 30})
	assert.Equal(t, 100.0, got.BlackPoint)
	assert.Equal(t, 101.0, got.WhitePoint)
}

func TestOrchestrator_ApplyPreset(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	require.NoError(t, o.ApplyPreset(StageToneCurve, "lighten-subject"))
	assert.Equal(t, imaging.ToneCurveSettings{
		OverallExposure:   -0.1,
		ShadowsLift:       10,
		HighlightsRecover: 10,
		LocalContrast:     5,
	}, o.State().Settings.ToneCurve)

	require.NoError(t, o.ApplyPreset(StageLevels, "no-sharpen"))
	assert.Zero(t, o.State().Settings.Levels.SharpenAmount)

	err := o.ApplyPreset(StageMonochrome, "sepia")
	assert.ErrorIs(t, err, ErrUnknownPreset)
	err = o.ApplyPreset(StageDone, "neutral")
	assert.ErrorIs(t, err, ErrStageOrder)
}

func TestOrchestrator_ApplyHints(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	res, err := analysis.Parse([]byte(`{"globalAdjustments": {"exposure": 0.5, "contrast": 1, "midtoneBoost": -1}}`))
	require.NoError(t, err)

	s := o.ApplyHints(res.Hints())
	assert.Equal(t, imaging.ToneCurveSettings{OverallExposure: 0.5, LocalContrast: 10, ShadowsLift: -10}, s.ToneCurve)
	assert.Equal(t, imaging.HueBucketSettings{}, s.Monochrome)
	assert.Equal(t, imaging.DefaultLevelsSettings(), s.Levels)
}

func TestOrchestrator_ApplyHintsHalftoneAndEngrave(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	require.NoError(t, o.Load(solidRaster(t, 2, 2, 9, 9, 9)))
	assert.Nil(t, o.State().Engrave)

	res, err := analysis.Parse([]byte(`{
		"halftone": {"outputDpi": 300, "lpi": 70, "angleDeg": -15, "shape": "round"},
		"recommendedEngraveSettings": {"speed": 800, "power": 40, "lpi": 300, "passes": 2, "focus": "-1mm"}
	}`))
	require.NoError(t, err)

	s := o.ApplyHints(res.Hints())
	assert.Equal(t, imaging.HalftoneSettings{OutputDPI: 300, LPI: 70, AngleDeg: -15, Shape: imaging.ShapeRound}, s.Halftone)
	assert.False(t, o.State().Pending, "halftone is not rendered")

	st := o.State()
	require.NotNil(t, st.Engrave)
	assert.Equal(t, 2, st.Engrave.Passes)

	require.NoError(t, o.Load(solidRaster(t, 2, 2, 9, 9, 9)))
	st = o.State()
	assert.Nil(t, st.Engrave)
	assert.Equal(t, imaging.DefaultHalftoneSettings(), st.Settings.Halftone)
}

func TestOrchestrator_SetHalftone(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	assert.Equal(t, imaging.DefaultHalftoneSettings(), o.State().Settings.Halftone)

	got := o.SetHalftone(imaging.HalftoneSettings{OutputDPI: 1200, LPI: 90, AngleDeg: 120, Shape: "Square"})
	assert.Equal(t, imaging.HalftoneSettings{OutputDPI: 600, LPI: 90, AngleDeg: 90, Shape: imaging.ShapeSquare}, got)
	assert.Equal(t, got, o.State().Settings.Halftone)

	got, err := o.ApplyHalftonePreset("extra-smooth-skin")
	require.NoError(t, err)
	assert.Equal(t, imaging.ShapeRound, got.Shape)

	_, err = o.ApplyHalftonePreset("newsprint")
	assert.ErrorIs(t, err, ErrUnknownPreset)
	assert.Equal(t, got, o.State().Settings.Halftone)
}

func TestOrchestrator_LoadResetsSession(t *testing.T) {
	o := newTestOrchestrator(t, func(opts *Options) {
		opts.Defaults.Monochrome = imaging.HueBucketSettings{Blue: 15}
	})
	require.NoError(t, o.Load(solidRaster(t, 2, 2, 255, 0, 0)))
	o.SetMonochrome(imaging.HueBucketSettings{Red: 50})
	_, err := o.Skip()
	require.NoError(t, err)

	require.NoError(t, o.Load(solidRaster(t, 3, 3, 0, 255, 0)))
	st := o.State()
	assert.Equal(t, StageMonochrome, st.Stage)
	assert.Equal(t, imaging.HueBucketSettings{Blue: 15}, st.Settings.Monochrome)
	assert.Nil(t, st.Preview)
	assert.Equal(t, 3, st.Working.Width)
}

func TestOrchestrator_LoadReaderDecodeFailureKeepsState(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	src := solidRaster(t, 2, 2, 255, 0, 0)
	require.NoError(t, o.Load(src))
	_, err := o.Skip()
	require.NoError(t, err)

	err = o.LoadReader(strings.NewReader("definitely not an image"))
	require.Error(t, err)
	assert.ErrorIs(t, err, imaging.ErrDecode)
	var de *imaging.DecodeError
	assert.True(t, errors.As(err, &de))

	st := o.State()
	assert.Same(t, src, st.Working)
	assert.Equal(t, StageToneCurve, st.Stage)
}

func TestOrchestrator_LoadReader(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solidRaster(t, 5, 3, 1, 2, 3).ToNRGBA()))
	require.NoError(t, o.LoadReader(&buf))

	st := o.State()
	assert.Equal(t, 5, st.Working.Width)
	assert.Equal(t, 3, st.Working.Height)
	assert.Equal(t, []uint8{1, 2, 3, 255}, st.Working.Pix[:4])
}

func TestOrchestrator_LoadFile(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	path := filepath.Join(t.TempDir(), "photo.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, solidRaster(t, 6, 4, 9, 9, 9).ToNRGBA()))
	require.NoError(t, f.Close())

	info, err := o.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 6, info.Width)
	assert.Equal(t, "png", info.Format)
	assert.True(t, info.Grayscale)

	_, err = o.LoadFile(filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, 6, o.Working().Width)
}

func TestOrchestrator_MaxPixels(t *testing.T) {
	o := newTestOrchestrator(t, func(opts *Options) { opts.MaxPixels = 100 })
	small := solidRaster(t, 10, 10, 0, 0, 0)
	require.NoError(t, o.Load(small))

	err := o.Load(solidRaster(t, 11, 10, 0, 0, 0))
	assert.ErrorIs(t, err, imaging.ErrResourceUnavailable)
	assert.Same(t, small, o.Working())
}

func TestOrchestrator_LoadInvalidRaster(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	err := o.Load(&imaging.Raster{Width: 2, Height: 2, Pix: make([]uint8, 3)})
	assert.ErrorIs(t, err, imaging.ErrInvalidRaster)
	assert.Nil(t, o.Working())
}

func TestOrchestrator_Crop(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	require.NoError(t, o.Load(solidRaster(t, 10, 8, 50, 50, 50)))
	_, err := o.Preview(context.Background())
	require.NoError(t, err)

	cropped, err := o.Crop(2, 2, 6, 5)
	require.NoError(t, err)
	assert.Equal(t, 4, cropped.Width)
	assert.Equal(t, 3, cropped.Height)
	assert.Nil(t, o.LatestPreview())
	assert.True(t, o.State().Pending)

	_, err = o.Crop(0, 0, 100, 100)
	assert.Error(t, err)
	assert.Same(t, cropped, o.Working())

	_, err = o.Skip()
	require.NoError(t, err)
	_, err = o.Skip()
	require.NoError(t, err)
	_, err = o.Crop(0, 0, 2, 2)
	assert.ErrorIs(t, err, ErrStageOrder)
}

func TestOrchestrator_CropRegion(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	_, err := o.CropRegion("center")
	assert.ErrorIs(t, err, ErrNoImage)

	require.NoError(t, o.Load(solidRaster(t, 100, 80, 50, 50, 50)))
	cropped, err := o.CropRegion("top-half")
	require.NoError(t, err)
	assert.Equal(t, 100, cropped.Width)
	assert.Equal(t, 40, cropped.Height)
	assert.Same(t, cropped, o.Working())
	assert.True(t, o.State().Pending)

	_, err = o.CropRegion("somewhere")
	assert.Error(t, err)
	assert.Same(t, cropped, o.Working())
}

func TestOrchestrator_HistogramAndExport(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	require.NoError(t, o.Load(solidRaster(t, 4, 2, 128, 128, 128)))

	hist, err := o.Histogram()
	require.NoError(t, err)
	assert.Equal(t, 100, hist[128])
	assert.Equal(t, 100, hist.Max())

	var buf bytes.Buffer
	w, h, err := o.Export(&buf, imaging.ExportSettings{WidthInches: 1, HeightInches: 0.5, DPI: 10}, ".png")
	require.NoError(t, err)
	assert.Equal(t, 10, w)
	assert.Equal(t, 5, h)

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 10, img.Bounds().Dx())

	path := filepath.Join(t.TempDir(), "out.png")
	res, err := o.ExportFile(path, imaging.ExportSettings{})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Width)
	assert.FileExists(t, path)
}

func TestOrchestrator_RenderErrorReported(t *testing.T) {
	errs := make(chan error, 1)
	o := newTestOrchestrator(t, func(opts *Options) {
		opts.Debounce = time.Millisecond
		opts.ComputeTimeout = time.Nanosecond
		opts.OnError = func(_ Stage, err error) { errs <- err }
	})
	require.NoError(t, o.Load(solidRaster(t, 64, 64, 1, 2, 3)))

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, err, o.State().LastError)
		assert.Nil(t, o.LatestPreview())
	case <-time.After(2 * time.Second):
		t.Fatal("render error not reported")
	}
}

func TestOrchestrator_AcceptDropsStaleResult(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	require.NoError(t, o.Load(solidRaster(t, 2, 2, 0, 0, 0)))
	gen := o.State().Generation
	require.NotZero(t, gen)

	stale := &Preview{Stage: StageMonochrome}
	o.accept(Result[*Preview]{Generation: gen - 1, Value: stale})
	assert.Nil(t, o.LatestPreview())

	o.accept(Result[*Preview]{Generation: gen - 1, Err: errors.New("late failure")})
	assert.NoError(t, o.State().LastError)

	current := &Preview{Stage: StageMonochrome}
	o.accept(Result[*Preview]{Generation: gen, Value: current})
	assert.Same(t, current, o.LatestPreview())
	assert.Equal(t, gen, current.Generation)
}

func TestOrchestrator_CloseClearsCache(t *testing.T) {
	log, _ := test.NewNullLogger()
	o := New(Options{Debounce: time.Hour, Defaults: DefaultSettings(), Logger: log})

	path := filepath.Join(t.TempDir(), "photo.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, solidRaster(t, 3, 3, 9, 9, 9).ToNRGBA()))
	require.NoError(t, f.Close())

	_, err = o.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, o.State().CachedImages)

	o.Close()
	assert.Zero(t, o.State().CachedImages)
}
