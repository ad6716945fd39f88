package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/engrave-prep-mcp/internal/analysis"
	"github.com/ironsheep/engrave-prep-mcp/internal/imaging"
)

// Settings bundles the settings of every stage.
type Settings struct {
	Monochrome imaging.HueBucketSettings `json:"monochrome" yaml:"monochrome"`
	ToneCurve  imaging.ToneCurveSettings `json:"tone_curve" yaml:"tone_curve"`
	Levels     imaging.LevelsSettings    `json:"levels" yaml:"levels"`

	// Halftone is not rendered; it is handed on with the export.
	Halftone imaging.HalftoneSettings `json:"halftone" yaml:"halftone"`
}

// DefaultSettings returns neutral monochrome and tone curve settings and the
// default levels and halftone screen.
func DefaultSettings() Settings {
	return Settings{
		Levels:   imaging.DefaultLevelsSettings(),
		Halftone: imaging.DefaultHalftoneSettings(),
	}
}

// Normalize clamps every stage's settings to their declared ranges.
func (s Settings) Normalize() Settings {
	return Settings{
		Monochrome: s.Monochrome.Normalize(),
		ToneCurve:  s.ToneCurve.Normalize(),
		Levels:     s.Levels.Normalize(),
		Halftone:   s.Halftone.Normalize(),
	}
}

// Preview is the non-committed output of one stage.
type Preview struct {
	Stage      Stage
	Generation uint64
	Raster     *imaging.Raster

	// Histogram is nil when it could not be computed.
	Histogram *imaging.Histogram

	// Settings is the snapshot the preview was rendered from.
	Settings Settings
	Duration time.Duration
}

// Options configures an Orchestrator.
type Options struct {
	// Debounce is the quiet period before a settings edit is rendered.
	// Zero means DefaultDebounce.
	Debounce time.Duration

	// ComputeTimeout bounds one scheduled render. Zero means no bound.
	ComputeTimeout time.Duration

	// MaxPixels rejects larger rasters with ErrResourceUnavailable.
	// Zero means no limit.
	MaxPixels int

	// Defaults are applied to every newly loaded raster.
	Defaults Settings

	// Presets are looked up by ApplyPreset.
	Presets imaging.Presets

	// OnPreview, if set, is called with every accepted scheduled preview.
	OnPreview func(*Preview)

	// OnError, if set, is called when a scheduled render fails.
	OnError func(Stage, error)

	Logger logrus.FieldLogger
}

// State is a read-only snapshot of a session.
type State struct {
	Original   *imaging.Raster
	Working    *imaging.Raster
	Stage      Stage
	Settings   Settings
	Preview    *Preview
	Generation uint64
	Pending    bool

	// LastError is the most recent failure of a scheduled render, cleared by
	// the next accepted preview.
	LastError error

	// Engrave holds the laser settings suggested by the last applied
	// analysis, or nil.
	Engrave *analysis.EngraveSettings

	// CachedImages counts decoded files kept for reloading.
	CachedImages int
}

// Orchestrator owns one editing session.
type Orchestrator struct {
	opts  Options
	log   logrus.FieldLogger
	sched *Scheduler[*Preview]
	cache *imaging.RasterCache

	mu       sync.Mutex
	original *imaging.Raster
	working  *imaging.Raster
	stage    Stage
	settings Settings
	preview  *Preview
	lastErr  error
	engrave  *analysis.EngraveSettings
}

// New creates an orchestrator with no image loaded.
func New(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	opts.Defaults = opts.Defaults.Normalize()

	o := &Orchestrator{
		opts:     opts,
		log:      opts.Logger.WithField("component", "pipeline"),
		settings: opts.Defaults,
		cache:    imaging.NewRasterCache(),
	}
	o.sched = NewScheduler(SchedulerConfig{
		Delay:   opts.Debounce,
		Timeout: opts.ComputeTimeout,
	}, o.accept, o.log)
	return o
}

// Close stops scheduled work and drops cached files. The orchestrator must
// not be used afterwards.
func (o *Orchestrator) Close() {
	o.sched.Stop()
	o.cache.Clear()
}

// Load starts a new session on r. Settings are reset to the defaults and a
// monochrome preview is scheduled.
//
// Returns ErrResourceUnavailable if r exceeds MaxPixels; the previous session
// is kept in that case.
func (o *Orchestrator) Load(r *imaging.Raster) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if o.opts.MaxPixels > 0 && r.PixelCount() > o.opts.MaxPixels {
		return fmt.Errorf("%w: %dx%d exceeds the %d pixel limit",
			imaging.ErrResourceUnavailable, r.Width, r.Height, o.opts.MaxPixels)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.original = r
	o.working = r
	o.stage = StageMonochrome
	o.settings = o.opts.Defaults
	o.preview = nil
	o.lastErr = nil
	o.engrave = nil
	o.sched.Supersede()

	o.log.WithFields(logrus.Fields{
		"width":  r.Width,
		"height": r.Height,
	}).Info("Image loaded")

	o.scheduleLocked()
	return nil
}

// LoadReader decodes an encoded image and loads it. On decode failure the
// current session is left untouched and the *imaging.DecodeError is returned.
func (o *Orchestrator) LoadReader(rd io.Reader) error {
	r, err := imaging.DecodeRaster(rd)
	if err != nil {
		o.log.WithError(err).Warn("Image decode failed, keeping current session")
		return err
	}
	return o.Load(r)
}

// LoadFile decodes the image at path and loads it. Decoded files are cached,
// so reloading the same path starts over from the original pixels without
// touching the disk again.
func (o *Orchestrator) LoadFile(path string) (*imaging.RasterInfo, error) {
	info, err := imaging.LoadRasterInfo(o.cache, path)
	if err != nil {
		o.log.WithError(err).WithField("path", path).Warn("Image load failed, keeping current session")
		return nil, err
	}
	r, err := o.cache.Load(path)
	if err != nil {
		return nil, err
	}
	if err := o.Load(r); err != nil {
		o.cache.Evict(path)
		return nil, err
	}
	return info, nil
}

// SetMonochrome stores normalized monochrome settings and returns them.
func (o *Orchestrator) SetMonochrome(s imaging.HueBucketSettings) imaging.HueBucketSettings {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.settings.Monochrome = s.Normalize()
	o.settingsChangedLocked(StageMonochrome)
	return o.settings.Monochrome
}

// SetToneCurve stores normalized tone curve settings and returns them.
func (o *Orchestrator) SetToneCurve(s imaging.ToneCurveSettings) imaging.ToneCurveSettings {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.settings.ToneCurve = s.Normalize()
	o.settingsChangedLocked(StageToneCurve)
	return o.settings.ToneCurve
}

// SetLevels stores normalized levels settings and returns them. If the edit
// would put the black point at or above the white point, the point that was
// moved is pushed back.
func (o *Orchestrator) SetLevels(s imaging.LevelsSettings) imaging.LevelsSettings {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.settings.Levels = s.NormalizeAgainst(o.settings.Levels)
	o.settingsChangedLocked(StageLevels)
	return o.settings.Levels
}

// SetHalftone stores normalized halftone settings and returns them. Nothing
// is re-rendered since the halftone screen is applied by the engraver.
func (o *Orchestrator) SetHalftone(s imaging.HalftoneSettings) imaging.HalftoneSettings {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.settings.Halftone = s.Normalize()
	o.log.WithField("halftone", o.settings.Halftone).Debug("Halftone settings updated")
	return o.settings.Halftone
}

// ApplyHalftonePreset applies a named halftone preset.
func (o *Orchestrator) ApplyHalftonePreset(name string) (imaging.HalftoneSettings, error) {
	p, ok := o.opts.Presets.Halftone[name]
	if !ok {
		return imaging.HalftoneSettings{}, fmt.Errorf("%w: halftone/%s", ErrUnknownPreset, name)
	}
	return o.SetHalftone(p), nil
}

// ApplyPreset applies a named preset to stage as an ordinary settings edit.
func (o *Orchestrator) ApplyPreset(stage Stage, name string) error {
	switch stage {
	case StageMonochrome:
		p, ok := o.opts.Presets.Monochrome[name]
		if !ok {
			return fmt.Errorf("%w: %s/%s", ErrUnknownPreset, stage, name)
		}
		o.SetMonochrome(p)
	case StageToneCurve:
		p, ok := o.opts.Presets.ToneCurve[name]
		if !ok {
			return fmt.Errorf("%w: %s/%s", ErrUnknownPreset, stage, name)
		}
		o.SetToneCurve(p)
	case StageLevels:
		p, ok := o.opts.Presets.Levels[name]
		if !ok {
			return fmt.Errorf("%w: %s/%s", ErrUnknownPreset, stage, name)
		}
		o.SetLevels(p)
	default:
		return fmt.Errorf("%w: no presets for %s", ErrStageOrder, stage)
	}
	return nil
}

// ApplyHints applies suggested settings from photo analysis. Each present
// hint goes through the same path as a user edit.
func (o *Orchestrator) ApplyHints(h analysis.Hints) Settings {
	if h.Monochrome != nil {
		o.SetMonochrome(*h.Monochrome)
	}
	if h.ToneCurve != nil {
		o.SetToneCurve(*h.ToneCurve)
	}
	if h.Levels != nil {
		o.SetLevels(*h.Levels)
	}
	if h.Halftone != nil {
		o.SetHalftone(*h.Halftone)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if h.Engrave != nil {
		o.engrave = h.Engrave
	}
	return o.settings
}

// Preview renders the active stage now, against the working raster and the
// current settings. Pending scheduled work is superseded. The result becomes
// the stage's accepted preview unless a newer edit arrived meanwhile, in which
// case ErrSuperseded is returned along with the rendered preview.
//
// A failed render leaves the session untouched.
func (o *Orchestrator) Preview(ctx context.Context) (*Preview, error) {
	o.mu.Lock()
	if o.working == nil {
		o.mu.Unlock()
		return nil, ErrNoImage
	}
	if o.stage == StageDone {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: all stages committed", ErrStageOrder)
	}
	stage, src, settings := o.stage, o.working, o.settings
	gen := o.sched.Supersede()
	o.mu.Unlock()

	p, err := o.render(ctx, stage, src, settings)
	if err != nil {
		return nil, err
	}
	p.Generation = gen

	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.sched.Generation() || stage != o.stage {
		return p, ErrSuperseded
	}
	o.preview = p
	o.lastErr = nil
	return p, nil
}

// CurrentPreview returns the accepted preview if it reflects the latest
// settings of the active stage, or nil.
func (o *Orchestrator) CurrentPreview() *Preview {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.preview == nil || o.preview.Stage != o.stage || o.preview.Generation != o.sched.Generation() {
		return nil
	}
	return o.preview
}

// LatestPreview returns the last accepted preview of the active stage, even
// if newer edits are still pending, or nil.
func (o *Orchestrator) LatestPreview() *Preview {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.preview == nil || o.preview.Stage != o.stage {
		return nil
	}
	return o.preview
}

// Flush renders a pending edit immediately instead of waiting for the
// debounce delay. It reports whether anything was pending.
func (o *Orchestrator) Flush() bool {
	return o.sched.Flush()
}

// Commit makes the latest accepted preview of the active stage the new
// working raster and advances to the next stage. The previous working raster
// is discarded. Pending work for the old stage is cancelled.
func (o *Orchestrator) Commit() (*Preview, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.working == nil {
		return nil, ErrNoImage
	}
	p := o.preview
	if p == nil || p.Stage != o.stage {
		return nil, ErrNoPreview
	}

	o.sched.Supersede()
	o.working = p.Raster
	o.preview = nil
	o.stage = o.stage.Next()

	o.log.WithFields(logrus.Fields{
		"committed":  p.Stage,
		"generation": p.Generation,
		"next":       o.stage,
	}).Info("Stage committed")

	o.scheduleLocked()
	return p, nil
}

// Skip advances to the next stage without changing the working raster.
func (o *Orchestrator) Skip() (Stage, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.working == nil {
		return o.stage, ErrNoImage
	}
	if o.stage == StageDone {
		return o.stage, fmt.Errorf("%w: all stages committed", ErrStageOrder)
	}

	o.sched.Supersede()
	skipped := o.stage
	o.preview = nil
	o.stage = o.stage.Next()
	o.log.WithFields(logrus.Fields{"skipped": skipped, "next": o.stage}).Info("Stage skipped")

	o.scheduleLocked()
	return o.stage, nil
}

// Crop replaces the working raster with a region of itself and re-renders
// the active stage. (x1,y1) is inclusive and (x2,y2) exclusive. Cropping is
// only allowed before the levels stage, since sharpening depends on the
// neighbourhood of every pixel.
func (o *Orchestrator) Crop(x1, y1, x2, y2 int) (*imaging.Raster, error) {
	return o.cropWorking(func(src *imaging.Raster) (*imaging.Raster, error) {
		return imaging.CropRaster(src, x1, y1, x2, y2)
	})
}

// CropRegion is Crop for a named region such as "center" or "top-half".
// See imaging.RegionRect for the names.
func (o *Orchestrator) CropRegion(region string) (*imaging.Raster, error) {
	return o.cropWorking(func(src *imaging.Raster) (*imaging.Raster, error) {
		return imaging.CropRegion(src, region)
	})
}

func (o *Orchestrator) cropWorking(crop func(*imaging.Raster) (*imaging.Raster, error)) (*imaging.Raster, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.working == nil {
		return nil, ErrNoImage
	}
	if o.stage >= StageLevels {
		return nil, fmt.Errorf("%w: crop before the levels stage", ErrStageOrder)
	}
	cropped, err := crop(o.working)
	if err != nil {
		return nil, err
	}

	o.sched.Supersede()
	o.working = cropped
	o.preview = nil
	o.log.WithFields(logrus.Fields{
		"width":  cropped.Width,
		"height": cropped.Height,
	}).Info("Working image cropped")

	o.scheduleLocked()
	return cropped, nil
}

// Histogram returns the histogram of the working raster.
func (o *Orchestrator) Histogram() (imaging.Histogram, error) {
	o.mu.Lock()
	working := o.working
	o.mu.Unlock()

	if working == nil {
		return imaging.Histogram{}, ErrNoImage
	}
	return imaging.ComputeHistogram(working)
}

// Working returns the committed working raster, or nil if nothing is loaded.
func (o *Orchestrator) Working() *imaging.Raster {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.working
}

// ExportFile writes the working raster to path at the export size.
func (o *Orchestrator) ExportFile(path string, es imaging.ExportSettings) (*imaging.ExportResult, error) {
	working := o.Working()
	if working == nil {
		return nil, ErrNoImage
	}
	res, err := imaging.ExportFile(path, working, es)
	if err != nil {
		return nil, err
	}
	o.log.WithFields(logrus.Fields{
		"path":   path,
		"width":  res.Width,
		"height": res.Height,
	}).Info("Image exported")
	return res, nil
}

// Export writes the working raster to w at the export size in the format
// named by ext.
func (o *Orchestrator) Export(w io.Writer, es imaging.ExportSettings, ext string) (width, height int, err error) {
	working := o.Working()
	if working == nil {
		return 0, 0, ErrNoImage
	}
	return imaging.ExportRaster(w, working, es, ext)
}

// State returns a snapshot of the session.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return State{
		Original:     o.original,
		Working:      o.working,
		Stage:        o.stage,
		Settings:     o.settings,
		Preview:      o.preview,
		Generation:   o.sched.Generation(),
		Pending:      o.sched.Pending(),
		LastError:    o.lastErr,
		Engrave:      o.engrave,
		CachedImages: o.cache.Len(),
	}
}

// settingsChangedLocked schedules a render if stage is the active stage.
func (o *Orchestrator) settingsChangedLocked(stage Stage) {
	o.log.WithField("stage", stage).Debug("Settings updated")
	if stage == o.stage {
		o.scheduleLocked()
	}
}

// scheduleLocked arms a debounced render of the active stage.
func (o *Orchestrator) scheduleLocked() {
	if o.working == nil || o.stage == StageDone {
		return
	}
	stage, src, settings := o.stage, o.working, o.settings
	o.sched.Schedule(func(ctx context.Context) (*Preview, error) {
		return o.render(ctx, stage, src, settings)
	})
}

// render runs one stage transform and its histogram. It touches no session
// state.
func (o *Orchestrator) render(ctx context.Context, stage Stage, src *imaging.Raster, settings Settings) (*Preview, error) {
	start := time.Now()

	var out *imaging.Raster
	var err error
	switch stage {
	case StageMonochrome:
		out, err = imaging.Monochrome(ctx, src, settings.Monochrome)
	case StageToneCurve:
		out, err = imaging.ToneCurve(ctx, src, settings.ToneCurve)
	case StageLevels:
		out, err = imaging.Levels(ctx, src, settings.Levels)
	default:
		return nil, fmt.Errorf("%w: nothing to render for %s", ErrStageOrder, stage)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", stage, err)
	}

	p := &Preview{
		Stage:    stage,
		Raster:   out,
		Settings: settings,
	}
	if hist, err := imaging.ComputeHistogram(out); err != nil {
		o.log.WithError(err).WithField("stage", stage).Warn("Histogram unavailable")
	} else {
		p.Histogram = &hist
	}
	p.Duration = time.Since(start)
	return p, nil
}

// accept receives results from the scheduler.
func (o *Orchestrator) accept(res Result[*Preview]) {
	o.mu.Lock()

	if res.Generation != o.sched.Generation() {
		o.mu.Unlock()
		o.log.WithField("generation", res.Generation).Debug("Dropping superseded preview")
		return
	}

	if res.Err != nil {
		stage := o.stage
		o.lastErr = res.Err
		onError := o.opts.OnError
		o.mu.Unlock()

		o.log.WithError(res.Err).WithField("stage", stage).Error("Preview render failed")
		if onError != nil {
			onError(stage, res.Err)
		}
		return
	}

	p := res.Value
	if p.Stage != o.stage {
		o.mu.Unlock()
		return
	}
	p.Generation = res.Generation
	o.preview = p
	o.lastErr = nil
	onPreview := o.opts.OnPreview
	o.mu.Unlock()

	o.log.WithFields(logrus.Fields{
		"stage":      p.Stage,
		"generation": p.Generation,
		"duration":   p.Duration,
	}).Debug("Preview accepted")
	if onPreview != nil {
		onPreview(p)
	}
}
