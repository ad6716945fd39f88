package pipeline

import "errors"

var (
	// ErrNoImage is returned by operations that need a loaded raster.
	ErrNoImage = errors.New("no image loaded")

	// ErrNoPreview is returned by Commit when the active stage has no accepted preview.
	ErrNoPreview = errors.New("no preview to commit for the active stage")

	// ErrStageOrder is returned when an operation does not apply to the active stage.
	ErrStageOrder = errors.New("operation not valid for the active stage")

	// ErrSuperseded is returned by Preview when a newer edit arrived while it ran.
	ErrSuperseded = errors.New("preview superseded by a newer edit")

	// ErrUnknownPreset is returned by ApplyPreset for a name with no preset.
	ErrUnknownPreset = errors.New("unknown preset")
)
