package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/engrave-prep-mcp/internal/analysis"
	"github.com/ironsheep/engrave-prep-mcp/internal/imaging"
	"github.com/ironsheep/engrave-prep-mcp/internal/pipeline"
)

// defaultPreviewDimension bounds the returned preview image unless the caller
// asks otherwise.
const defaultPreviewDimension = 1024

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "engrave_load", "engrave_preview").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.WithError(err).WithField("tool", params.Name).Warn("Tool execution failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies default values for optional parameters
//  3. Calls the pipeline
//  4. Returns the result or error
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Session
	case "engrave_load":
		return s.handleLoad(args)
	case "engrave_status":
		return s.handleStatus()

	// Settings
	case "engrave_set_monochrome":
		return s.handleSetMonochrome(args)
	case "engrave_set_tone_curve":
		return s.handleSetToneCurve(args)
	case "engrave_set_levels":
		return s.handleSetLevels(args)
	case "engrave_set_halftone":
		return s.handleSetHalftone(args)
	case "engrave_apply_preset":
		return s.handleApplyPreset(args)
	case "engrave_apply_hints":
		return s.handleApplyHints(args)

	// Preview and stage control
	case "engrave_preview":
		return s.handlePreview(args)
	case "engrave_commit":
		return s.handleCommit()
	case "engrave_skip":
		return s.handleSkip()
	case "engrave_crop":
		return s.handleCrop(args)
	case "engrave_histogram":
		return s.handleHistogram()
	case "engrave_export":
		return s.handleExport(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals tool arguments. Missing arguments decode as {}.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(bytes.TrimSpace(args)) == 0 || bytes.Equal(bytes.TrimSpace(args), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// === Session Handlers ===

type loadArgs struct {
	Path string `json:"path"`
}

type loadResult struct {
	*imaging.RasterInfo
	Stage    pipeline.Stage    `json:"stage"`
	Settings pipeline.Settings `json:"settings"`
}

func (s *Server) handleLoad(args json.RawMessage) (interface{}, error) {
	var a loadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}

	info, err := s.pipe.LoadFile(a.Path)
	if err != nil {
		return nil, err
	}
	st := s.pipe.State()
	return &loadResult{RasterInfo: info, Stage: st.Stage, Settings: st.Settings}, nil
}

type statusResult struct {
	Loaded           bool                      `json:"loaded"`
	Width            int                       `json:"width,omitempty"`
	Height           int                       `json:"height,omitempty"`
	Stage            pipeline.Stage            `json:"stage"`
	Settings         pipeline.Settings         `json:"settings"`
	PreviewAvailable bool                      `json:"preview_available"`
	PreviewCurrent   bool                      `json:"preview_current"`
	Pending          bool                      `json:"pending"`
	Generation       uint64                    `json:"generation"`
	CachedImages     int                       `json:"cached_images"`
	Engrave          *analysis.EngraveSettings `json:"recommended_engrave_settings,omitempty"`
	LastError        string                    `json:"last_error,omitempty"`
}

func (s *Server) handleStatus() (interface{}, error) {
	st := s.pipe.State()
	res := &statusResult{
		Loaded:           st.Working != nil,
		Stage:            st.Stage,
		Settings:         st.Settings,
		PreviewAvailable: s.pipe.LatestPreview() != nil,
		PreviewCurrent:   s.pipe.CurrentPreview() != nil,
		Pending:          st.Pending,
		Generation:       st.Generation,
		CachedImages:     st.CachedImages,
		Engrave:          st.Engrave,
	}
	if st.Working != nil {
		res.Width = st.Working.Width
		res.Height = st.Working.Height
	}
	if st.LastError != nil {
		res.LastError = st.LastError.Error()
	}
	return res, nil
}

// === Settings Handlers ===

// Settings arguments use pointers so omitted fields keep their current value.

type monochromeArgs struct {
	Red     *float64 `json:"red"`
	Yellow  *float64 `json:"yellow"`
	Green   *float64 `json:"green"`
	Cyan    *float64 `json:"cyan"`
	Blue    *float64 `json:"blue"`
	Magenta *float64 `json:"magenta"`
}

func (s *Server) handleSetMonochrome(args json.RawMessage) (interface{}, error) {
	var a monochromeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	m := s.pipe.State().Settings.Monochrome
	override(&m.Red, a.Red)
	override(&m.Yellow, a.Yellow)
	override(&m.Green, a.Green)
	override(&m.Cyan, a.Cyan)
	override(&m.Blue, a.Blue)
	override(&m.Magenta, a.Magenta)
	return s.pipe.SetMonochrome(m), nil
}

type toneCurveArgs struct {
	OverallExposure   *float64 `json:"overall_exposure"`
	ShadowsLift       *float64 `json:"shadows_lift"`
	HighlightsRecover *float64 `json:"highlights_recover"`
	LocalContrast     *float64 `json:"local_contrast"`
}

func (s *Server) handleSetToneCurve(args json.RawMessage) (interface{}, error) {
	var a toneCurveArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	tc := s.pipe.State().Settings.ToneCurve
	override(&tc.OverallExposure, a.OverallExposure)
	override(&tc.ShadowsLift, a.ShadowsLift)
	override(&tc.HighlightsRecover, a.HighlightsRecover)
	override(&tc.LocalContrast, a.LocalContrast)
	return s.pipe.SetToneCurve(tc), nil
}

type levelsArgs struct {
	BlackPoint    *float64 `json:"black_point"`
	WhitePoint    *float64 `json:"white_point"`
	Gamma         *float64 `json:"gamma"`
	SharpenAmount *float64 `json:"sharpen_amount"`
}

func (s *Server) handleSetLevels(args json.RawMessage) (interface{}, error) {
	var a levelsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	lv := s.pipe.State().Settings.Levels
	override(&lv.BlackPoint, a.BlackPoint)
	override(&lv.WhitePoint, a.WhitePoint)
	override(&lv.Gamma, a.Gamma)
	override(&lv.SharpenAmount, a.SharpenAmount)
	return s.pipe.SetLevels(lv), nil
}

type halftoneArgs struct {
	OutputDPI *int     `json:"output_dpi"`
	LPI       *int     `json:"lpi"`
	AngleDeg  *float64 `json:"angle_deg"`
	Shape     *string  `json:"shape"`
}

func (s *Server) handleSetHalftone(args json.RawMessage) (interface{}, error) {
	var a halftoneArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	ht := s.pipe.State().Settings.Halftone
	if a.OutputDPI != nil {
		ht.OutputDPI = *a.OutputDPI
	}
	if a.LPI != nil {
		ht.LPI = *a.LPI
	}
	override(&ht.AngleDeg, a.AngleDeg)
	if a.Shape != nil {
		ht.Shape = *a.Shape
	}
	return s.pipe.SetHalftone(ht), nil
}

func override(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

type applyPresetArgs struct {
	Stage string `json:"stage"`
	Name  string `json:"name"`
}

func (s *Server) handleApplyPreset(args json.RawMessage) (interface{}, error) {
	var a applyPresetArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Stage == "halftone" {
		if _, err := s.pipe.ApplyHalftonePreset(a.Name); err != nil {
			return nil, err
		}
		return s.pipe.State().Settings, nil
	}
	stage, err := pipeline.ParseStage(a.Stage)
	if err != nil {
		return nil, err
	}
	if err := s.pipe.ApplyPreset(stage, a.Name); err != nil {
		return nil, err
	}
	return s.pipe.State().Settings, nil
}

type applyHintsArgs struct {
	Analysis json.RawMessage `json:"analysis"`
}

type applyHintsResult struct {
	Applied  bool                      `json:"applied"`
	Settings pipeline.Settings         `json:"settings"`
	Engrave  *analysis.EngraveSettings `json:"recommended_engrave_settings,omitempty"`
	Notes    []string                  `json:"notes,omitempty"`
}

func (s *Server) handleApplyHints(args json.RawMessage) (interface{}, error) {
	var a applyHintsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	payload := bytes.TrimSpace(a.Analysis)
	if len(payload) > 0 && payload[0] == '"' {
		// Some clients pass the analysis as a JSON string.
		var str string
		if err := json.Unmarshal(payload, &str); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		payload = []byte(str)
	}

	res, err := analysis.Parse(payload)
	if err != nil {
		return nil, err
	}
	hints := res.Hints()
	settings := s.pipe.ApplyHints(hints)

	s.log.WithFields(logrus.Fields{
		"applied": !hints.Empty(),
		"notes":   len(hints.Notes),
	}).Info("Analysis hints applied")

	return &applyHintsResult{
		Applied:  !hints.Empty(),
		Settings: settings,
		Engrave:  hints.Engrave,
		Notes:    hints.Notes,
	}, nil
}

// === Preview and Stage Handlers ===

type previewArgs struct {
	IncludeImage bool `json:"include_image"`
	MaxDimension *int `json:"max_dimension"`
}

type previewResult struct {
	Stage      pipeline.Stage        `json:"stage"`
	Generation uint64                `json:"generation"`
	Width      int                   `json:"width"`
	Height     int                   `json:"height"`
	DurationMS int64                 `json:"duration_ms"`
	Settings   pipeline.Settings     `json:"settings"`
	Histogram  *imaging.Histogram    `json:"histogram"`
	Image      *imaging.ExportResult `json:"image,omitempty"`
}

func (s *Server) handlePreview(args json.RawMessage) (interface{}, error) {
	var a previewArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	maxDim := defaultPreviewDimension
	if a.MaxDimension != nil {
		maxDim = *a.MaxDimension
	}

	p := s.pipe.CurrentPreview()
	if p == nil {
		ctx := context.Background()
		if s.cfg.ComputeTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.cfg.ComputeTimeout)
			defer cancel()
		}
		var err error
		if p, err = s.pipe.Preview(ctx); err != nil {
			return nil, err
		}
	}

	res := &previewResult{
		Stage:      p.Stage,
		Generation: p.Generation,
		Width:      p.Raster.Width,
		Height:     p.Raster.Height,
		DurationMS: p.Duration.Milliseconds(),
		Settings:   p.Settings,
		Histogram:  p.Histogram,
	}
	if a.IncludeImage {
		img, err := imaging.EncodePreview(p.Raster, maxDim)
		if err != nil {
			return nil, err
		}
		res.Image = img
	}
	return res, nil
}

type commitResult struct {
	Committed pipeline.Stage `json:"committed"`
	Stage     pipeline.Stage `json:"stage"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
}

func (s *Server) handleCommit() (interface{}, error) {
	p, err := s.pipe.Commit()
	if err != nil {
		return nil, err
	}
	return &commitResult{
		Committed: p.Stage,
		Stage:     s.pipe.State().Stage,
		Width:     p.Raster.Width,
		Height:    p.Raster.Height,
	}, nil
}

func (s *Server) handleSkip() (interface{}, error) {
	next, err := s.pipe.Skip()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"stage": next}, nil
}

type cropArgs struct {
	X1     int    `json:"x1"`
	Y1     int    `json:"y1"`
	X2     int    `json:"x2"`
	Y2     int    `json:"y2"`
	Region string `json:"region"`
}

func (s *Server) handleCrop(args json.RawMessage) (interface{}, error) {
	var a cropArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	var cropped *imaging.Raster
	var err error
	if a.Region != "" {
		cropped, err = s.pipe.CropRegion(a.Region)
	} else {
		cropped, err = s.pipe.Crop(a.X1, a.Y1, a.X2, a.Y2)
	}
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"width":  cropped.Width,
		"height": cropped.Height,
		"stage":  s.pipe.State().Stage,
	}, nil
}

type histogramResult struct {
	Bins imaging.Histogram `json:"bins"`
	Max  int               `json:"max"`
}

func (s *Server) handleHistogram() (interface{}, error) {
	h, err := s.pipe.Histogram()
	if err != nil {
		return nil, err
	}
	return &histogramResult{Bins: h, Max: h.Max()}, nil
}

// exportResult carries the halftone screen and laser settings the image
// was prepared for, since neither is baked into the pixels.
type exportResult struct {
	*imaging.ExportResult
	Halftone imaging.HalftoneSettings  `json:"halftone"`
	Engrave  *analysis.EngraveSettings `json:"recommended_engrave_settings,omitempty"`
}

type exportArgs struct {
	Path         string  `json:"path"`
	WidthInches  float64 `json:"width_inches"`
	HeightInches float64 `json:"height_inches"`
	DPI          int     `json:"dpi"`
}

func (s *Server) handleExport(args json.RawMessage) (interface{}, error) {
	var a exportArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	es := s.cfg.Export
	if a.WidthInches > 0 {
		es.WidthInches = a.WidthInches
	}
	if a.HeightInches > 0 {
		es.HeightInches = a.HeightInches
	}
	if a.DPI > 0 {
		es.DPI = a.DPI
	}

	var out *imaging.ExportResult
	if a.Path != "" {
		res, err := s.pipe.ExportFile(a.Path, es)
		if err != nil {
			return nil, err
		}
		out = res
	} else {
		var buf bytes.Buffer
		w, h, err := s.pipe.Export(&buf, es, ".png")
		if err != nil {
			return nil, err
		}
		out = &imaging.ExportResult{
			Width:       w,
			Height:      h,
			ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
			MimeType:    "image/png",
		}
	}

	st := s.pipe.State()
	return &exportResult{
		ExportResult: out,
		Halftone:     st.Settings.Halftone,
		Engrave:      st.Engrave,
	}, nil
}
