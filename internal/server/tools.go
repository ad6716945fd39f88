package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func sliderProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "number",
		"minimum":     -100,
		"maximum":     100,
		"description": description,
	}
}

func emptySchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Session
		{
			Name:        "engrave_load",
			Description: "Load a photo to prepare for laser engraving. Starts a new session at the monochrome stage with default settings; any previous session is discarded. Returns dimensions and format.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file (PNG, JPEG, GIF, BMP, TIFF or WebP)",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "engrave_status",
			Description: "Report the active stage, the settings of every stage, and whether a preview is current or still being computed.",
			InputSchema: emptySchema(),
		},

		// Settings
		{
			Name:        "engrave_set_monochrome",
			Description: "Adjust the black & white conversion. Each slider brightens (+) or darkens (-) pixels whose hue falls in its 60 degree sector. Omitted sliders keep their current value. The preview is recomputed after a short pause.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"red":     sliderProperty("Hues 330-30 degrees"),
					"yellow":  sliderProperty("Hues 30-90 degrees"),
					"green":   sliderProperty("Hues 90-150 degrees"),
					"cyan":    sliderProperty("Hues 150-210 degrees"),
					"blue":    sliderProperty("Hues 210-270 degrees"),
					"magenta": sliderProperty("Hues 270-330 degrees"),
				},
			},
		},
		{
			Name:        "engrave_set_tone_curve",
			Description: "Adjust the dodge & burn tone curve. Omitted fields keep their current value.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"overall_exposure": map[string]interface{}{
						"type":        "number",
						"minimum":     -2,
						"maximum":     2,
						"description": "Exposure change in stops",
					},
					"shadows_lift":       sliderProperty("Brighten (+) or deepen (-) dark tones"),
					"highlights_recover": sliderProperty("Pull bright tones toward mid-gray (+)"),
					"local_contrast":     sliderProperty("Expand (+) or compress (-) tones around mid-gray"),
				},
			},
		},
		{
			Name:        "engrave_set_levels",
			Description: "Adjust black point, white point, gamma and sharpening. The black point is always kept below the white point by moving back whichever point was changed.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"black_point": map[string]interface{}{
						"type":        "number",
						"minimum":     0,
						"maximum":     254,
						"description": "Luminance mapped to black",
					},
					"white_point": map[string]interface{}{
						"type":        "number",
						"minimum":     1,
						"maximum":     255,
						"description": "Luminance mapped to white",
					},
					"gamma": map[string]interface{}{
						"type":        "number",
						"minimum":     0.5,
						"maximum":     2.5,
						"description": "Midtone gamma. Above 1 brightens midtones",
					},
					"sharpen_amount": map[string]interface{}{
						"type":        "number",
						"minimum":     0,
						"maximum":     100,
						"description": "Sharpening strength in percent. 0 disables sharpening",
					},
				},
			},
		},
		{
			Name:        "engrave_set_halftone",
			Description: "Set the halftone screen the engraver will use. Nothing is re-rendered; the settings are returned with the export.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"output_dpi": map[string]interface{}{
						"type":        "integer",
						"minimum":     150,
						"maximum":     600,
						"description": "Engraver resolution the screen is computed for",
					},
					"lpi": map[string]interface{}{
						"type":        "integer",
						"minimum":     40,
						"maximum":     140,
						"description": "Screen frequency in lines per inch",
					},
					"angle_deg": map[string]interface{}{
						"type":        "number",
						"minimum":     -90,
						"maximum":     90,
						"description": "Screen angle in degrees",
					},
					"shape": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"line", "round", "square", "ellipse"},
						"description": "Dot shape",
					},
				},
			},
		},
		{
			Name:        "engrave_apply_preset",
			Description: "Replace a stage's settings with a named preset, e.g. monochrome/portrait-soft or tone_curve/lighten-subject.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"stage": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"monochrome", "tone_curve", "levels", "halftone"},
						"description": "Stage the preset belongs to",
					},
					"name": map[string]interface{}{
						"type":        "string",
						"description": "Preset name",
					},
				},
				"required": []string{"stage", "name"},
			},
		},
		{
			Name:        "engrave_apply_hints",
			Description: "Apply suggested settings from a photo analysis result. Accepts the analysis envelope {success, analysis} or the bare analysis object. Warnings, the halftone suggestion and recommended engrave settings are returned as notes.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"analysis": map[string]interface{}{
						"type":        "object",
						"description": "Analysis result, e.g. {\"globalAdjustments\": {\"exposure\": 0.2, \"contrast\": 1, \"midtoneBoost\": 0.5}}",
					},
				},
				"required": []string{"analysis"},
			},
		},

		// Preview and stage control
		{
			Name:        "engrave_preview",
			Description: "Return the preview of the active stage with its 256-bin luminance histogram (values 0-100). Renders immediately if the current preview is outdated.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"include_image": map[string]interface{}{
						"type":        "boolean",
						"description": "Include the preview as base64-encoded PNG. Default false",
						"default":     false,
					},
					"max_dimension": map[string]interface{}{
						"type":        "integer",
						"description": "Downscale the returned image so neither side exceeds this. Default 1024, 0 for full size",
						"default":     1024,
					},
				},
			},
		},
		{
			Name:        "engrave_commit",
			Description: "Accept the latest preview of the active stage as the new working image and move to the next stage. This cannot be undone.",
			InputSchema: emptySchema(),
		},
		{
			Name:        "engrave_skip",
			Description: "Move to the next stage without changing the working image.",
			InputSchema: emptySchema(),
		},
		{
			Name:        "engrave_crop",
			Description: "Crop the working image, either to a rectangle or to a named region. Only allowed before the levels stage.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"x1": map[string]interface{}{
						"type":        "integer",
						"description": "Left edge X coordinate (0-based)",
					},
					"y1": map[string]interface{}{
						"type":        "integer",
						"description": "Top edge Y coordinate (0-based)",
					},
					"x2": map[string]interface{}{
						"type":        "integer",
						"description": "Right edge X coordinate (exclusive)",
					},
					"y2": map[string]interface{}{
						"type":        "integer",
						"description": "Bottom edge Y coordinate (exclusive)",
					},
					"region": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"top-left", "top-right", "bottom-left", "bottom-right", "top-half", "bottom-half", "left-half", "right-half", "center"},
						"description": "Named region, used instead of coordinates",
					},
				},
			},
		},
		{
			Name:        "engrave_histogram",
			Description: "Return the 256-bin luminance histogram of the working image (values 0-100, fullest bin is 100).",
			InputSchema: emptySchema(),
		},
		{
			Name:        "engrave_export",
			Description: "Resize the working image to the engraving size and save it. Without a path the image is returned as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute output path. The extension selects the format (.png, .jpg, .tif, .bmp, .gif)",
					},
					"width_inches": map[string]interface{}{
						"type":        "number",
						"description": "Engraving width in inches. Default from configuration (6)",
					},
					"height_inches": map[string]interface{}{
						"type":        "number",
						"description": "Engraving height in inches. Default from configuration (8)",
					},
					"dpi": map[string]interface{}{
						"type":        "integer",
						"description": "Engraver resolution. Default from configuration (320)",
					},
				},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
