// Package server implements the MCP (Model Context Protocol) server that walks
// a photo through laser-engraving preparation.
//
// The server exposes one editing session at a time. A session moves through
// three stages, each with its own settings and a live preview:
//
//  1. monochrome: hue-selective black & white conversion
//  2. tone_curve: exposure, shadows, highlights and contrast (dodge & burn)
//  3. levels: black/white point, gamma and sharpening
//
// Settings edits are debounced and recomputed in the background. Committing a
// stage makes its preview the new working image; the previous working image
// is discarded.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses and notifications on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// When a background preview finishes (or fails) the server sends a
// notifications/message with event "preview_ready" (or "preview_failed").
//
// # Available Tools
//
// Session:
//   - engrave_load: Load a photo and start a new session
//   - engrave_status: Active stage, settings and preview state
//
// Settings:
//   - engrave_set_monochrome: Hue bucket sliders
//   - engrave_set_tone_curve: Exposure, shadows, highlights, contrast
//   - engrave_set_levels: Black point, white point, gamma, sharpen
//   - engrave_set_halftone: Screen DPI, LPI, angle and dot shape for the engraver
//   - engrave_apply_preset: Named settings for a stage
//   - engrave_apply_hints: Suggested settings from a photo analysis
//
// Preview and stage control:
//   - engrave_preview: Preview and histogram of the active stage
//   - engrave_commit: Accept the preview and advance
//   - engrave_skip: Advance without changes
//   - engrave_crop: Crop the working image
//   - engrave_histogram: Histogram of the working image
//   - engrave_export: Resize to inches x DPI and save, with the halftone and
//     laser settings the image was prepared for
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Usage
//
//	srv := server.New(cfg, logger)
//	defer srv.Close()
//	if err := srv.Run(); err != nil {
//	    logger.Fatal(err)
//	}
package server
