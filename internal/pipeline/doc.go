// Package pipeline sequences the engraving transforms over an editing session.
//
// An Orchestrator owns one session: the original upload, the working baseline,
// the settings for each stage and the latest preview. Stages run in a fixed
// order:
//
//	monochrome -> tone curve -> levels -> done
//
// Each stage previews against the working baseline. Commit replaces the
// baseline with the stage's preview and moves on; the previous baseline is
// gone for good.
//
// # Recomputation
//
// Settings edits are debounced by a Scheduler. Every edit bumps a generation
// counter and cancels whatever was pending or running; a result is only
// accepted if its generation is still the latest when it completes. A burst of
// edits therefore yields exactly one preview, computed from the last edit.
//
// # Thread Safety
//
// Orchestrator methods are safe for concurrent use. Scheduled work runs on
// timer goroutines and reports back through the same lock. Lock order is
// Orchestrator then Scheduler; the Scheduler never calls out while holding its
// own lock.
package pipeline
