// Package ui holds the console side of a run: colored Print helpers,
// the Progress interface the orchestrator reports to, a single-line
// ProgressDisplay, and desktop notifications. The full-screen display
// lives in the tui subpackage.
package ui
