// Package app provides the core application service for Wails bindings.
package app

// Event names for frontend communication.
const (
	EventTranscription     = "transcription-record"
	EventClipboardOutcome  = "clipboard-outcome"
	EventEngineState       = "engine-state"
	EventEngineError       = "engine-error"
	EventSettingsChanged   = "settings-changed"
	EventAccessibilityPerm = "accessibility-permission"
)
