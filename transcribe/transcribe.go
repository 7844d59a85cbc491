// Package transcribe defines the transcription service boundary and its
// implementations.
package transcribe

import (
	"context"
	"strings"
)

// SentinelSilence is the reserved text value a service returns when the
// audio contained no intelligible speech. Callers must treat it identically
// to an empty result.
const SentinelSilence = "SILENCE"

// Result is what a transcription service returns for one utterance. The
// contract is all-or-nothing: a service either returns a fully-shaped
// Result or an error, never partial success.
type Result struct {
	Text               string `json:"text"`
	DetectedLanguage   string `json:"detectedLanguage"`
	EnglishTranslation string `json:"englishTranslation"`
}

// Usable trims text and reports whether it denotes real speech. The empty
// string and the silence sentinel are both unusable.
func Usable(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || trimmed == SentinelSilence {
		return "", false
	}
	return trimmed, true
}

// Service converts one utterance blob into text.
type Service interface {
	// Name returns the service identifier.
	Name() string

	// Transcribe converts an audio blob to text. language is a hint
	// ("auto" or empty means detect).
	Transcribe(ctx context.Context, audio []byte, mimeType, language string) (*Result, error)

	// Close releases resources held by the service.
	Close() error
}

// Registry holds registered transcription services.
type Registry struct {
	services map[string]Service
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]Service)}
}

// Register adds a service. Registration order is preserved for Default.
func (r *Registry) Register(s Service) {
	if _, ok := r.services[s.Name()]; !ok {
		r.order = append(r.order, s.Name())
	}
	r.services[s.Name()] = s
}

// Get returns a service by name, or nil.
func (r *Registry) Get(name string) Service {
	return r.services[name]
}

// Default returns the first registered service, or nil.
func (r *Registry) Default() Service {
	if len(r.order) == 0 {
		return nil
	}
	return r.services[r.order[0]]
}

// Close releases all services.
func (r *Registry) Close() error {
	for _, name := range r.order {
		if err := r.services[name].Close(); err != nil {
			return err
		}
	}
	return nil
}
