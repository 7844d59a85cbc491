// Package types provides shared type definitions for the application.
package types

import "time"

// Language codes accepted by the transcription pipeline. LangAuto lets the
// service detect the spoken language itself.
const (
	LangAuto     = "auto"
	LangEnglish  = "en"
	LangSpanish  = "es"
	LangFrench   = "fr"
	LangGerman   = "de"
	LangJapanese = "ja"
	LangChinese  = "zh"
)

// SupportedLanguages is the fixed set of selectable languages.
var SupportedLanguages = []string{
	LangAuto, LangEnglish, LangSpanish, LangFrench, LangGerman, LangJapanese, LangChinese,
}

// IsSupportedLanguage reports whether code is in the selectable set.
func IsSupportedLanguage(code string) bool {
	for _, l := range SupportedLanguages {
		if l == code {
			return true
		}
	}
	return false
}

// TranscriptionRecord is the authoritative result of one dispatched
// utterance. Records are immutable after emission; ownership passes to the
// history store.
type TranscriptionRecord struct {
	ID               string    `json:"id"`
	OriginalText     string    `json:"originalText"`
	TranslatedText   string    `json:"translatedText,omitempty"`
	DetectedLanguage string    `json:"detectedLanguage"`
	Timestamp        time.Time `json:"timestamp"`
}

// Settings is the read-only configuration snapshot consumed by a recording
// segment. Changing settings mid-segment does not affect the segment in
// flight.
type Settings struct {
	Language  string `json:"language"`
	HandsFree bool   `json:"handsFree"`
}

// EngineStatus summarizes the session engine for the frontend.
type EngineStatus struct {
	State     string `json:"state"`
	HandsFree bool   `json:"handsFree"`
	Language  string `json:"language"`
	Spoken    bool   `json:"spoken"`
	SegmentMS int64  `json:"segmentMs"`
}

// ClipboardOutcome reports one delivery attempt to the frontend.
type ClipboardOutcome struct {
	Copied bool   `json:"copied"`
	Tier   string `json:"tier,omitempty"`
}
