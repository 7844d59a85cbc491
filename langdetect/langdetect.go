// Package langdetect identifies the language of transcribed text. It backs
// the dispatcher when the transcription service does not report a detected
// language itself.
package langdetect

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// candidates mirrors the selectable language set. Keeping the set small
// keeps the detector's model footprint and latency down.
var candidates = []lingua.Language{
	lingua.English,
	lingua.Spanish,
	lingua.French,
	lingua.German,
	lingua.Japanese,
	lingua.Chinese,
}

// detector is built lazily: loading the language models is expensive and
// most sessions never need the fallback.
var detector = sync.OnceValue(func() lingua.LanguageDetector {
	return lingua.NewLanguageDetectorBuilder().
		FromLanguages(candidates...).
		Build()
})

// Detect returns the ISO 639-1 code and English display name for the
// language of text. Returns ("auto", "Unknown") when detection fails or the
// text is too short to classify.
func Detect(text string) (code, name string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "auto", "Unknown"
	}

	lang, ok := detector().DetectLanguageOf(text)
	if !ok {
		return "auto", "Unknown"
	}

	code = strings.ToLower(lang.IsoCode639_1().String())
	return code, Name(code)
}

// Name returns the English display name for an ISO 639-1 code.
func Name(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return "Unknown"
	}
	return display.English.Languages().Name(tag)
}
