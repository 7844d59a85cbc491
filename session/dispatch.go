package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxpad/voxpad/encode"
	"github.com/voxpad/voxpad/internal/types"
	"github.com/voxpad/voxpad/langdetect"
	"github.com/voxpad/voxpad/transcribe"
)

// dispatcher sends one finalized utterance to the transcription service and
// turns the response into a TranscriptionRecord. It runs on its own
// goroutine per utterance so a hands-free restart never waits on the
// network.
type dispatcher struct {
	service transcribe.Service
	logger  *slog.Logger
	newID   func() string
	now     func() time.Time
	timeout time.Duration

	record func(types.TranscriptionRecord)
	fail   func(error)
	closed <-chan struct{}
}

func (d *dispatcher) dispatch(u encode.Utterance, settings types.Settings) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	lang := settings.Language
	if lang == types.LangAuto {
		lang = ""
	}
	res, err := d.service.Transcribe(ctx, u.Data, u.MIMEType, lang)
	if err != nil {
		d.deliver(settings, fmt.Errorf("transcribing utterance: %w", err))
		return
	}

	text, ok := transcribe.Usable(res.Text)
	if !ok {
		// The service heard nothing intelligible.
		d.deliver(settings, ErrNoSpeech)
		return
	}

	detected := res.DetectedLanguage
	if detected == "" {
		_, detected = langdetect.Detect(text)
	}

	rec := types.TranscriptionRecord{
		ID:               d.newID(),
		OriginalText:     text,
		TranslatedText:   res.EnglishTranslation,
		DetectedLanguage: detected,
		Timestamp:        d.now(),
	}
	select {
	case <-d.closed:
		return
	default:
	}
	d.record(rec)
}

// deliver routes a dispatch failure. Manual sessions surface it to the
// user; hands-free sessions only log, so a transient outage never
// interrupts the loop.
func (d *dispatcher) deliver(settings types.Settings, err error) {
	select {
	case <-d.closed:
		return
	default:
	}
	if settings.HandsFree {
		d.logger.Warn("dispatch failed", "service", d.service.Name(), "error", err)
		return
	}
	d.fail(err)
}
