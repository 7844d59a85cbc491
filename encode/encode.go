// Package encode provides the encoder sinks that turn conditioned samples
// into a finalized utterance blob.
package encode

import "fmt"

// Utterance is one finalized, contiguous captured audio segment destined
// for transcription. The buffer is immutable once produced and is consumed
// exactly once by the dispatcher.
type Utterance struct {
	Data     []byte
	MIMEType string
}

// Empty reports whether the utterance carries no audio.
func (u Utterance) Empty() bool { return len(u.Data) == 0 }

// Encoder buffers conditioned samples and finalizes them into an Utterance.
// Implementations are not safe for concurrent use; the session owns the
// encoder exclusively.
type Encoder interface {
	// Append buffers a chunk of conditioned samples.
	Append(samples []float32) error

	// Finalize produces the utterance for everything appended since the
	// last Reset and leaves the encoder ready for a new segment.
	Finalize() (Utterance, error)

	// Reset discards buffered audio without producing an utterance.
	Reset()

	// MIMEType returns the media type Finalize will produce.
	MIMEType() string
}

// Format identifies an encoder implementation.
type Format string

const (
	FormatWAV Format = "wav"
	FormatOgg Format = "ogg"
)

// New creates an encoder for the given format at the given sample rate.
func New(format Format, sampleRate int) (Encoder, error) {
	switch format {
	case FormatWAV, "":
		return NewWAVEncoder(sampleRate), nil
	case FormatOgg:
		return NewOggEncoder(sampleRate)
	default:
		return nil, fmt.Errorf("unknown encoder format %q", format)
	}
}
