package encode

import (
	"bytes"
	"fmt"

	opuscodec "github.com/jj11hh/opus"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

const (
	// 20 ms frames. Opus accepts 16 kHz input directly.
	oggFrameMS      = 20
	maxOpusPacket   = 1500
	oggGranuleRate  = 48000 // Ogg Opus granule positions are always 48 kHz
	oggSampleRateHz = 16000
)

// OggEncoder encodes buffered samples with Opus and packages the packets in
// an Ogg container. Produces much smaller blobs than WAV, which matters for
// long hands-free segments shipped over the network.
type OggEncoder struct {
	sampleRate int
	frameSize  int

	enc     *opuscodec.Encoder
	pending []float32

	out    *bytes.Buffer
	writer *oggwriter.OggWriter
	seq    uint16
	ts     uint32
	wrote  bool
}

// NewOggEncoder creates an Opus-in-Ogg encoder for mono audio.
func NewOggEncoder(sampleRate int) (*OggEncoder, error) {
	if sampleRate <= 0 {
		sampleRate = oggSampleRateHz
	}

	enc, err := opuscodec.NewEncoder(sampleRate, 1, opuscodec.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}

	e := &OggEncoder{
		sampleRate: sampleRate,
		frameSize:  sampleRate * oggFrameMS / 1000,
		enc:        enc,
	}
	if err := e.openContainer(); err != nil {
		return nil, err
	}
	return e, nil
}

// MIMEType returns "audio/ogg".
func (e *OggEncoder) MIMEType() string { return "audio/ogg" }

func (e *OggEncoder) openContainer() error {
	e.out = &bytes.Buffer{}
	w, err := oggwriter.NewWith(e.out, uint32(e.sampleRate), 1)
	if err != nil {
		return fmt.Errorf("create ogg writer: %w", err)
	}
	e.writer = w
	e.seq = 0
	e.ts = 0
	e.wrote = false
	e.pending = e.pending[:0]
	return nil
}

// Append buffers samples and encodes every complete frame.
func (e *OggEncoder) Append(samples []float32) error {
	e.pending = append(e.pending, samples...)

	for len(e.pending) >= e.frameSize {
		if err := e.encodeFrame(e.pending[:e.frameSize]); err != nil {
			return err
		}
		e.pending = e.pending[e.frameSize:]
	}
	return nil
}

func (e *OggEncoder) encodeFrame(frame []float32) error {
	packet := make([]byte, maxOpusPacket)
	n, err := e.enc.EncodeFloat32(frame, packet)
	if err != nil {
		return fmt.Errorf("opus encode: %w", err)
	}

	e.seq++
	e.ts += uint32(len(frame) * oggGranuleRate / e.sampleRate)
	err = e.writer.WriteRTP(&rtp.Packet{
		Header:  rtp.Header{SequenceNumber: e.seq, Timestamp: e.ts},
		Payload: packet[:n],
	})
	if err != nil {
		return fmt.Errorf("write ogg page: %w", err)
	}
	e.wrote = true
	return nil
}

// Finalize flushes the trailing partial frame, closes the container, and
// returns the blob. The encoder is left ready for a new segment.
func (e *OggEncoder) Finalize() (Utterance, error) {
	if len(e.pending) > 0 {
		// Zero-pad the final frame; Opus requires complete frames.
		frame := make([]float32, e.frameSize)
		copy(frame, e.pending)
		e.pending = e.pending[:0]
		if err := e.encodeFrame(frame); err != nil {
			return Utterance{}, err
		}
	}

	if !e.wrote {
		// Nothing appended: hand back an empty utterance, not headers-only.
		return Utterance{MIMEType: e.MIMEType()}, nil
	}

	if err := e.writer.Close(); err != nil {
		return Utterance{}, fmt.Errorf("close ogg writer: %w", err)
	}

	data := make([]byte, e.out.Len())
	copy(data, e.out.Bytes())

	if err := e.openContainer(); err != nil {
		return Utterance{}, err
	}
	return Utterance{Data: data, MIMEType: e.MIMEType()}, nil
}

// Reset discards buffered audio and starts a fresh container.
func (e *OggEncoder) Reset() {
	// Best effort: a fresh container replaces whatever was in flight.
	_ = e.openContainer()
}
