package encode

import "bytes"

// WAVEncoder buffers samples and finalizes them as a mono 16-bit PCM WAV
// blob. WAV is the safe default: every transcription endpoint accepts it.
type WAVEncoder struct {
	sampleRate int
	samples    []float32
}

// NewWAVEncoder creates a WAV encoder for mono audio at sampleRate.
func NewWAVEncoder(sampleRate int) *WAVEncoder {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &WAVEncoder{
		sampleRate: sampleRate,
		samples:    make([]float32, 0, sampleRate*30),
	}
}

// MIMEType returns "audio/wav".
func (e *WAVEncoder) MIMEType() string { return "audio/wav" }

// Append buffers a chunk of samples.
func (e *WAVEncoder) Append(samples []float32) error {
	e.samples = append(e.samples, samples...)
	return nil
}

// Finalize renders the buffered samples as a WAV file and resets the buffer.
func (e *WAVEncoder) Finalize() (Utterance, error) {
	if len(e.samples) == 0 {
		return Utterance{MIMEType: e.MIMEType()}, nil
	}

	data := pcmToWAV(e.samples, e.sampleRate)
	e.Reset()
	return Utterance{Data: data, MIMEType: e.MIMEType()}, nil
}

// Reset discards buffered audio.
func (e *WAVEncoder) Reset() {
	e.samples = e.samples[:0]
}

// pcmToWAV converts float32 PCM samples in [-1, 1] to a mono 16-bit WAV
// file.
func pcmToWAV(samples []float32, sampleRate int) []byte {
	dataSize := len(samples) * 2

	buf := bytes.NewBuffer(make([]byte, 0, 44+dataSize))

	// RIFF header
	buf.WriteString("RIFF")
	writeUint32LE(buf, uint32(36+dataSize))
	buf.WriteString("WAVE")

	// fmt chunk
	buf.WriteString("fmt ")
	writeUint32LE(buf, 16)                   // chunk size
	writeUint16LE(buf, 1)                    // PCM
	writeUint16LE(buf, 1)                    // mono
	writeUint32LE(buf, uint32(sampleRate))   // sample rate
	writeUint32LE(buf, uint32(sampleRate*2)) // byte rate
	writeUint16LE(buf, 2)                    // block align
	writeUint16LE(buf, 16)                   // bits per sample

	// data chunk
	buf.WriteString("data")
	writeUint32LE(buf, uint32(dataSize))

	for _, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		writeInt16LE(buf, int16(s*32767))
	}

	return buf.Bytes()
}

func writeUint16LE(w *bytes.Buffer, v uint16) {
	w.WriteByte(byte(v))
	w.WriteByte(byte(v >> 8))
}

func writeUint32LE(w *bytes.Buffer, v uint32) {
	w.WriteByte(byte(v))
	w.WriteByte(byte(v >> 8))
	w.WriteByte(byte(v >> 16))
	w.WriteByte(byte(v >> 24))
}

func writeInt16LE(w *bytes.Buffer, v int16) {
	w.WriteByte(byte(v))
	w.WriteByte(byte(v >> 8))
}
