package dsp

import "math"

// HighPassFilter is a second-order biquad high-pass filter. It removes
// low-frequency rumble (HVAC, desk bumps, handling noise) before the
// compressor, which would otherwise pump on energy the microphone picks up
// below the voice band.
type HighPassFilter struct {
	b0, b1, b2 float64
	a1, a2     float64

	// Direct form II transposed state.
	z1, z2 float64
}

// NewHighPassFilter creates a high-pass filter with the given cutoff
// frequency in Hz. Q is fixed at Butterworth (1/sqrt2).
func NewHighPassFilter(sampleRate int, cutoffHz float64) *HighPassFilter {
	f := &HighPassFilter{}
	f.configure(sampleRate, cutoffHz)
	return f
}

func (f *HighPassFilter) configure(sampleRate int, cutoffHz float64) {
	const q = math.Sqrt2 / 2

	w0 := 2 * math.Pi * cutoffHz / float64(sampleRate)
	cosW0 := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)

	a0 := 1 + alpha
	f.b0 = (1 + cosW0) / 2 / a0
	f.b1 = -(1 + cosW0) / a0
	f.b2 = (1 + cosW0) / 2 / a0
	f.a1 = -2 * cosW0 / a0
	f.a2 = (1 - alpha) / a0
}

// Process filters samples in place and returns the same slice.
func (f *HighPassFilter) Process(samples []float32) []float32 {
	for i, s := range samples {
		in := float64(s)
		out := f.b0*in + f.z1
		f.z1 = f.b1*in - f.a1*out + f.z2
		f.z2 = f.b2*in - f.a2*out
		samples[i] = float32(out)
	}
	return samples
}

// Reset clears filter state.
func (f *HighPassFilter) Reset() {
	f.z1, f.z2 = 0, 0
}
