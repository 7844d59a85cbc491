package dsp

import (
	"math"
	"sync"
)

// Analyzer maintains a windowed magnitude spectrum of the most recent audio.
// It is a read-only tap: Feed updates the spectrum, Snapshot returns a copy,
// and neither has any effect on the encoder path. Multiple consumers (VAD
// sampler, level meter) may call Snapshot concurrently.
type Analyzer struct {
	fftSize int
	bins    int
	window  []float64

	mu      sync.RWMutex
	pending []float64 // accumulating input frame
	mags    []float64 // last computed bin magnitudes
}

// NewAnalyzer creates an analyzer producing the given number of frequency
// bins. The FFT size is twice the bin count; a small bin count keeps the
// spectrum responsive to short speech bursts.
func NewAnalyzer(bins int) *Analyzer {
	if bins < 8 {
		bins = 8
	}
	fftSize := nextPow2(bins * 2)

	// Hann window.
	window := make([]float64, fftSize)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
	}

	return &Analyzer{
		fftSize: fftSize,
		bins:    bins,
		window:  window,
		pending: make([]float64, 0, fftSize),
		mags:    make([]float64, bins),
	}
}

// Bins returns the number of frequency bins.
func (a *Analyzer) Bins() int { return a.bins }

// Feed consumes conditioned samples and recomputes the spectrum whenever a
// full FFT frame has accumulated. Partial frames are carried over.
func (a *Analyzer) Feed(samples []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, s := range samples {
		a.pending = append(a.pending, float64(s))
		if len(a.pending) == a.fftSize {
			a.compute()
			a.pending = a.pending[:0]
		}
	}
}

// compute runs the windowed FFT over the pending frame. Caller holds the
// write lock.
func (a *Analyzer) compute() {
	re := make([]float64, a.fftSize)
	im := make([]float64, a.fftSize)
	for i, s := range a.pending {
		re[i] = s * a.window[i]
	}

	fft(re, im)

	norm := float64(a.fftSize) / 2
	for i := 0; i < a.bins; i++ {
		a.mags[i] = math.Hypot(re[i], im[i]) / norm
	}
}

// Snapshot returns a copy of the current bin magnitudes, normalized to
// roughly [0, 1] for full-scale input.
func (a *Analyzer) Snapshot() []float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]float64, len(a.mags))
	copy(out, a.mags)
	return out
}

// Reset clears the spectrum and any partial frame.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = a.pending[:0]
	for i := range a.mags {
		a.mags[i] = 0
	}
}

// fft computes an in-place iterative radix-2 FFT. len(re) must be a power
// of two.
func fft(re, im []float64) {
	n := len(re)

	// Bit-reversal permutation.
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}

	for size := 2; size <= n; size <<= 1 {
		ang := -2 * math.Pi / float64(size)
		wRe, wIm := math.Cos(ang), math.Sin(ang)
		for start := 0; start < n; start += size {
			curRe, curIm := 1.0, 0.0
			for k := 0; k < size/2; k++ {
				i, j := start+k, start+k+size/2
				tRe := re[j]*curRe - im[j]*curIm
				tIm := re[j]*curIm + im[j]*curRe
				re[j] = re[i] - tRe
				im[j] = im[i] - tIm
				re[i] += tRe
				im[i] += tIm
				curRe, curIm = curRe*wRe-curIm*wIm, curRe*wIm+curIm*wRe
			}
		}
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
