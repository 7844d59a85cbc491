// Package vad classifies short audio windows as speech or silence and keeps
// the per-segment timers consumed by the session engine's timeout policy.
package vad

import "time"

// DefaultSpeechThreshold is the mean spectral magnitude above which a sample
// classifies as speech. The threshold is an absolute magnitude, not adaptive
// to the ambient noise floor; treat it as a tunable constant.
const DefaultSpeechThreshold = 0.01

// Classification is the outcome of one sample.
type Classification int

const (
	Silence Classification = iota
	Speech
)

func (c Classification) String() string {
	if c == Speech {
		return "speech"
	}
	return "silence"
}

// SpectrumSource supplies the current spectral snapshot. Satisfied by
// *dsp.Analyzer.
type SpectrumSource interface {
	Snapshot() []float64
}

// Sampler reads the analyzer tap on each engine tick and maintains advisory
// segment state. It has no side effects on the encoder and never drives
// state transitions itself; the session engine consults it.
type Sampler struct {
	source    SpectrumSource
	threshold float64

	segmentStart time.Time
	lastSpeech   time.Time
	spoken       bool
}

// NewSampler creates a sampler over the given spectrum source.
func NewSampler(source SpectrumSource, threshold float64) *Sampler {
	if threshold <= 0 {
		threshold = DefaultSpeechThreshold
	}
	return &Sampler{source: source, threshold: threshold}
}

// ResetSegment clears the per-segment counters. Called at the start of every
// recording segment, including each hands-free restart.
func (s *Sampler) ResetSegment(now time.Time) {
	s.segmentStart = now
	s.lastSpeech = time.Time{}
	s.spoken = false
}

// Sample reads the current spectrum, classifies it, and updates the segment
// timers. spoken is sticky: once true it stays true for the segment.
func (s *Sampler) Sample(now time.Time) Classification {
	mags := s.source.Snapshot()
	println("DEBUG sampler", len(mags), int(meanMagnitude(mags)*1e6), int(s.threshold*1e6))
	if meanMagnitude(mags) <= s.threshold {
		return Silence
	}

	s.lastSpeech = now
	s.spoken = true
	return Speech
}

// Spoken reports whether any sample classified as speech since the segment
// started.
func (s *Sampler) Spoken() bool { return s.spoken }

// SinceSpeech returns the time elapsed since the last speech sample. Returns
// false if no speech has been detected this segment.
func (s *Sampler) SinceSpeech(now time.Time) (time.Duration, bool) {
	if !s.spoken {
		return 0, false
	}
	return now.Sub(s.lastSpeech), true
}

// SegmentAge returns the time elapsed since the segment started.
func (s *Sampler) SegmentAge(now time.Time) time.Duration {
	return now.Sub(s.segmentStart)
}

func meanMagnitude(mags []float64) float64 {
	if len(mags) == 0 {
		return 0
	}
	var sum float64
	for _, m := range mags {
		sum += m
	}
	return sum / float64(len(mags))
}
