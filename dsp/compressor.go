package dsp

import "math"

// Compressor is a feed-forward dynamic-range compressor with an envelope
// follower. It evens out loud and quiet speech so the encoder and the VAD
// see a consistent level regardless of how close the user sits to the
// microphone.
type Compressor struct {
	thresholdDB float64
	ratio       float64

	attackCoef  float64
	releaseCoef float64

	// Envelope in dB, decays toward silence.
	envelopeDB float64
}

// CompressorConfig holds compressor tuning parameters.
type CompressorConfig struct {
	ThresholdDB float64 // level above which gain reduction applies
	Ratio       float64 // input/output slope above threshold
	Attack      float64 // seconds to react to rising level
	Release     float64 // seconds to recover after level drops
}

// DefaultCompressorConfig returns the voice-tuned defaults: a low threshold
// with a high ratio and fast attack acts as adaptive gain rather than as a
// musical compressor.
func DefaultCompressorConfig() CompressorConfig {
	return CompressorConfig{
		ThresholdDB: -50,
		Ratio:       12,
		Attack:      0.003,
		Release:     0.25,
	}
}

// NewCompressor creates a compressor for the given sample rate.
func NewCompressor(sampleRate int, cfg CompressorConfig) *Compressor {
	if cfg.Ratio < 1 {
		cfg.Ratio = 1
	}
	return &Compressor{
		thresholdDB: cfg.ThresholdDB,
		ratio:       cfg.Ratio,
		attackCoef:  coef(cfg.Attack, sampleRate),
		releaseCoef: coef(cfg.Release, sampleRate),
		envelopeDB:  silenceDB,
	}
}

const silenceDB = -120

// coef converts a time constant in seconds to a one-pole smoothing
// coefficient at the given sample rate.
func coef(seconds float64, sampleRate int) float64 {
	if seconds <= 0 {
		return 0
	}
	return math.Exp(-1 / (seconds * float64(sampleRate)))
}

// Process applies gain reduction in place and returns the same slice.
func (c *Compressor) Process(samples []float32) []float32 {
	for i, s := range samples {
		levelDB := amplitudeToDB(math.Abs(float64(s)))

		// Envelope follower: fast attack, slow release.
		if levelDB > c.envelopeDB {
			c.envelopeDB = c.attackCoef*c.envelopeDB + (1-c.attackCoef)*levelDB
		} else {
			c.envelopeDB = c.releaseCoef*c.envelopeDB + (1-c.releaseCoef)*levelDB
		}

		gainDB := 0.0
		if over := c.envelopeDB - c.thresholdDB; over > 0 {
			gainDB = over/c.ratio - over
		}
		samples[i] = s * float32(dbToAmplitude(gainDB))
	}
	return samples
}

// Reset clears the envelope state.
func (c *Compressor) Reset() {
	c.envelopeDB = silenceDB
}

func amplitudeToDB(a float64) float64 {
	if a < 1e-6 {
		return silenceDB
	}
	return 20 * math.Log10(a)
}

func dbToAmplitude(db float64) float64 {
	return math.Pow(10, db/20)
}
