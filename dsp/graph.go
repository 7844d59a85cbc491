// Package dsp implements the signal-conditioning graph that sits between
// the microphone and the encoder: a high-pass filter, a dynamic-range
// compressor, and a read-only spectral analyzer tap.
package dsp

// GraphConfig holds tuning for the conditioning chain.
type GraphConfig struct {
	SampleRate   int
	HighPassHz   float64
	Compressor   CompressorConfig
	AnalyzerBins int
}

// DefaultGraphConfig returns the voice-tuned chain defaults.
func DefaultGraphConfig(sampleRate int) GraphConfig {
	return GraphConfig{
		SampleRate:   sampleRate,
		HighPassHz:   85,
		Compressor:   DefaultCompressorConfig(),
		AnalyzerBins: 32,
	}
}

// Graph is the fixed, ordered conditioning chain:
// high-pass -> compressor -> analyzer tap. Process returns the conditioned
// samples for the encoder sink; the analyzer observes the same samples
// without modifying them.
type Graph struct {
	filter     *HighPassFilter
	compressor *Compressor
	analyzer   *Analyzer
}

// NewGraph builds the conditioning chain.
func NewGraph(cfg GraphConfig) *Graph {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.HighPassHz <= 0 {
		cfg.HighPassHz = 85
	}
	if cfg.AnalyzerBins <= 0 {
		cfg.AnalyzerBins = 32
	}
	if cfg.Compressor == (CompressorConfig{}) {
		cfg.Compressor = DefaultCompressorConfig()
	}

	return &Graph{
		filter:     NewHighPassFilter(cfg.SampleRate, cfg.HighPassHz),
		compressor: NewCompressor(cfg.SampleRate, cfg.Compressor),
		analyzer:   NewAnalyzer(cfg.AnalyzerBins),
	}
}

// Process conditions a chunk in place and feeds the analyzer tap. The
// returned slice aliases the input.
func (g *Graph) Process(samples []float32) []float32 {
	out := g.compressor.Process(g.filter.Process(samples))
	g.analyzer.Feed(out)
	return out
}

// Analyzer returns the read-only spectral tap.
func (g *Graph) Analyzer() *Analyzer { return g.analyzer }

// Reset clears all node state between segments. Safe to call from any
// state, including after a capture error, and idempotent.
func (g *Graph) Reset() {
	g.filter.Reset()
	g.compressor.Reset()
	g.analyzer.Reset()
}
