// Package audiocapture acquires the microphone stream that feeds the
// signal graph.
package audiocapture

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNotCapturing is returned when trying to get audio while not capturing.
var ErrNotCapturing = errors.New("not capturing audio")

// ErrAlreadyCapturing is returned when trying to start capture while already capturing.
var ErrAlreadyCapturing = errors.New("already capturing audio")

// ErrNoDevice is returned when no usable input device exists. This is a
// fatal-session error: the caller surfaces it and does not retry.
var ErrNoDevice = errors.New("no audio input device available")

// Capture owns the microphone stream. Exactly one consumer chain (the
// signal graph) receives samples via OnAudio callbacks; the capture itself
// performs no conditioning.
type Capture struct {
	mu sync.RWMutex

	capturing  bool
	startTime  time.Time
	sampleRate int

	buffer     *RingBuffer
	bufferSize int // in samples

	onAudio []func(samples []float32)

	impl captureImpl
}

// captureImpl is the backend interface. The real backend is PortAudio; tests
// install a fake.
type captureImpl interface {
	start(sampleRate int, callback func(samples []float32)) error
	stop() error
}

// Config holds configuration for audio capture.
type Config struct {
	SampleRate int           // default 16000 Hz (what Whisper-style models expect)
	BufferSize time.Duration // rolling pre-roll buffer, default 30 seconds
}

// DefaultConfig returns the default capture configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate: 16000,
		BufferSize: 30 * time.Second,
	}
}

// New creates a new audio capture instance. Failure to find an input device
// is terminal and surfaces immediately.
func New(cfg Config) (*Capture, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 30 * time.Second
	}

	bufferSamples := int(cfg.BufferSize.Seconds()) * cfg.SampleRate

	c := &Capture{
		sampleRate: cfg.SampleRate,
		bufferSize: bufferSamples,
		buffer:     NewRingBuffer(bufferSamples),
	}

	impl, err := newCaptureImpl()
	if err != nil {
		return nil, fmt.Errorf("open audio backend: %w", err)
	}
	c.impl = impl

	return c, nil
}

// Start begins capturing microphone audio.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capturing {
		return ErrAlreadyCapturing
	}

	err := c.impl.start(c.sampleRate, func(samples []float32) {
		c.handleAudio(samples)
	})
	if err != nil {
		return err
	}

	c.capturing = true
	c.startTime = time.Now()
	return nil
}

// Stop releases the microphone. Idempotent and safe from any state,
// including after a backend error.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.capturing {
		return nil
	}

	err := c.impl.stop()
	c.capturing = false
	// Drop the pre-roll so a later session cannot seed itself with audio
	// from before the microphone was released.
	c.buffer.Clear()
	return err
}

// IsCapturing returns true if currently capturing audio.
func (c *Capture) IsCapturing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capturing
}

// Duration returns how long capture has been running.
func (c *Capture) Duration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.capturing {
		return 0
	}
	return time.Since(c.startTime)
}

// OnAudio registers a callback for audio data. The callback receives
// float32 samples in the range [-1, 1] on the backend's capture goroutine.
func (c *Capture) OnAudio(callback func(samples []float32)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAudio = append(c.onAudio, callback)
}

// GetBufferedAudio returns the last 'duration' of buffered raw audio.
func (c *Capture) GetBufferedAudio(duration time.Duration) []float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	samples := int(duration.Seconds() * float64(c.sampleRate))
	return c.buffer.Read(samples)
}

// handleAudio stores incoming samples and fans them out to callbacks.
func (c *Capture) handleAudio(samples []float32) {
	c.mu.RLock()
	callbacks := c.onAudio
	c.mu.RUnlock()

	c.buffer.Write(samples)

	for _, cb := range callbacks {
		cb(samples)
	}
}

// SampleRate returns the configured sample rate.
func (c *Capture) SampleRate() int {
	return c.sampleRate
}
