// Package session drives the recording lifecycle: it owns the state
// machine that moves between idle, recording, and processing, applies the
// hands-free timeout policy, and hands finished utterances to the
// transcription dispatcher.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/voxpad/voxpad/dsp"
	"github.com/voxpad/voxpad/encode"
	"github.com/voxpad/voxpad/internal/types"
	"github.com/voxpad/voxpad/transcribe"
	"github.com/voxpad/voxpad/vad"
)

// State is the engine's lifecycle phase.
type State int32

const (
	// StateIdle means no session is active and the microphone is released.
	StateIdle State = iota
	// StateRecording means samples are flowing into the encoder.
	StateRecording
	// StateProcessing means the segment is finalized and a restart or
	// return to idle is pending.
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// ErrBusy is returned by Start while a session is already active.
var ErrBusy = errors.New("session already active")

// ErrNoSpeech is surfaced in manual mode when a finished recording produced
// no usable text.
var ErrNoSpeech = errors.New("no speech detected in recording")

// stopReason records why a recording segment ended.
type stopReason int

const (
	reasonManual stopReason = iota
	reasonSilence
	reasonInitialSilence
)

// AudioSource is the microphone stream the engine records from.
// *audiocapture.Capture satisfies it.
type AudioSource interface {
	Start() error
	Stop() error
	OnAudio(callback func(samples []float32))
	SampleRate() int

	// GetBufferedAudio returns the most recent raw audio from the
	// source's rolling buffer, up to the given duration.
	GetBufferedAudio(d time.Duration) []float32
}

// Config holds the engine's timing and encoding knobs.
type Config struct {
	// SpeechThreshold is the mean spectral magnitude above which a poll
	// counts as speech.
	SpeechThreshold float64
	// SilenceTimeout ends a hands-free segment this long after the last
	// detected speech.
	SilenceTimeout time.Duration
	// InitialTimeout ends a hands-free segment in which no speech was
	// ever detected.
	InitialTimeout time.Duration
	// SettleDelay is the pause between a silence-terminated segment and
	// the automatic restart.
	SettleDelay time.Duration
	// PollInterval is how often the voice detector samples the spectrum.
	PollInterval time.Duration
	// Preroll is how much already-buffered audio seeds each new segment,
	// so speech that starts just before the segment does is not clipped.
	Preroll time.Duration
	// EncoderFormat selects the utterance container.
	EncoderFormat encode.Format
}

// DefaultConfig returns the standard timing policy.
func DefaultConfig() Config {
	return Config{
		SpeechThreshold: 0.01,
		SilenceTimeout:  4 * time.Second,
		InitialTimeout:  10 * time.Second,
		SettleDelay:     100 * time.Millisecond,
		PollInterval:    30 * time.Millisecond,
		Preroll:         300 * time.Millisecond,
		EncoderFormat:   encode.FormatWAV,
	}
}

// Callbacks are the engine's outbound notifications. OnState fires from the
// engine goroutine; OnRecord and OnError fire from dispatch goroutines.
type Callbacks struct {
	OnState  func(State)
	OnRecord func(types.TranscriptionRecord)
	OnError  func(error)
}

// Deps wires the engine to its collaborators. Spectrum may be nil, in which
// case the engine reads the analyzer of its own signal graph.
type Deps struct {
	Clock    Clock
	Source   AudioSource
	Service  transcribe.Service
	Settings func() types.Settings
	Spectrum vad.SpectrumSource
	Logger   *slog.Logger
	Callbacks
}

type command struct {
	start bool
	reply chan error
}

// Engine is the recording session state machine. All transitions happen on
// a single goroutine, so the manual-stop flag and state changes are never
// observed half-applied.
type Engine struct {
	cfg     Config
	clock   Clock
	source  AudioSource
	logger  *slog.Logger
	cbs     Callbacks
	setting func() types.Settings

	graph   *dsp.Graph
	sampler *vad.Sampler
	disp    *dispatcher

	procMu  sync.Mutex // guards graph and encoder against the capture callback
	encoder encode.Encoder

	recording atomic.Bool // capture callback feeds the encoder only when set

	commands  chan command
	quit      chan struct{}
	quitOnce  sync.Once
	done      chan struct{}
	closed    chan struct{} // signals dispatch goroutines to drop results

	// loop-goroutine state
	state       State
	capturing   bool
	manualStop  bool
	segSettings types.Settings
	restart     <-chan time.Time

	mu         sync.Mutex // guards the status snapshot below
	stState    State
	stSpoken   bool
	stSettings types.Settings
	segStart   time.Time
}

// New builds an Engine and starts its goroutine. Close must be called to
// release it.
func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Source == nil {
		return nil, errors.New("session: audio source is required")
	}
	if deps.Service == nil {
		return nil, errors.New("session: transcription service is required")
	}
	if deps.Settings == nil {
		return nil, errors.New("session: settings provider is required")
	}
	if deps.Clock == nil {
		deps.Clock = NewClock()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	rate := deps.Source.SampleRate()
	graph := dsp.NewGraph(dsp.DefaultGraphConfig(rate))
	spectrum := deps.Spectrum
	if spectrum == nil {
		spectrum = graph.Analyzer()
	}
	enc, err := encode.New(cfg.EncoderFormat, rate)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		clock:    deps.Clock,
		source:   deps.Source,
		logger:   deps.Logger,
		cbs:      deps.Callbacks,
		setting:  deps.Settings,
		graph:    graph,
		sampler:  vad.NewSampler(spectrum, cfg.SpeechThreshold),
		encoder:  enc,
		commands: make(chan command),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		closed:   make(chan struct{}),
	}
	e.disp = &dispatcher{
		service: deps.Service,
		logger:  deps.Logger,
		newID:   uuid.NewString,
		now:     deps.Clock.Now,
		timeout: 2 * time.Minute,
		record:  e.emitRecord,
		fail:    e.emitError,
		closed:  e.closed,
	}
	deps.Source.OnAudio(e.handleAudio)
	go e.loop()
	return e, nil
}

// Start begins a recording session. It returns ErrBusy when one is already
// active and the microphone error when the stream cannot be opened.
func (e *Engine) Start() error {
	return e.post(command{start: true, reply: make(chan error, 1)})
}

// Stop ends the active session. During recording it finalizes the segment;
// during the hands-free settle window it cancels the pending restart. Stop
// while idle is a no-op.
func (e *Engine) Stop() error {
	return e.post(command{start: false, reply: make(chan error, 1)})
}

func (e *Engine) post(cmd command) error {
	select {
	case e.commands <- cmd:
		return <-cmd.reply
	case <-e.quit:
		return errors.New("session: engine closed")
	}
}

// State returns the current lifecycle phase.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stState
}

// Status returns a snapshot for the frontend.
func (e *Engine) Status() types.EngineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := types.EngineStatus{
		State:     e.stState.String(),
		HandsFree: e.stSettings.HandsFree,
		Language:  e.stSettings.Language,
		Spoken:    e.stSpoken,
	}
	if e.stState == StateRecording {
		st.SegmentMS = e.clock.Now().Sub(e.segStart).Milliseconds()
	}
	return st
}

// Close stops the engine goroutine and releases the microphone. In-flight
// transcriptions are abandoned. Safe to call more than once.
func (e *Engine) Close() error {
	e.quitOnce.Do(func() { close(e.quit) })
	<-e.done
	return nil
}

func (e *Engine) loop() {
	defer close(e.done)
	tick, stopTick := e.clock.Tick(e.cfg.PollInterval)
	defer stopTick()

	for {
		select {
		case <-e.quit:
			close(e.closed)
			if e.capturing {
				if err := e.source.Stop(); err != nil {
					e.logger.Warn("stopping audio source", "error", err)
				}
			}
			e.recording.Store(false)
			return
		case cmd := <-e.commands:
			if cmd.start {
				cmd.reply <- e.handleStart()
			} else {
				cmd.reply <- e.handleStop()
			}
		case now := <-tick:
			e.handleTick(now)
		case <-e.restart:
			e.restart = nil
			if e.manualStop {
				e.toIdle()
				break
			}
			// The restart is a new segment, so it gets a fresh settings
			// snapshot. Disabling hands-free during the settle window
			// ends the loop instead of starting a manual segment.
			settings := e.setting()
			if !settings.HandsFree {
				e.toIdle()
				break
			}
			if err := e.startSegment(settings); err != nil {
				e.emitError(err)
				e.toIdle()
			}
		}
	}
}

func (e *Engine) handleStart() error {
	if e.state != StateIdle {
		return ErrBusy
	}
	return e.startSegment(e.setting())
}

func (e *Engine) handleStop() error {
	switch e.state {
	case StateRecording:
		e.finishSegment(reasonManual)
	case StateProcessing:
		// Checked once when the settle delay fires.
		e.manualStop = true
	}
	return nil
}

func (e *Engine) handleTick(now time.Time) {
	if e.state != StateRecording {
		return
	}
	e.sampler.Sample(now)
	spoken := e.sampler.Spoken()
	e.mu.Lock()
	e.stSpoken = spoken
	e.mu.Unlock()

	if !e.segSettings.HandsFree {
		return
	}
	if spoken {
		if since, ok := e.sampler.SinceSpeech(now); ok && since >= e.cfg.SilenceTimeout {
			e.finishSegment(reasonSilence)
		}
		return
	}
	if e.sampler.SegmentAge(now) >= e.cfg.InitialTimeout {
		e.finishSegment(reasonInitialSilence)
	}
}

// startSegment arms a fresh recording segment, opening the microphone if it
// is not already streaming.
func (e *Engine) startSegment(settings types.Settings) error {
	if !e.capturing {
		if err := e.source.Start(); err != nil {
			return fmt.Errorf("opening audio input: %w", err)
		}
		e.capturing = true
	}
	now := e.clock.Now()
	e.procMu.Lock()
	e.graph.Reset()
	e.encoder.Reset()
	if e.cfg.Preroll > 0 {
		// Seed the segment with buffered audio so a word spoken just
		// before the segment opened keeps its first syllable.
		if pre := e.source.GetBufferedAudio(e.cfg.Preroll); len(pre) > 0 {
			if err := e.encoder.Append(e.graph.Process(pre)); err != nil {
				e.logger.Warn("seeding preroll", "error", err)
			}
		}
	}
	e.procMu.Unlock()
	e.sampler.ResetSegment(now)
	e.segSettings = settings
	e.manualStop = false
	e.recording.Store(true)

	e.mu.Lock()
	e.segStart = now
	e.stSpoken = false
	e.stSettings = settings
	e.mu.Unlock()
	e.setState(StateRecording)
	return nil
}

// finishSegment finalizes the encoder, decides whether to dispatch, and
// routes to idle or to a hands-free restart.
func (e *Engine) finishSegment(reason stopReason) {
	e.recording.Store(false)
	e.setState(StateProcessing)
	settings := e.segSettings
	spoken := e.sampler.Spoken()

	e.procMu.Lock()
	utterance, err := e.encoder.Finalize()
	e.procMu.Unlock()

	switch {
	case err != nil:
		err = fmt.Errorf("finalizing recording: %w", err)
		if settings.HandsFree {
			e.logger.Warn("dropping segment", "error", err)
		} else {
			e.emitError(err)
		}
	case len(utterance.Data) == 0 || (settings.HandsFree && !spoken):
		// Nothing worth sending. Manual mode still tells the user.
		if !settings.HandsFree {
			e.emitError(ErrNoSpeech)
		} else {
			e.logger.Debug("skipping dispatch", "spoken", spoken, "bytes", len(utterance.Data))
		}
	default:
		go e.disp.dispatch(utterance, settings)
	}

	if reason == reasonSilence && settings.HandsFree {
		e.restart = e.clock.After(e.cfg.SettleDelay)
		return
	}
	e.toIdle()
}

func (e *Engine) toIdle() {
	e.recording.Store(false)
	e.manualStop = false
	e.restart = nil
	if e.capturing {
		if err := e.source.Stop(); err != nil {
			e.logger.Warn("stopping audio source", "error", err)
		}
		e.capturing = false
	}
	e.setState(StateIdle)
}

func (e *Engine) setState(s State) {
	e.state = s
	e.mu.Lock()
	e.stState = s
	e.mu.Unlock()
	if e.cbs.OnState != nil {
		e.cbs.OnState(s)
	}
}

// handleAudio runs on the capture goroutine. The graph always sees the
// stream so the spectrum stays live, but samples only reach the encoder
// while a segment is open.
func (e *Engine) handleAudio(samples []float32) {
	e.procMu.Lock()
	out := e.graph.Process(samples)
	if e.recording.Load() {
		if err := e.encoder.Append(out); err != nil {
			e.logger.Warn("appending audio", "error", err)
		}
	}
	e.procMu.Unlock()
}

func (e *Engine) emitRecord(rec types.TranscriptionRecord) {
	if e.cbs.OnRecord != nil {
		e.cbs.OnRecord(rec)
	}
}

func (e *Engine) emitError(err error) {
	e.logger.Error("session error", "error", err)
	if e.cbs.OnError != nil {
		e.cbs.OnError(err)
	}
}
