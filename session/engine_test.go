package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/voxpad/voxpad/internal/types"
	"github.com/voxpad/voxpad/transcribe"
)

// fakeClock delivers poll ticks and settle timers only when the test fires
// them, so every timeout in these tests is exact.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	tick   chan time.Time
	settle chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		tick:   make(chan time.Time),
		settle: make(chan time.Time, 1),
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Tick(time.Duration) (<-chan time.Time, func()) {
	return c.tick, func() {}
}

func (c *fakeClock) After(time.Duration) <-chan time.Time {
	return c.settle
}

// advance moves the clock and delivers one poll tick. It returns once the
// engine goroutine has taken the tick.
func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	c.tick <- now
}

// fireSettle expires the pending settle timer.
func (c *fakeClock) fireSettle() {
	c.settle <- c.Now()
}

type fakeSource struct {
	mu       sync.Mutex
	rate     int
	startErr error
	starts   int
	stops    int
	buffered []float32
	cb       func([]float32)
}

func (s *fakeSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.starts++
	return nil
}

func (s *fakeSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

func (s *fakeSource) OnAudio(cb func([]float32)) { s.cb = cb }

func (s *fakeSource) SampleRate() int { return s.rate }

// feed pushes one sine buffer through the capture callback, as the
// PortAudio stream would.
func (s *fakeSource) feed(n int) {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.4 * float32(math.Sin(2*math.Pi*440*float64(i)/float64(s.rate)))
	}
	s.cb(samples)
}

func (s *fakeSource) counts() (starts, stops int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts, s.stops
}

// setBuffered plants pre-roll audio for the next GetBufferedAudio call.
func (s *fakeSource) setBuffered(n int) {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.3 * float32(math.Sin(2*math.Pi*330*float64(i)/float64(s.rate)))
	}
	s.mu.Lock()
	s.buffered = samples
	s.mu.Unlock()
}

func (s *fakeSource) GetBufferedAudio(time.Duration) []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffered
}

type fakeSpectrum struct {
	mu    sync.Mutex
	level float64
}

func (f *fakeSpectrum) set(level float64) {
	f.mu.Lock()
	f.level = level
	f.mu.Unlock()
}

func (f *fakeSpectrum) Snapshot() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return []float64{f.level}
}

type fakeService struct {
	mu        sync.Mutex
	text      string
	err       error
	calls     int
	langs     []string
	audioLens []int
}

func (s *fakeService) Name() string { return "fake" }

func (s *fakeService) Transcribe(_ context.Context, audio []byte, mimeType, language string) (*transcribe.Result, error) {
	s.mu.Lock()
	s.calls++
	s.langs = append(s.langs, language)
	s.audioLens = append(s.audioLens, len(audio))
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &transcribe.Result{Text: s.text, DetectedLanguage: "English"}, nil
}

func (s *fakeService) Close() error { return nil }

func (s *fakeService) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *fakeService) callDetails() (langs []string, audioLens []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.langs...), append([]int(nil), s.audioLens...)
}

type harness struct {
	engine   *Engine
	clock    *fakeClock
	source   *fakeSource
	spectrum *fakeSpectrum
	service  *fakeService

	states  chan State
	records chan types.TranscriptionRecord
	errs    chan error

	settings types.Settings
	mu       sync.Mutex
}

func newHarness(t *testing.T, handsFree bool) *harness {
	t.Helper()
	h := &harness{
		clock:    newFakeClock(),
		source:   &fakeSource{rate: 16000},
		spectrum: &fakeSpectrum{},
		service:  &fakeService{text: "  Hello there.  "},
		states:   make(chan State, 32),
		records:  make(chan types.TranscriptionRecord, 8),
		errs:     make(chan error, 8),
		settings: types.Settings{Language: types.LangAuto, HandsFree: handsFree},
	}
	eng, err := New(DefaultConfig(), Deps{
		Clock:    h.clock,
		Source:   h.source,
		Service:  h.service,
		Spectrum: h.spectrum,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Settings: func() types.Settings {
			h.mu.Lock()
			defer h.mu.Unlock()
			return h.settings
		},
		Callbacks: Callbacks{
			OnState:  func(s State) { h.states <- s },
			OnRecord: func(r types.TranscriptionRecord) { h.records <- r },
			OnError:  func(err error) { h.errs <- err },
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.engine = eng
	t.Cleanup(func() { eng.Close() })
	return h
}

func (h *harness) setLanguage(code string) {
	h.mu.Lock()
	h.settings.Language = code
	h.mu.Unlock()
}

func (h *harness) setHandsFree(enabled bool) {
	h.mu.Lock()
	h.settings.HandsFree = enabled
	h.mu.Unlock()
}

func (h *harness) waitState(t *testing.T, want State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-h.states:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v", want)
		}
	}
}

func (h *harness) waitRecord(t *testing.T) types.TranscriptionRecord {
	t.Helper()
	select {
	case rec := <-h.records:
		return rec
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transcription record")
		return types.TranscriptionRecord{}
	}
}

func (h *harness) waitError(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.errs:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for error callback")
		return nil
	}
}

func TestManualStartStopDispatches(t *testing.T) {
	h := newHarness(t, false)

	if err := h.engine.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, StateRecording)
	h.source.feed(3200)

	if err := h.engine.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	h.waitState(t, StateIdle)

	rec := h.waitRecord(t)
	if rec.OriginalText != "Hello there." {
		t.Errorf("OriginalText = %q, want trimmed %q", rec.OriginalText, "Hello there.")
	}
	if rec.DetectedLanguage != "English" {
		t.Errorf("DetectedLanguage = %q, want English", rec.DetectedLanguage)
	}
	if rec.ID == "" {
		t.Error("record has no ID")
	}

	starts, stops := h.source.counts()
	if starts != 1 || stops != 1 {
		t.Errorf("source starts/stops = %d/%d, want 1/1", starts, stops)
	}
}

func TestManualStopWithoutSpeechSurfacesError(t *testing.T) {
	h := newHarness(t, false)
	h.service.text = transcribe.SentinelSilence

	if err := h.engine.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, StateRecording)
	h.source.feed(3200)
	if err := h.engine.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	h.waitState(t, StateIdle)

	if err := h.waitError(t); !errors.Is(err, ErrNoSpeech) {
		t.Errorf("error = %v, want ErrNoSpeech", err)
	}
}

func TestManualStopWithEmptyBufferSkipsNetwork(t *testing.T) {
	h := newHarness(t, false)

	if err := h.engine.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, StateRecording)
	// No audio fed: the finalized utterance is empty.
	if err := h.engine.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	h.waitState(t, StateIdle)

	if err := h.waitError(t); !errors.Is(err, ErrNoSpeech) {
		t.Errorf("error = %v, want ErrNoSpeech", err)
	}
	time.Sleep(50 * time.Millisecond)
	if n := h.service.callCount(); n != 0 {
		t.Errorf("service called %d times for an empty buffer", n)
	}
}

func TestStartWhileActiveReturnsErrBusy(t *testing.T) {
	h := newHarness(t, false)

	if err := h.engine.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, StateRecording)
	if err := h.engine.Start(); !errors.Is(err, ErrBusy) {
		t.Errorf("second Start = %v, want ErrBusy", err)
	}
}

func TestStopWhileIdleIsNoop(t *testing.T) {
	h := newHarness(t, false)

	if err := h.engine.Stop(); err != nil {
		t.Errorf("Stop while idle = %v, want nil", err)
	}
	if got := h.engine.State(); got != StateIdle {
		t.Errorf("state = %v, want idle", got)
	}
}

func TestStartSurfacesMicrophoneError(t *testing.T) {
	h := newHarness(t, false)
	h.source.startErr = errors.New("device unavailable")

	err := h.engine.Start()
	if err == nil || !errors.Is(err, h.source.startErr) {
		t.Fatalf("Start = %v, want wrapped device error", err)
	}
	if got := h.engine.State(); got != StateIdle {
		t.Errorf("state after failed start = %v, want idle", got)
	}
}

func TestHandsFreeInitialSilenceGoesIdle(t *testing.T) {
	h := newHarness(t, true)

	if err := h.engine.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, StateRecording)

	// Quiet room: nine seconds of polling stays under the initial
	// timeout, the tenth second crosses it.
	h.spectrum.set(0.001)
	for i := 0; i < 9; i++ {
		h.clock.advance(time.Second)
	}
	if got := h.engine.State(); got != StateRecording {
		t.Fatalf("state before timeout = %v, want recording", got)
	}
	h.clock.advance(time.Second)

	h.waitState(t, StateIdle)
	time.Sleep(50 * time.Millisecond)
	if n := h.service.callCount(); n != 0 {
		t.Errorf("service called %d times after silent segment", n)
	}
	if _, stops := h.source.counts(); stops != 1 {
		t.Errorf("source stops = %d, want 1 (microphone released)", stops)
	}
}

func TestHandsFreeSilenceTimeoutDispatchesAndRestarts(t *testing.T) {
	h := newHarness(t, true)

	if err := h.engine.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, StateRecording)

	// Speech, then the speaker falls silent for the full timeout.
	h.spectrum.set(0.5)
	h.clock.advance(100 * time.Millisecond)
	h.source.feed(3200)
	h.spectrum.set(0.001)
	h.clock.advance(4 * time.Second)

	h.waitState(t, StateProcessing)
	rec := h.waitRecord(t)
	if rec.OriginalText != "Hello there." {
		t.Errorf("OriginalText = %q", rec.OriginalText)
	}

	// The settle delay expires and the loop re-arms without reopening
	// the microphone.
	h.clock.fireSettle()
	h.waitState(t, StateRecording)
	starts, stops := h.source.counts()
	if starts != 1 || stops != 0 {
		t.Errorf("source starts/stops = %d/%d, want 1/0 across restart", starts, stops)
	}
}

func TestHandsFreeRestartUsesFreshSettings(t *testing.T) {
	h := newHarness(t, true)

	if err := h.engine.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, StateRecording)

	h.spectrum.set(0.5)
	h.clock.advance(100 * time.Millisecond)
	h.source.feed(3200)
	h.spectrum.set(0.001)
	h.clock.advance(4 * time.Second)
	h.waitState(t, StateProcessing)
	h.waitRecord(t)

	// The user picks a language during the settle window; the restarted
	// segment must carry it.
	h.setLanguage(types.LangFrench)
	h.clock.fireSettle()
	h.waitState(t, StateRecording)

	h.spectrum.set(0.5)
	h.clock.advance(100 * time.Millisecond)
	h.source.feed(3200)
	h.spectrum.set(0.001)
	h.clock.advance(4 * time.Second)
	h.waitRecord(t)

	langs, _ := h.service.callDetails()
	if len(langs) != 2 {
		t.Fatalf("service calls = %d, want 2", len(langs))
	}
	if langs[0] != "" {
		t.Errorf("first segment language hint = %q, want empty for auto", langs[0])
	}
	if langs[1] != types.LangFrench {
		t.Errorf("restarted segment language hint = %q, want %q", langs[1], types.LangFrench)
	}
}

func TestHandsFreeDisabledDuringSettleEndsLoop(t *testing.T) {
	h := newHarness(t, true)

	if err := h.engine.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, StateRecording)

	h.spectrum.set(0.5)
	h.clock.advance(100 * time.Millisecond)
	h.source.feed(3200)
	h.spectrum.set(0.001)
	h.clock.advance(4 * time.Second)
	h.waitState(t, StateProcessing)
	h.waitRecord(t)

	// Turning hands-free off between iterations must stop the loop, not
	// start a segment that would never time out.
	h.setHandsFree(false)
	h.clock.fireSettle()
	h.waitState(t, StateIdle)

	if _, stops := h.source.counts(); stops != 1 {
		t.Errorf("source stops = %d, want 1 (microphone released)", stops)
	}
}

func TestHandsFreeRestartSeedsPreroll(t *testing.T) {
	h := newHarness(t, true)

	if err := h.engine.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, StateRecording)

	h.spectrum.set(0.5)
	h.clock.advance(100 * time.Millisecond)
	h.source.feed(3200)
	h.spectrum.set(0.001)
	h.clock.advance(4 * time.Second)
	h.waitState(t, StateProcessing)
	h.waitRecord(t)

	// Audio arrives during the settle window; the restarted segment must
	// pick it up from the rolling buffer even though nothing is fed to
	// the capture callback afterwards.
	h.source.setBuffered(1600)
	h.clock.fireSettle()
	h.waitState(t, StateRecording)

	h.spectrum.set(0.5)
	h.clock.advance(100 * time.Millisecond)
	h.spectrum.set(0.001)
	h.clock.advance(4 * time.Second)
	h.waitRecord(t)

	_, lens := h.service.callDetails()
	if len(lens) != 2 {
		t.Fatalf("service calls = %d, want 2", len(lens))
	}
	// 1600 seeded samples as 16-bit PCM plus the WAV header.
	if want := 44 + 1600*2; lens[1] != want {
		t.Errorf("restarted segment audio = %d bytes, want %d", lens[1], want)
	}
}

func TestHandsFreeStopDuringSettleCancelsRestart(t *testing.T) {
	h := newHarness(t, true)

	if err := h.engine.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, StateRecording)

	h.spectrum.set(0.5)
	h.clock.advance(100 * time.Millisecond)
	h.source.feed(3200)
	h.spectrum.set(0.001)
	h.clock.advance(4 * time.Second)
	h.waitState(t, StateProcessing)

	// Stop lands inside the settle window; the pending restart must not
	// happen.
	if err := h.engine.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	h.clock.fireSettle()
	h.waitState(t, StateIdle)

	if _, stops := h.source.counts(); stops != 1 {
		t.Errorf("source stops = %d, want 1", stops)
	}
}

func TestHandsFreeManualStopWithoutSpeechSkipsDispatch(t *testing.T) {
	h := newHarness(t, true)

	if err := h.engine.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, StateRecording)
	h.source.feed(3200)

	// Nothing classified as speech yet, so a hands-free stop sends
	// nothing even though the buffer has audio.
	if err := h.engine.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	h.waitState(t, StateIdle)
	time.Sleep(50 * time.Millisecond)
	if n := h.service.callCount(); n != 0 {
		t.Errorf("service called %d times, want 0", n)
	}
}

func TestHandsFreeDispatchFailureDoesNotSurface(t *testing.T) {
	h := newHarness(t, true)
	h.service.err = errors.New("upstream down")

	if err := h.engine.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, StateRecording)

	h.spectrum.set(0.5)
	h.clock.advance(100 * time.Millisecond)
	h.source.feed(3200)
	h.spectrum.set(0.001)
	h.clock.advance(4 * time.Second)
	h.waitState(t, StateProcessing)
	h.clock.fireSettle()
	h.waitState(t, StateRecording)

	select {
	case err := <-h.errs:
		t.Errorf("hands-free dispatch failure surfaced: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManualDispatchFailureSurfaces(t *testing.T) {
	h := newHarness(t, false)
	h.service.err = errors.New("upstream down")

	if err := h.engine.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, StateRecording)
	h.source.feed(3200)
	if err := h.engine.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	h.waitState(t, StateIdle)

	if err := h.waitError(t); !errors.Is(err, h.service.err) {
		t.Errorf("error = %v, want wrapped upstream error", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	h := newHarness(t, false)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.engine.Close(); err != nil {
				t.Errorf("Close: %v", err)
			}
		}()
	}
	wg.Wait()

	// And once more after the goroutine has exited.
	if err := h.engine.Close(); err != nil {
		t.Errorf("Close after close: %v", err)
	}
}

func TestStatusSnapshot(t *testing.T) {
	h := newHarness(t, true)

	if err := h.engine.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.waitState(t, StateRecording)
	h.spectrum.set(0.5)
	h.clock.advance(1500 * time.Millisecond)
	// A second tick send only completes after the first was handled.
	h.clock.advance(0)

	st := h.engine.Status()
	if st.State != "recording" {
		t.Errorf("State = %q, want recording", st.State)
	}
	if !st.HandsFree {
		t.Error("HandsFree = false, want true")
	}
	if !st.Spoken {
		t.Error("Spoken = false after speech tick")
	}
	if st.SegmentMS != 1500 {
		t.Errorf("SegmentMS = %d, want 1500", st.SegmentMS)
	}
}
