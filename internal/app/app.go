package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wailsapp/wails/v3/pkg/application"

	"github.com/voxpad/voxpad/audiocapture"
	"github.com/voxpad/voxpad/clipboard"
	"github.com/voxpad/voxpad/config"
	"github.com/voxpad/voxpad/encode"
	"github.com/voxpad/voxpad/history"
	"github.com/voxpad/voxpad/hotkey"
	"github.com/voxpad/voxpad/internal/types"
	"github.com/voxpad/voxpad/session"
	"github.com/voxpad/voxpad/transcribe"
)

// Service provides application functionality bound to Wails.
// This struct focuses on orchestration; business logic lives in sub-components.
type Service struct {
	mu  sync.Mutex
	cfg *config.Config

	engine   *session.Engine
	registry *transcribe.Registry
	delivery *clipboard.Delivery
	store    *history.Store
	hotkey   *hotkey.HotkeyManager

	// UI references - set via Init
	app    *application.App
	window application.Window

	// Version info (set by caller)
	version string
}

// New creates a new Service. Call Init() after the Wails app is created.
func New(version string) *Service {
	return &Service{version: version}
}

// GetVersion returns the application version.
func (s *Service) GetVersion() string {
	return s.version
}

// Init initializes the service with app and window references.
// Must be called after the Wails application is created.
func (s *Service) Init(app *application.App, window application.Window) {
	s.app = app
	s.window = window

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		cfg = config.Default()
	}
	s.cfg = cfg

	s.delivery = clipboard.New(clipboard.WithChime(clipboard.Chime))

	s.setupHistory()
	s.setupServices()
	s.setupEngine()
	s.setupHotkey()
}

// Shutdown cleans up resources.
func (s *Service) Shutdown() {
	if s.hotkey != nil {
		s.hotkey.Stop()
	}
	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			slog.Error("close engine", "error", err)
		}
	}
	if s.registry != nil {
		if err := s.registry.Close(); err != nil {
			slog.Error("close services", "error", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Error("close history", "error", err)
		}
	}
}

func (s *Service) setupHistory() {
	configDir, err := os.UserConfigDir()
	if err != nil {
		slog.Error("get config dir for history", "error", err)
		return
	}

	path := filepath.Join(configDir, "voxpad", "history")
	store, err := history.Open(path)
	if err != nil {
		slog.Error("open history store", "error", err)
		return
	}
	s.store = store
	slog.Info("history store opened", "path", path)
}

func (s *Service) setupServices() {
	s.registry = transcribe.NewRegistry()

	if s.cfg.APIKey != "" {
		svc, err := transcribe.NewOpenAI(transcribe.OpenAIConfig{
			APIKey:  s.cfg.APIKey,
			BaseURL: s.cfg.BaseURL,
			Model:   s.cfg.Model,
		})
		if err != nil {
			slog.Error("init openai service", "error", err)
		} else {
			s.registry.Register(svc)
			slog.Info("registered openai transcription service")
		}
	}

	// The plain HTTP client also covers self-hosted Whisper servers.
	s.registry.Register(transcribe.NewWhisperHTTP(transcribe.WhisperHTTPConfig{
		APIKey:       s.cfg.APIKey,
		BaseURL:      s.cfg.BaseURL,
		TranslateURL: s.cfg.TranslateURL,
		Model:        s.cfg.Model,
	}))
}

func (s *Service) setupEngine() {
	capture, err := audiocapture.New(audiocapture.Config{
		SampleRate: s.cfg.SampleRate,
	})
	if err != nil {
		slog.Error("init audio capture", "error", err)
		return
	}

	service := s.registry.Get(s.cfg.Service)
	if service == nil {
		service = s.registry.Default()
	}
	if service == nil {
		slog.Error("no transcription service available")
		return
	}

	engine, err := session.New(s.engineConfig(), session.Deps{
		Source:   capture,
		Service:  service,
		Settings: s.settingsSnapshot,
		Callbacks: session.Callbacks{
			OnState:  s.handleState,
			OnRecord: s.handleRecord,
			OnError:  s.handleEngineError,
		},
	})
	if err != nil {
		slog.Error("init session engine", "error", err)
		return
	}
	s.engine = engine
	slog.Info("session engine ready", "service", service.Name())
}

func (s *Service) engineConfig() session.Config {
	cfg := session.DefaultConfig()
	if s.cfg.SpeechThreshold > 0 {
		cfg.SpeechThreshold = s.cfg.SpeechThreshold
	}
	if s.cfg.SilenceTimeoutMS > 0 {
		cfg.SilenceTimeout = time.Duration(s.cfg.SilenceTimeoutMS) * time.Millisecond
	}
	if s.cfg.InitialTimeoutMS > 0 {
		cfg.InitialTimeout = time.Duration(s.cfg.InitialTimeoutMS) * time.Millisecond
	}
	if s.cfg.SettleDelayMS > 0 {
		cfg.SettleDelay = time.Duration(s.cfg.SettleDelayMS) * time.Millisecond
	}
	if s.cfg.PrerollMS > 0 {
		cfg.Preroll = time.Duration(s.cfg.PrerollMS) * time.Millisecond
	}
	if s.cfg.EncoderFormat != "" {
		cfg.EncoderFormat = encode.Format(s.cfg.EncoderFormat)
	}
	return cfg
}

func (s *Service) settingsSnapshot() types.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Settings()
}

func (s *Service) setupHotkey() {
	s.hotkey = hotkey.NewHotkeyManager(
		func() { go s.ToggleDictation() },
		func() {
			go func() {
				if err := s.SetHandsFree(!s.settingsSnapshot().HandsFree); err != nil {
					slog.Error("toggle hands-free", "error", err)
				}
			}()
		},
	)

	s.hotkey.SetStatusCallback(func(granted bool) {
		s.emit(EventAccessibilityPerm, granted)
		if granted {
			slog.Info("input monitoring granted")
		} else {
			slog.Warn("input monitoring denied")
		}
	})

	if err := s.hotkey.Start(); err != nil {
		slog.Error("start hotkey", "error", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Dictation
// ─────────────────────────────────────────────────────────────────────────────

// StartDictation begins a recording session.
func (s *Service) StartDictation() error {
	if s.engine == nil {
		return fmt.Errorf("session engine not available")
	}
	return s.engine.Start()
}

// StopDictation ends the active recording session.
func (s *Service) StopDictation() error {
	if s.engine == nil {
		return fmt.Errorf("session engine not available")
	}
	return s.engine.Stop()
}

// ToggleDictation starts a session when idle and stops it otherwise.
func (s *Service) ToggleDictation() {
	if s.engine == nil {
		return
	}
	var err error
	if s.engine.State() == session.StateIdle {
		err = s.engine.Start()
	} else {
		err = s.engine.Stop()
	}
	if err != nil {
		slog.Error("toggle dictation", "error", err)
		s.emit(EventEngineError, err.Error())
	}
}

// GetStatus returns the current engine status snapshot.
func (s *Service) GetStatus() types.EngineStatus {
	if s.engine == nil {
		return types.EngineStatus{State: session.StateIdle.String()}
	}
	return s.engine.Status()
}

// handleState runs on the engine goroutine; the event system handles its
// own queuing.
func (s *Service) handleState(session.State) {
	if s.engine != nil {
		s.emit(EventEngineState, s.engine.Status())
	}
}

// handleRecord receives each finished transcription: persist it, put the
// text on the clipboard, and tell the frontend what happened.
func (s *Service) handleRecord(rec types.TranscriptionRecord) {
	if s.store != nil {
		if err := s.store.Append(rec); err != nil {
			slog.Warn("persist record", "error", err)
		}
	}

	outcome := s.copyText(rec.OriginalText)
	s.emit(EventTranscription, rec)
	s.emit(EventClipboardOutcome, outcome)
}

func (s *Service) handleEngineError(err error) {
	s.emit(EventEngineError, err.Error())
}

// ─────────────────────────────────────────────────────────────────────────────
// Clipboard
// ─────────────────────────────────────────────────────────────────────────────

// CopyText places text on the clipboard through the tier chain. Bound for
// the history view's retry button; a retry is the same attempt again.
func (s *Service) CopyText(text string) types.ClipboardOutcome {
	return s.copyText(text)
}

func (s *Service) copyText(text string) types.ClipboardOutcome {
	ok, attempts := s.delivery.DeliverDetailed(text)
	outcome := types.ClipboardOutcome{Copied: ok}
	for _, a := range attempts {
		if a.OK {
			outcome.Tier = a.Tier
			break
		}
	}
	if !ok {
		slog.Warn("clipboard delivery failed on all tiers", "chars", len(text))
	}
	return outcome
}

// ─────────────────────────────────────────────────────────────────────────────
// History
// ─────────────────────────────────────────────────────────────────────────────

// GetHistory returns up to limit records, newest first.
func (s *Service) GetHistory(limit int) ([]types.TranscriptionRecord, error) {
	if s.store == nil {
		return nil, fmt.Errorf("history store not available")
	}
	return s.store.List(limit)
}

// DeleteRecord removes one record from history.
func (s *Service) DeleteRecord(id string) error {
	if s.store == nil {
		return fmt.Errorf("history store not available")
	}
	return s.store.Delete(id)
}

// ─────────────────────────────────────────────────────────────────────────────
// Settings
// ─────────────────────────────────────────────────────────────────────────────

// GetSettings returns the current dictation settings.
func (s *Service) GetSettings() types.Settings {
	return s.settingsSnapshot()
}

// GetLanguages returns the selectable language codes.
func (s *Service) GetLanguages() []string {
	return types.SupportedLanguages
}

// SetLanguage changes the language hint. Takes effect on the next segment.
func (s *Service) SetLanguage(code string) error {
	if !types.IsSupportedLanguage(code) {
		return fmt.Errorf("unsupported language: %s", code)
	}
	s.mu.Lock()
	s.cfg.Language = code
	err := s.cfg.Save()
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	s.emit(EventSettingsChanged, s.settingsSnapshot())
	return nil
}

// SetHandsFree toggles hands-free mode. A segment already recording keeps
// the mode it started with.
func (s *Service) SetHandsFree(enabled bool) error {
	s.mu.Lock()
	s.cfg.HandsFree = enabled
	err := s.cfg.Save()
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	s.emit(EventSettingsChanged, s.settingsSnapshot())
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Window
// ─────────────────────────────────────────────────────────────────────────────

// ShowWindow brings the main window to the front.
func (s *Service) ShowWindow() {
	if s.window != nil {
		s.window.Show()
		s.window.Focus()
	}
}

func (s *Service) emit(name string, data any) {
	if s.app != nil {
		s.app.Event.Emit(name, data)
	}
}
