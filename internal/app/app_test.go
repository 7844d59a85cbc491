package app

import (
	"testing"
	"time"

	"github.com/voxpad/voxpad/config"
	"github.com/voxpad/voxpad/encode"
	"github.com/voxpad/voxpad/internal/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv("AppData", dir)

	s := New("test")
	s.cfg = config.Default()
	return s
}

func TestSetLanguageRejectsUnknownCode(t *testing.T) {
	s := newTestService(t)

	if err := s.SetLanguage("xx"); err == nil {
		t.Fatal("expected error for unsupported language")
	}
	if got := s.GetSettings().Language; got != types.LangAuto {
		t.Errorf("language changed to %q after rejected set", got)
	}
}

func TestSetLanguagePersistsAndSnapshots(t *testing.T) {
	s := newTestService(t)

	if err := s.SetLanguage(types.LangJapanese); err != nil {
		t.Fatalf("SetLanguage: %v", err)
	}
	if got := s.GetSettings().Language; got != types.LangJapanese {
		t.Errorf("language = %q, want %q", got, types.LangJapanese)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Language != types.LangJapanese {
		t.Errorf("persisted language = %q, want %q", cfg.Language, types.LangJapanese)
	}
}

func TestSetHandsFree(t *testing.T) {
	s := newTestService(t)

	if err := s.SetHandsFree(true); err != nil {
		t.Fatalf("SetHandsFree: %v", err)
	}
	if !s.GetSettings().HandsFree {
		t.Error("HandsFree = false after enable")
	}
}

func TestGetStatusWithoutEngine(t *testing.T) {
	s := newTestService(t)

	st := s.GetStatus()
	if st.State != "idle" {
		t.Errorf("State = %q, want idle", st.State)
	}
}

func TestEngineConfigMapsTunables(t *testing.T) {
	s := newTestService(t)
	s.cfg.SpeechThreshold = 0.05
	s.cfg.SilenceTimeoutMS = 2000
	s.cfg.InitialTimeoutMS = 5000
	s.cfg.SettleDelayMS = 250
	s.cfg.PrerollMS = 500
	s.cfg.EncoderFormat = "ogg"

	got := s.engineConfig()
	if got.SpeechThreshold != 0.05 {
		t.Errorf("SpeechThreshold = %v", got.SpeechThreshold)
	}
	if got.SilenceTimeout != 2*time.Second {
		t.Errorf("SilenceTimeout = %v", got.SilenceTimeout)
	}
	if got.InitialTimeout != 5*time.Second {
		t.Errorf("InitialTimeout = %v", got.InitialTimeout)
	}
	if got.SettleDelay != 250*time.Millisecond {
		t.Errorf("SettleDelay = %v", got.SettleDelay)
	}
	if got.Preroll != 500*time.Millisecond {
		t.Errorf("Preroll = %v", got.Preroll)
	}
	if got.EncoderFormat != encode.FormatOgg {
		t.Errorf("EncoderFormat = %v", got.EncoderFormat)
	}
}

func TestEngineConfigDefaults(t *testing.T) {
	s := newTestService(t)

	got := s.engineConfig()
	if got.SilenceTimeout != 4*time.Second {
		t.Errorf("SilenceTimeout = %v, want 4s", got.SilenceTimeout)
	}
	if got.InitialTimeout != 10*time.Second {
		t.Errorf("InitialTimeout = %v, want 10s", got.InitialTimeout)
	}
}
