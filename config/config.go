// Package config handles application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/voxpad/voxpad/internal/types"
)

const (
	appName        = "voxpad"
	configFileName = "config.json"
)

// Config represents the application configuration.
type Config struct {
	// Dictation behavior.
	Language  string `json:"language"`
	HandsFree bool   `json:"hands_free"`

	// Transcription service selection and credentials.
	Service      string `json:"service"` // "openai" or "whisper-http"
	APIKey       string `json:"api_key,omitempty"`
	BaseURL      string `json:"base_url,omitempty"`
	TranslateURL string `json:"translate_url,omitempty"`
	Model        string `json:"model,omitempty"`

	// Engine tunables. Zero values fall back to defaults.
	SpeechThreshold  float64 `json:"speech_threshold,omitempty"`
	SilenceTimeoutMS int     `json:"silence_timeout_ms,omitempty"`
	InitialTimeoutMS int     `json:"initial_timeout_ms,omitempty"`
	SettleDelayMS    int     `json:"settle_delay_ms,omitempty"`
	PrerollMS        int     `json:"preroll_ms,omitempty"`
	EncoderFormat    string  `json:"encoder_format,omitempty"` // "wav" or "ogg"
	SampleRate       int     `json:"sample_rate,omitempty"`
}

// Load loads configuration from the config file. Returns the default config
// if the file doesn't exist.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Save persists the configuration to disk.
func (c *Config) Save() error {
	path, err := configPath()
	if err != nil {
		return fmt.Errorf("get config path: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Default returns the default configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Language == "" {
		c.Language = types.LangAuto
	}
	if c.Service == "" {
		c.Service = "openai"
	}
	if c.SpeechThreshold == 0 {
		c.SpeechThreshold = 0.01
	}
	if c.SilenceTimeoutMS == 0 {
		c.SilenceTimeoutMS = 4000
	}
	if c.InitialTimeoutMS == 0 {
		c.InitialTimeoutMS = 10000
	}
	if c.SettleDelayMS == 0 {
		c.SettleDelayMS = 100
	}
	if c.PrerollMS == 0 {
		c.PrerollMS = 300
	}
	if c.EncoderFormat == "" {
		c.EncoderFormat = "wav"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if !types.IsSupportedLanguage(c.Language) {
		return fmt.Errorf("unsupported language %q", c.Language)
	}
	switch c.Service {
	case "openai", "whisper-http":
	default:
		return fmt.Errorf("unknown service %q", c.Service)
	}
	switch c.EncoderFormat {
	case "wav", "ogg":
	default:
		return fmt.Errorf("unknown encoder format %q", c.EncoderFormat)
	}
	if c.SilenceTimeoutMS < 0 || c.InitialTimeoutMS < 0 || c.SettleDelayMS < 0 || c.PrerollMS < 0 {
		return fmt.Errorf("timeouts must be non-negative")
	}
	return nil
}

// Settings returns the read-only snapshot a recording segment consumes.
func (c *Config) Settings() types.Settings {
	return types.Settings{
		Language:  c.Language,
		HandsFree: c.HandsFree,
	}
}

func configPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName, configFileName), nil
}
