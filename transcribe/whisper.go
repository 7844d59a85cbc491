package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"
)

const defaultWhisperURL = "https://api.openai.com/v1/audio/transcriptions"

// WhisperHTTP talks to any Whisper-compatible transcription endpoint over
// plain multipart HTTP. verbose_json responses carry the detected language,
// which the richer SDK transcription surface does not expose.
type WhisperHTTP struct {
	apiKey       string
	baseURL      string
	translateURL string
	model        string
	http         *http.Client

	mu    sync.RWMutex
	ready bool
}

// WhisperHTTPConfig holds configuration for WhisperHTTP.
type WhisperHTTPConfig struct {
	APIKey       string
	BaseURL      string // optional, defaults to OpenAI's transcription endpoint
	TranslateURL string // optional, leave empty to skip English translation
	Model        string // optional, defaults to "whisper-1"
}

// NewWhisperHTTP creates a Whisper-compatible HTTP service.
func NewWhisperHTTP(cfg WhisperHTTPConfig) *WhisperHTTP {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultWhisperURL
	}
	model := cfg.Model
	if model == "" {
		model = "whisper-1"
	}

	return &WhisperHTTP{
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		translateURL: cfg.TranslateURL,
		model:        model,
		http:         &http.Client{Timeout: 60 * time.Second},
		ready:        cfg.APIKey != "",
	}
}

// Name returns the service identifier.
func (w *WhisperHTTP) Name() string { return "whisper-http" }

// Transcribe sends the utterance blob to the transcription endpoint and, if
// a translate endpoint is configured and the speech was not English, asks
// for the English translation as well.
func (w *WhisperHTTP) Transcribe(ctx context.Context, audio []byte, mimeType, language string) (*Result, error) {
	w.mu.RLock()
	ready := w.ready
	w.mu.RUnlock()
	if !ready {
		return nil, fmt.Errorf("whisper-http is not ready: API key required")
	}

	var resp whisperResponse
	if err := w.post(ctx, w.baseURL, audio, mimeType, language, &resp); err != nil {
		return nil, err
	}

	result := &Result{
		Text:             resp.Text,
		DetectedLanguage: resp.Language,
	}

	if w.translateURL != "" && resp.Language != "" && resp.Language != "en" && resp.Language != "english" {
		var tr whisperResponse
		if err := w.post(ctx, w.translateURL, audio, mimeType, "", &tr); err != nil {
			return nil, fmt.Errorf("translate: %w", err)
		}
		result.EnglishTranslation = tr.Text
	} else {
		result.EnglishTranslation = resp.Text
	}

	return result, nil
}

func (w *WhisperHTTP) post(ctx context.Context, url string, audio []byte, mimeType, language string, out *whisperResponse) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "audio"+extensionFor(mimeType))
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return fmt.Errorf("write audio data: %w", err)
	}

	if err := writer.WriteField("model", w.model); err != nil {
		return fmt.Errorf("write model field: %w", err)
	}

	// The endpoint does not accept "auto"; omitting the field means detect.
	if language != "" && language != "auto" {
		if err := writer.WriteField("language", language); err != nil {
			return fmt.Errorf("write language field: %w", err)
		}
	}

	if err := writer.WriteField("response_format", "verbose_json"); err != nil {
		return fmt.Errorf("write response_format field: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+w.apiKey)

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// Close releases resources.
func (w *WhisperHTTP) Close() error { return nil }

// whisperResponse is the verbose_json response shape.
type whisperResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "audio/ogg":
		return ".ogg"
	default:
		return ".wav"
	}
}
