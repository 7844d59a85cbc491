package transcribe

import (
	"bytes"
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAI transcribes through the official SDK. The SDK transcription
// surface does not report the detected language, so DetectedLanguage is
// left empty and the caller falls back to local detection.
type OpenAI struct {
	client openai.Client
	model  openai.AudioModel
}

// OpenAIConfig holds configuration for the SDK-backed service.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // optional, for compatible gateways
	Model   string // optional, defaults to whisper-1
}

// NewOpenAI creates the SDK-backed transcription service.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := openai.AudioModelWhisper1
	if cfg.Model != "" {
		model = openai.AudioModel(cfg.Model)
	}

	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

// Name returns the service identifier.
func (o *OpenAI) Name() string { return "openai" }

// Transcribe converts the utterance to text and asks the translation
// endpoint for the English rendering.
func (o *OpenAI) Transcribe(ctx context.Context, audio []byte, mimeType, language string) (*Result, error) {
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(audio), "audio"+extensionFor(mimeType), mimeType),
		Model: o.model,
	}
	if language != "" && language != "auto" {
		params.Language = openai.String(language)
	}

	transcription, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	result := &Result{Text: transcription.Text}

	// Whisper's translations endpoint renders the same audio in English.
	translation, err := o.client.Audio.Translations.New(ctx, openai.AudioTranslationNewParams{
		File:  openai.File(bytes.NewReader(audio), "audio"+extensionFor(mimeType), mimeType),
		Model: o.model,
	})
	if err != nil {
		return nil, fmt.Errorf("translate: %w", err)
	}
	result.EnglishTranslation = translation.Text

	return result, nil
}

// Close releases resources.
func (o *OpenAI) Close() error { return nil }
