// Package openai implements the stt.Transcriber interface using OpenAI's
// Audio Transcription API (Whisper / gpt-4o-transcribe).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/nadzzz/securecall/internal/config"
	"github.com/nadzzz/securecall/internal/stt"
)

// Transcriber uses the OpenAI transcription endpoint.
type Transcriber struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// New creates a new OpenAI transcriber from config.
func New(cfg config.OpenAIConfig) *Transcriber {
	return &Transcriber{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.TranscriptionModel,
		client:  &http.Client{},
	}
}

// Name returns the backend identifier.
func (t *Transcriber) Name() string { return "openai" }

// Transcribe sends audio to the OpenAI Transcription API.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, contentType string, opts stt.Opts) (*stt.Result, error) {
	if t.apiKey == "" {
		return nil, fmt.Errorf("openai api key not configured")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "audio"+stt.FileExtension(contentType))
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("writing audio: %w", err)
	}

	model := t.model
	if opts.Model != "" {
		model = opts.Model
	}
	_ = writer.WriteField("model", model)
	if opts.Language != "" {
		_ = writer.WriteField("language", opts.Language)
	}
	if opts.Prompt != "" {
		_ = writer.WriteField("prompt", opts.Prompt)
	}
	// gpt-4o transcription models only support json.
	format := "verbose_json"
	if strings.HasPrefix(model, "gpt-4o") {
		format = "json"
	}
	_ = writer.WriteField("response_format", format)
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("transcription failed (status %d): %s", resp.StatusCode, respBody)
	}

	var result struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding transcription: %w", err)
	}

	lang := stt.NormalizeLanguage(result.Language)
	if lang == "" {
		lang = opts.Language
	}
	slog.Debug("transcription complete", "backend", "openai", "text_length", len(result.Text), "language", lang)
	return &stt.Result{Text: strings.TrimSpace(result.Text), Language: lang}, nil
}

// Close is a no-op for the OpenAI transcriber.
func (t *Transcriber) Close() error { return nil }
