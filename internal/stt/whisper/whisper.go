// Package whisper implements the stt.Transcriber interface against a
// self-hosted whisper server.
//
// Two flavors are supported:
//   - "openai": OpenAI-compatible API (whisper.cpp server, faster-whisper)
//   - "asr":    ahmetoner/whisper-asr-webservice (POST /asr with query params)
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/nadzzz/securecall/internal/config"
	"github.com/nadzzz/securecall/internal/stt"
)

// Transcriber talks to a whisper server.
type Transcriber struct {
	endpoint        string
	flavor          string
	vadFilter       bool
	defaultLanguage string
	client          *http.Client
}

// New creates a new whisper transcriber from config.
func New(cfg config.WhisperConfig) *Transcriber {
	flavor := cfg.Type
	if flavor == "" {
		flavor = "openai"
	}
	return &Transcriber{
		endpoint:        cfg.Endpoint,
		flavor:          flavor,
		vadFilter:       cfg.VADFilter,
		defaultLanguage: cfg.Language,
		client:          &http.Client{},
	}
}

// Name returns the backend identifier.
func (t *Transcriber) Name() string { return "whisper" }

// Transcribe sends audio to the whisper endpoint.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, contentType string, opts stt.Opts) (*stt.Result, error) {
	if opts.Language == "" {
		opts.Language = t.defaultLanguage
	}

	var (
		req *http.Request
		err error
	)
	if t.flavor == "asr" {
		req, err = t.asrRequest(ctx, audio, contentType, opts)
	} else {
		req, err = t.openAIRequest(ctx, audio, contentType, opts)
	}
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("whisper transcription failed (status %d): %s", resp.StatusCode, respBody)
	}

	// Both flavors return {"text": "...", "language": "..."} for verbose_json.
	var result struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding whisper response: %w", err)
	}

	lang := stt.NormalizeLanguage(result.Language)
	if lang == "" {
		lang = opts.Language
	}
	slog.Debug("transcription complete", "backend", "whisper", "flavor", t.flavor, "text_length", len(result.Text), "language", lang)
	return &stt.Result{Text: strings.TrimSpace(result.Text), Language: lang}, nil
}

// asrRequest builds POST /asr?task=transcribe&language=es&output=json with
// multipart field "audio_file".
func (t *Transcriber) asrRequest(ctx context.Context, audio []byte, contentType string, opts stt.Opts) (*http.Request, error) {
	body, formType, err := multipartAudio("audio_file", audio, contentType, nil)
	if err != nil {
		return nil, err
	}

	q := make(url.Values)
	q.Set("task", "transcribe")
	q.Set("output", "json")
	q.Set("encode", "true")
	if opts.Language != "" {
		q.Set("language", opts.Language)
	}
	if opts.Prompt != "" {
		q.Set("initial_prompt", opts.Prompt)
	}
	if t.vadFilter {
		q.Set("vad_filter", "true")
	}

	reqURL := t.endpoint + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", formType)
	slog.Debug("whisper-asr request", "url", reqURL)
	return req, nil
}

func (t *Transcriber) openAIRequest(ctx context.Context, audio []byte, contentType string, opts stt.Opts) (*http.Request, error) {
	fields := map[string]string{"response_format": "verbose_json"}
	if opts.Model != "" {
		fields["model"] = opts.Model
	}
	if opts.Language != "" {
		fields["language"] = opts.Language
	}
	if opts.Prompt != "" {
		fields["prompt"] = opts.Prompt
	}
	body, formType, err := multipartAudio("file", audio, contentType, fields)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", formType)
	return req, nil
}

func multipartAudio(field string, audio []byte, contentType string, fields map[string]string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(field, "audio"+stt.FileExtension(contentType))
	if err != nil {
		return nil, "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", fmt.Errorf("writing audio: %w", err)
	}
	for k, v := range fields {
		_ = writer.WriteField(k, v)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("closing form: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

// Close is a no-op for the whisper transcriber.
func (t *Transcriber) Close() error { return nil }
