// Package openai implements the TTS Synthesizer using OpenAI's speech endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nadzzz/securecall/internal/audio"
	"github.com/nadzzz/securecall/internal/config"
	"github.com/nadzzz/securecall/internal/persona"
	"github.com/nadzzz/securecall/internal/tts"
)

var defaultVoices = map[persona.Persona]string{
	persona.Hero:      "onyx",
	persona.Incognito: "alloy",
	persona.Robot:     "echo",
}

// Synthesizer calls POST {base_url}/audio/speech.
type Synthesizer struct {
	apiKey  string
	baseURL string
	model   string
	voices  map[persona.Persona]string
	client  *http.Client
}

// New creates a new OpenAI synthesizer from config.
func New(cfg config.OpenAIConfig) *Synthesizer {
	voices := make(map[persona.Persona]string, len(defaultVoices))
	for p, v := range defaultVoices {
		voices[p] = v
	}
	for key, v := range cfg.Voices {
		if p, err := persona.Parse(key); err == nil {
			voices[p] = v
		}
	}
	return &Synthesizer{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.SpeechModel,
		voices:  voices,
		client:  &http.Client{},
	}
}

// Name returns "openai".
func (s *Synthesizer) Name() string { return "openai" }

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	Instructions   string `json:"instructions,omitempty"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize renders text in the persona's voice as WAV.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty text for synthesis")
	}
	if s.apiKey == "" {
		return nil, errors.New("openai api key not configured")
	}

	p := opts.Persona
	if !p.Valid() {
		p = persona.Default
	}
	voice := opts.Voice
	if voice == "" {
		voice = s.voices[p]
	}

	payload := speechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          voice,
		ResponseFormat: "wav",
	}
	// Only the gpt-4o speech models accept style instructions.
	if strings.HasPrefix(s.model, "gpt-4o") {
		payload.Instructions = "Speak as a " + p.Description() + "."
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("speech failed (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading speech audio: %w", err)
	}
	if !audio.IsWAV(wav) {
		return nil, errors.New("speech response is not a WAV file")
	}

	slog.Debug("openai speech complete", "voice", voice, "persona", p, "bytes", len(wav))
	return &tts.SynthesizeResult{
		Audio:       wav,
		ContentType: audio.ContentTypeWAV,
		SampleRate:  audio.DefaultSampleRate,
		Channels:    audio.DefaultChannels,
	}, nil
}

// Close is a no-op.
func (s *Synthesizer) Close() error { return nil }
