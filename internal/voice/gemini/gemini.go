// Package gemini implements the voice.Transformer interface using the
// Google Generative Language API with audio output.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/nadzzz/securecall/internal/audio"
	"github.com/nadzzz/securecall/internal/config"
	"github.com/nadzzz/securecall/internal/voice"
)

// Transformer calls models/{model}:generateContent.
type Transformer struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// New creates a new Gemini transformer from config.
func New(cfg config.GeminiConfig) *Transformer {
	return &Transformer{
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   &http.Client{},
	}
}

// Name returns "gemini".
func (t *Transformer) Name() string { return "gemini" }

// --- Wire types ---

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
	SafetySettings   []safetySetting  `json:"safetySettings"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// buildRequest assembles the prompt for a persona. Recordings travel inline
// next to the instruction; text input asks the model to speak it.
func buildRequest(req voice.Request) generateRequest {
	desc := req.Persona.Description()
	var parts []part
	if req.IsAudio() {
		parts = []part{
			{Text: "Transform this voice into " + desc + ". The output should only be the transformed audio."},
			{InlineData: &inlineData{
				MIMEType: req.Audio.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(req.Audio.Data),
			}},
		}
	} else {
		parts = []part{{Text: "Say the following in " + desc + ": " + req.Text}}
	}

	return generateRequest{
		Contents:         []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{ResponseModalities: []string{"AUDIO"}},
		SafetySettings: []safetySetting{
			{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_NONE"},
		},
	}
}

// Transform sends the request to Gemini and re-wraps the returned PCM as WAV.
func (t *Transformer) Transform(ctx context.Context, req voice.Request) (*voice.Result, error) {
	if t.apiKey == "" {
		return nil, errors.New("gemini api key not configured")
	}

	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshalling generate request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/models/%s:generateContent", t.endpoint, url.PathEscape(t.model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("x-goog-api-key", t.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	slog.Debug("gemini generate", "model", t.model, "persona", req.Persona, "audio_input", req.IsAudio())

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("gemini %s (status %d): %s", apiErr.Error.Status, resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("gemini failed (status %d): %s", resp.StatusCode, respBody)
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("decoding generate response: %w", err)
	}
	if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("gemini blocked the prompt: %s", gr.PromptFeedback.BlockReason)
	}
	if len(gr.Candidates) == 0 {
		return nil, voice.ErrNoMedia
	}

	var (
		media      *inlineData
		transcript []string
	)
	for _, p := range gr.Candidates[0].Content.Parts {
		switch {
		case p.InlineData != nil && media == nil && strings.HasPrefix(strings.ToLower(p.InlineData.MIMEType), "audio/"):
			media = p.InlineData
		case p.Text != "":
			transcript = append(transcript, p.Text)
		}
	}
	if media == nil || media.Data == "" {
		return nil, voice.ErrNoMedia
	}

	pcm, err := base64.StdEncoding.DecodeString(media.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding gemini audio: %w", err)
	}
	uri, err := audio.WAVDataURI(pcm, media.MIMEType)
	if err != nil {
		return nil, fmt.Errorf("re-wrapping gemini audio: %w", err)
	}

	text := strings.TrimSpace(strings.Join(transcript, " "))
	if text == "" && !req.IsAudio() {
		text = req.Text
	}
	slog.Debug("gemini generate complete", "audio_bytes", len(pcm), "mime_type", media.MIMEType)
	return &voice.Result{AudioDataURI: uri, Transcript: text}, nil
}

// Close is a no-op.
func (t *Transformer) Close() error { return nil }
