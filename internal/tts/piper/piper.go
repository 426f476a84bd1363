// Package piper implements the TTS Synthesizer using a Piper Wyoming protocol server.
//
// Piper is a fast, local neural text-to-speech system. The linuxserver/piper
// container exposes the Wyoming protocol on TCP port 10200. Each persona maps
// to its own voice model, and optionally to its own Piper instance.
package piper

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/nadzzz/securecall/internal/audio"
	"github.com/nadzzz/securecall/internal/config"
	"github.com/nadzzz/securecall/internal/persona"
	"github.com/nadzzz/securecall/internal/tts"
)

// defaultVoices maps personas to Spanish Piper voice models.
var defaultVoices = map[persona.Persona]string{
	persona.Hero:      "es_ES-davefx-medium",
	persona.Incognito: "es_ES-sharvard-medium",
	persona.Robot:     "es_ES-carlfm-x_low",
}

// Synthesizer implements tts.Synthesizer using the Wyoming protocol.
type Synthesizer struct {
	endpoint  string                     // default host:port of the Piper Wyoming server
	endpoints map[persona.Persona]string // per-persona Piper instances
	voices    map[persona.Persona]string
	dialer    net.Dialer
}

// New creates a new Piper synthesizer from config. Unknown persona keys in
// the config maps are ignored with a warning.
func New(cfg config.PiperConfig) *Synthesizer {
	voices := make(map[persona.Persona]string, len(defaultVoices))
	for p, v := range defaultVoices {
		voices[p] = v
	}
	for key, v := range cfg.Voices {
		p, err := persona.Parse(key)
		if err != nil {
			slog.Warn("ignoring piper voice for unknown persona", "persona", key)
			continue
		}
		voices[p] = v
	}

	endpoints := make(map[persona.Persona]string, len(cfg.Endpoints))
	for key, ep := range cfg.Endpoints {
		p, err := persona.Parse(key)
		if err != nil {
			slog.Warn("ignoring piper endpoint for unknown persona", "persona", key)
			continue
		}
		endpoints[p] = cleanEndpoint(ep)
	}

	return &Synthesizer{
		endpoint:  cleanEndpoint(cfg.Endpoint),
		endpoints: endpoints,
		voices:    voices,
		dialer:    net.Dialer{Timeout: 10 * time.Second},
	}
}

func cleanEndpoint(ep string) string {
	ep = strings.TrimPrefix(ep, "tcp://")
	return strings.TrimPrefix(ep, "http://")
}

// Name returns "piper".
func (s *Synthesizer) Name() string { return "piper" }

// Synthesize sends text to the Piper server and returns synthesized audio as WAV.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty text for synthesis")
	}

	p := opts.Persona
	if !p.Valid() {
		p = persona.Default
	}
	voice := opts.Voice
	if voice == "" {
		voice = s.voices[p]
	}
	endpoint := s.endpoints[p]
	if endpoint == "" {
		endpoint = s.endpoint
	}
	if endpoint == "" {
		return nil, fmt.Errorf("no piper endpoint configured for persona %q", p)
	}

	slog.Debug("piper synthesize", "text_length", len(text), "voice", voice, "persona", p, "endpoint", endpoint)

	conn, err := s.dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("connecting to piper: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	synth := wyomingEvent{
		Type: "synthesize",
		Data: map[string]any{
			"text":  text,
			"voice": map[string]any{"name": voice},
		},
	}
	if err := writeEvent(conn, synth, nil); err != nil {
		return nil, fmt.Errorf("sending synthesize event: %w", err)
	}

	// audio-start, audio-chunk*, audio-stop
	var (
		r          = bufio.NewReader(conn)
		pcm        bytes.Buffer
		sampleRate = 22050
		channels   = 1
		width      = 2
	)
	for {
		evt, payload, err := readEvent(r)
		if err != nil {
			return nil, fmt.Errorf("reading piper event: %w", err)
		}

		switch evt.Type {
		case "audio-start":
			sampleRate = intField(evt.Data, "rate", sampleRate)
			channels = intField(evt.Data, "channels", channels)
			width = intField(evt.Data, "width", width)
		case "audio-chunk":
			pcm.Write(payload)
		case "audio-stop":
			slog.Debug("piper audio-stop", "pcm_bytes", pcm.Len(), "rate", sampleRate)
			return &tts.SynthesizeResult{
				Audio:       audio.PCMToWAV(pcm.Bytes(), sampleRate, channels, width),
				ContentType: audio.ContentTypeWAV,
				SampleRate:  sampleRate,
				Channels:    channels,
			}, nil
		case "error":
			msg, _ := evt.Data["text"].(string)
			if msg == "" {
				msg = "unknown error"
			}
			return nil, fmt.Errorf("piper error: %s", msg)
		default:
			slog.Debug("piper unknown event", "type", evt.Type)
		}
	}
}

// Close is a no-op; connections are per-request.
func (s *Synthesizer) Close() error { return nil }

func intField(data map[string]any, key string, def int) int {
	if v, ok := data[key].(float64); ok && v > 0 {
		return int(v)
	}
	return def
}
