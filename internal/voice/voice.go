// Package voice defines the interface for persona voice transformation.
//
// A Transformer takes either a recording or plain text and returns audio
// spoken in the selected persona's voice, always as a WAV data URI.
package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nadzzz/securecall/internal/audio"
	"github.com/nadzzz/securecall/internal/persona"
)

// ErrNoMedia is returned when the backend produced no audio.
var ErrNoMedia = errors.New("no media returned from voice transformation")

// ErrEmptyInput is returned for a request with neither text nor audio.
var ErrEmptyInput = errors.New("empty voice input")

// Request is a single transformation request. Exactly one of Text and Audio
// is set.
type Request struct {
	Persona persona.Persona
	Text    string
	Audio   *audio.DataURI
}

// IsAudio reports whether the request carries a recording.
func (r Request) IsAudio() bool { return r.Audio != nil }

// NewRequest builds a Request from the raw input field: values starting with
// "data:" are decoded as recorded audio, anything else is plain text.
func NewRequest(p persona.Persona, input string) (Request, error) {
	if !p.Valid() {
		return Request{}, persona.ErrUnknown
	}
	if audio.IsDataURI(input) {
		uri, err := audio.ParseDataURI(input)
		if err != nil {
			return Request{}, fmt.Errorf("decoding recording: %w", err)
		}
		if len(uri.Data) == 0 {
			return Request{}, ErrEmptyInput
		}
		return Request{Persona: p, Audio: uri}, nil
	}
	text := strings.TrimSpace(input)
	if text == "" {
		return Request{}, ErrEmptyInput
	}
	return Request{Persona: p, Text: text}, nil
}

// Result holds transformed audio.
type Result struct {
	// AudioDataURI is a "data:audio/wav;base64,..." URI.
	AudioDataURI string

	// Transcript is the recognized or synthesized text, when the backend knows it.
	Transcript string
}

// Transformer re-voices speech with a persona.
type Transformer interface {
	// Name returns the backend identifier (e.g., "gemini", "pipeline").
	Name() string

	// Transform produces the persona's version of the request input.
	Transform(ctx context.Context, req Request) (*Result, error)

	// Close releases any resources held by the transformer.
	Close() error
}
