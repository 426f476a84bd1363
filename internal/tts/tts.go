// Package tts defines the interface for text-to-speech synthesis.
//
// The voice pipeline uses TTS to re-voice transcribed speech with the
// persona's voice, and to render typed text when the user simulates speech
// instead of recording it.
package tts

import (
	"context"

	"github.com/nadzzz/securecall/internal/persona"
)

// SynthesizeOpts controls synthesis behavior.
type SynthesizeOpts struct {
	// Persona selects the voice preset.
	Persona persona.Persona

	// Language is the ISO-639-1 code of the text, if known.
	Language string

	// Voice overrides persona-based voice selection.
	Voice string
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Name returns the backend identifier (e.g., "piper", "openai").
	Name() string

	// Synthesize generates a WAV file from the given text.
	Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*SynthesizeResult, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}

// SynthesizeResult holds the output of TTS synthesis.
type SynthesizeResult struct {
	// Audio is the synthesized audio as a WAV file.
	Audio []byte

	// ContentType is the MIME type of the audio (e.g., "audio/wav").
	ContentType string

	// SampleRate is the audio sample rate in Hz (e.g., 22050).
	SampleRate int

	// Channels is the number of audio channels (typically 1).
	Channels int
}
