// Package pipeline implements voice.Transformer by transcribing the
// recording and re-synthesizing the text with the persona's voice.
//
// It trades the speaker's prosody for backends that can run fully on
// premises (whisper + piper).
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nadzzz/securecall/internal/audio"
	"github.com/nadzzz/securecall/internal/stt"
	"github.com/nadzzz/securecall/internal/tts"
	"github.com/nadzzz/securecall/internal/voice"
)

// ErrNoSpeech is returned when the recording contains no recognizable speech.
var ErrNoSpeech = errors.New("no speech recognized in recording")

// Transformer chains a Transcriber and a Synthesizer.
type Transformer struct {
	stt      stt.Transcriber
	tts      tts.Synthesizer
	language string
}

// New creates a pipeline transformer. language guides transcription and
// synthesis voice selection.
func New(transcriber stt.Transcriber, synthesizer tts.Synthesizer, language string) *Transformer {
	return &Transformer{stt: transcriber, tts: synthesizer, language: language}
}

// Language returns the recognition language passed to the transcriber.
func (t *Transformer) Language() string {
	return t.language
}

// Name returns "pipeline/<stt>+<tts>".
func (t *Transformer) Name() string {
	return "pipeline/" + t.stt.Name() + "+" + t.tts.Name()
}

// Transform transcribes audio input (text input skips recognition) and
// synthesizes the result with the persona's voice.
func (t *Transformer) Transform(ctx context.Context, req voice.Request) (*voice.Result, error) {
	text := req.Text
	lang := t.language
	if req.IsAudio() {
		tr, err := t.stt.Transcribe(ctx, req.Audio.Data, req.Audio.MIMEType, stt.Opts{Language: t.language})
		if err != nil {
			return nil, fmt.Errorf("transcribing recording: %w", err)
		}
		text = strings.TrimSpace(tr.Text)
		if tr.Language != "" {
			lang = tr.Language
		}
	}
	if text == "" {
		return nil, ErrNoSpeech
	}

	synth, err := t.tts.Synthesize(ctx, text, tts.SynthesizeOpts{Persona: req.Persona, Language: lang})
	if err != nil {
		return nil, fmt.Errorf("synthesizing %s voice: %w", req.Persona, err)
	}
	uri, err := audio.WAVDataURI(synth.Audio, synth.ContentType)
	if err != nil {
		return nil, fmt.Errorf("encoding synthesized audio: %w", err)
	}

	slog.Debug("pipeline transform complete", "stt", t.stt.Name(), "tts", t.tts.Name(), "text_length", len(text), "language", lang)
	return &voice.Result{AudioDataURI: uri, Transcript: text}, nil
}

// Close closes both stages.
func (t *Transformer) Close() error {
	return errors.Join(t.stt.Close(), t.tts.Close())
}
