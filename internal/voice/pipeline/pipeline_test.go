package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/nadzzz/securecall/internal/audio"
	"github.com/nadzzz/securecall/internal/persona"
	"github.com/nadzzz/securecall/internal/stt"
	"github.com/nadzzz/securecall/internal/tts"
	"github.com/nadzzz/securecall/internal/voice"
)

type fakeSTT struct {
	text    string
	calls   int
	gotType string
	gotLang string
}

func (f *fakeSTT) Name() string { return "fake-stt" }
func (f *fakeSTT) Close() error { return nil }
func (f *fakeSTT) Transcribe(_ context.Context, _ []byte, contentType string, opts stt.Opts) (*stt.Result, error) {
	f.calls++
	f.gotType = contentType
	f.gotLang = opts.Language
	return &stt.Result{Text: f.text, Language: "es"}, nil
}

type fakeTTS struct {
	gotText string
	gotOpts tts.SynthesizeOpts
	err     error
}

func (f *fakeTTS) Name() string { return "fake-tts" }
func (f *fakeTTS) Close() error { return nil }
func (f *fakeTTS) Synthesize(_ context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.gotText = text
	f.gotOpts = opts
	return &tts.SynthesizeResult{
		Audio:       audio.PCMToWAV([]byte{0, 1}, 22050, 1, 2),
		ContentType: audio.ContentTypeWAV,
		SampleRate:  22050,
		Channels:    1,
	}, nil
}

func TestTransformRecording(t *testing.T) {
	s := &fakeSTT{text: " hola "}
	y := &fakeTTS{}
	tr := New(s, y, "es")

	req, _ := voice.NewRequest(persona.Incognito, audio.EncodeDataURI("audio/webm;codecs=opus", []byte("rec")))
	res, err := tr.Transform(context.Background(), req)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if s.gotType != "audio/webm;codecs=opus" || s.gotLang != "es" {
		t.Fatalf("unexpected stt call %q %q", s.gotType, s.gotLang)
	}
	if y.gotText != "hola" || y.gotOpts.Persona != persona.Incognito {
		t.Fatalf("unexpected tts call %q %+v", y.gotText, y.gotOpts)
	}
	if res.Transcript != "hola" {
		t.Fatalf("transcript = %q", res.Transcript)
	}
	if uri, err := audio.ParseDataURI(res.AudioDataURI); err != nil || uri.MIMEType != audio.ContentTypeWAV {
		t.Fatalf("unexpected audio uri: %v", err)
	}
	if tr.Name() != "pipeline/fake-stt+fake-tts" {
		t.Fatalf("name = %q", tr.Name())
	}
}

func TestTransformTextSkipsRecognition(t *testing.T) {
	s := &fakeSTT{}
	y := &fakeTTS{}
	if _, err := New(s, y, "es").Transform(context.Background(), voice.Request{Persona: persona.Hero, Text: "hola"}); err != nil {
		t.Fatalf("transform: %v", err)
	}
	if s.calls != 0 {
		t.Fatal("text input should not be transcribed")
	}
}

func TestTransformErrors(t *testing.T) {
	req, _ := voice.NewRequest(persona.Hero, audio.EncodeDataURI("audio/webm", []byte("rec")))
	if _, err := New(&fakeSTT{text: "  "}, &fakeTTS{}, "es").Transform(context.Background(), req); !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("expected ErrNoSpeech, got %v", err)
	}

	boom := errors.New("piper down")
	if _, err := New(&fakeSTT{text: "hola"}, &fakeTTS{err: boom}, "es").Transform(context.Background(), req); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped synth error, got %v", err)
	}
}
