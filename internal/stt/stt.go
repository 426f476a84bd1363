// Package stt defines the interface for speech-to-text transcription.
//
// The pipeline voice backend transcribes the caller's recording first and
// then re-voices the text with a persona voice. SecureCall ships with two
// transcribers: OpenAI (cloud) and a self-hosted whisper server.
package stt

import (
	"context"
	"strings"
)

// Opts controls transcription behavior.
type Opts struct {
	// Language is the ISO-639-1 code (e.g., "es", "en") to guide transcription.
	Language string

	// Prompt provides context to improve recognition of domain-specific terms.
	Prompt string

	// Model overrides the default transcription model.
	Model string
}

// Result holds the output of a transcription.
type Result struct {
	Text string

	// Language is the detected ISO-639-1 code, if the backend reports one.
	Language string
}

// Transcriber converts recorded audio to text.
type Transcriber interface {
	// Name returns the backend identifier (e.g., "openai", "whisper").
	Name() string

	// Transcribe converts audio bytes to text.
	Transcribe(ctx context.Context, audio []byte, contentType string, opts Opts) (*Result, error)

	// Close releases any resources held by the transcriber.
	Close() error
}

// FileExtension picks an upload filename extension for a MIME type. Whisper
// servers sniff the container from it.
func FileExtension(contentType string) string {
	switch ct := strings.ToLower(contentType); {
	case strings.Contains(ct, "webm"):
		return ".webm"
	case strings.Contains(ct, "wav"), strings.Contains(ct, "l16"), strings.Contains(ct, "pcm"):
		return ".wav"
	case strings.Contains(ct, "ogg"), strings.Contains(ct, "opus"):
		return ".ogg"
	case strings.Contains(ct, "mp3"), strings.Contains(ct, "mpeg"):
		return ".mp3"
	case strings.Contains(ct, "flac"):
		return ".flac"
	case strings.Contains(ct, "m4a"), strings.Contains(ct, "mp4"), strings.Contains(ct, "aac"):
		return ".m4a"
	default:
		return ".wav"
	}
}

var languageCodes = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"catalan":    "ca",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"dutch":      "nl",
	"polish":     "pl",
	"russian":    "ru",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"arabic":     "ar",
	"turkish":    "tr",
}

// NormalizeLanguage converts full language names (as some backends return
// them) to ISO-639-1 codes.
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if code, ok := languageCodes[lang]; ok {
		return code
	}
	return lang
}
