package stt

import "testing"

func TestFileExtension(t *testing.T) {
	tests := map[string]string{
		"audio/webm;codecs=opus": ".webm",
		"audio/ogg":              ".ogg",
		"audio/L16;rate=24000":   ".wav",
		"audio/mpeg":             ".mp3",
		"audio/mp4":              ".m4a",
		"":                       ".wav",
	}
	for ct, want := range tests {
		if got := FileExtension(ct); got != want {
			t.Errorf("FileExtension(%q) = %q, want %q", ct, got, want)
		}
	}
}

func TestNormalizeLanguage(t *testing.T) {
	if got := NormalizeLanguage("Spanish"); got != "es" {
		t.Fatalf("got %q", got)
	}
	if got := NormalizeLanguage("ES"); got != "es" {
		t.Fatalf("got %q", got)
	}
	if got := NormalizeLanguage("klingon"); got != "klingon" {
		t.Fatalf("got %q", got)
	}
}
