// Package audio handles the audio payload formats exchanged with browsers
// and voice backends: Base64 data URIs and WAV containers.
package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrNotDataURI is returned when a payload lacks the "data:" scheme.
var ErrNotDataURI = errors.New("not a data uri")

// DataURI is a decoded RFC 2397 data URI.
type DataURI struct {
	// MIMEType is the media type including parameters (e.g., "audio/L16;rate=24000").
	MIMEType string

	// Data is the decoded payload.
	Data []byte
}

// IsDataURI reports whether s uses the data: scheme.
func IsDataURI(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "data:")
}

// ParseDataURI decodes a Base64 data URI. Non-base64 data URIs are rejected
// since browsers always encode recorded audio.
func ParseDataURI(s string) (*DataURI, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return nil, ErrNotDataURI
	}
	comma := strings.IndexByte(s, ',')
	if comma < 0 {
		return nil, fmt.Errorf("data uri: missing payload separator")
	}

	meta := s[len("data:"):comma]
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("data uri: only base64 payloads are supported")
	}
	mimeType := strings.TrimSuffix(meta, ";base64")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	data, err := base64.StdEncoding.DecodeString(s[comma+1:])
	if err != nil {
		return nil, fmt.Errorf("data uri: decoding payload: %w", err)
	}
	return &DataURI{MIMEType: mimeType, Data: data}, nil
}

// BaseType returns the MIME type without parameters, lower-cased.
func (d *DataURI) BaseType() string {
	return baseType(d.MIMEType)
}

// EncodeDataURI builds a Base64 data URI for the given payload.
func EncodeDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func baseType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// mimeParam returns the value of a MIME parameter such as "rate".
func mimeParam(mimeType, name string) string {
	parts := strings.Split(mimeType, ";")
	for _, p := range parts[1:] {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if ok && strings.EqualFold(k, name) {
			return strings.Trim(v, `"`)
		}
	}
	return ""
}
