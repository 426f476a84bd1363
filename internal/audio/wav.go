package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Defaults for raw PCM returned by generative voice endpoints.
const (
	DefaultSampleRate = 24000
	DefaultChannels   = 1
	DefaultWidth      = 2 // bytes per sample
)

// ContentTypeWAV is the MIME type of WAV payloads produced by this package.
const ContentTypeWAV = "audio/wav"

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// PCMToWAV wraps raw little-endian PCM data in a WAV container.
func PCMToWAV(pcm []byte, sampleRate, channels, bytesPerSample int) []byte {
	dataLen := len(pcm)

	buf := &bytes.Buffer{}
	buf.Grow(44 + dataLen)

	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate*channels*bytesPerSample))
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels*bytesPerSample))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bytesPerSample*8))

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(pcm)

	return buf.Bytes()
}

// ToWAV re-wraps a payload of the given MIME type into a WAV container.
//
// WAV input is returned as is. Raw PCM ("audio/L16", "audio/pcm") is wrapped
// using the rate and channels parameters of the MIME type, defaulting to
// 24 kHz mono 16-bit.
func ToWAV(data []byte, mimeType string) ([]byte, error) {
	if IsWAV(data) {
		return data, nil
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio payload")
	}

	switch bt := baseType(mimeType); {
	case bt == "audio/l16", bt == "audio/pcm", strings.HasPrefix(bt, "audio/x-l16"), bt == "":
		rate := intParam(mimeType, "rate", DefaultSampleRate)
		channels := intParam(mimeType, "channels", DefaultChannels)
		return PCMToWAV(data, rate, channels, DefaultWidth), nil
	case bt == "audio/wav", bt == "audio/x-wav", bt == "audio/wave":
		return nil, fmt.Errorf("payload declared as %s has no RIFF header", bt)
	default:
		return nil, fmt.Errorf("cannot re-wrap %s audio as wav", bt)
	}
}

// WAVDataURI re-wraps the payload as WAV and encodes it as a data URI.
func WAVDataURI(data []byte, mimeType string) (string, error) {
	wav, err := ToWAV(data, mimeType)
	if err != nil {
		return "", err
	}
	return EncodeDataURI(ContentTypeWAV, wav), nil
}

func intParam(mimeType, name string, def int) int {
	v := mimeParam(mimeType, name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
