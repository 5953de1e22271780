package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"mime"
	"strconv"
	"strings"
)

const (
	DefaultSampleRate = 16000
	pcmChannels       = 1
	pcmBitDepth       = 16
	wavHeaderSize     = 44
)

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// WrapPCM prefixes 16-bit little-endian mono PCM with a WAV header.
func WrapPCM(pcm []byte, sampleRate int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, errors.New("empty pcm payload")
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	header, err := wavHeader(len(pcm), sampleRate, pcmChannels, pcmBitDepth)
	if err != nil {
		return nil, fmt.Errorf("build wav header: %w", err)
	}

	out := make([]byte, 0, len(header)+len(pcm))
	out = append(out, header...)
	out = append(out, pcm...)
	return out, nil
}

// PCMSampleRate inspects a Content-Type such as "audio/L16; rate=48000" and
// returns the sample rate when the payload is raw linear PCM.
func PCMSampleRate(contentType string) (int, bool) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return 0, false
	}

	switch strings.ToLower(mediaType) {
	case "audio/l16", "audio/pcm", "audio/x-pcm":
	default:
		return 0, false
	}

	rate := DefaultSampleRate
	if raw := params["rate"]; raw != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || parsed <= 0 {
			return 0, false
		}
		rate = parsed
	}
	return rate, true
}

func wavHeader(dataSize, sampleRate, channels, bitDepth int) ([]byte, error) {
	byteRate := sampleRate * channels * bitDepth / 8
	blockAlign := channels * bitDepth / 8
	chunkSize := 36 + dataSize

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize))
	fields := []any{
		[]byte("RIFF"),
		uint32(chunkSize),
		[]byte("WAVE"),
		[]byte("fmt "),
		uint32(16),
		uint16(1),
		uint16(channels),
		uint32(sampleRate),
		uint32(byteRate),
		uint16(blockAlign),
		uint16(bitDepth),
		[]byte("data"),
		uint32(dataSize),
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.LittleEndian, f); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}
