package transport

import (
	"encoding/binary"
	"fmt"

	"realtime-backend/internal/config"
)

// metadataHeaderSize is the fixed little-endian handshake header every audio
// connection sends as its first binary frame, adapted from the teacher's
// internal/model/audio.go AudioMetadata.
const metadataHeaderSize = 12

// audioMetadata describes the PCM format a connection is streaming.
type audioMetadata struct {
	SampleRate    uint32
	Channels      uint16
	BitsPerSample uint16
	Reserved      uint32
}

func parseMetadata(data []byte) (*audioMetadata, error) {
	if len(data) != metadataHeaderSize {
		return nil, fmt.Errorf("invalid handshake header size: expected %d, got %d", metadataHeaderSize, len(data))
	}
	return &audioMetadata{
		SampleRate:    binary.LittleEndian.Uint32(data[0:4]),
		Channels:      binary.LittleEndian.Uint16(data[4:6]),
		BitsPerSample: binary.LittleEndian.Uint16(data[6:8]),
		Reserved:      binary.LittleEndian.Uint32(data[8:12]),
	}, nil
}

func (m *audioMetadata) validate(cfg config.AudioConfig) error {
	validRate := false
	for _, rate := range cfg.ValidSampleRates {
		if m.SampleRate == rate {
			validRate = true
			break
		}
	}
	if !validRate {
		return fmt.Errorf("unsupported sample rate: %d", m.SampleRate)
	}

	if m.Channels < 1 || m.Channels > cfg.MaxChannels {
		return fmt.Errorf("invalid channel count: %d (max %d)", m.Channels, cfg.MaxChannels)
	}

	validDepth := false
	for _, depth := range cfg.ValidBitDepths {
		if m.BitsPerSample == depth {
			validDepth = true
			break
		}
	}
	if !validDepth {
		return fmt.Errorf("unsupported bits per sample: %d", m.BitsPerSample)
	}

	return nil
}

func (m *audioMetadata) bytesPerSample() int {
	return int(m.BitsPerSample / 8)
}
