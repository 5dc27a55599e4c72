package transport

import (
	"encoding/binary"
	"testing"

	"realtime-backend/internal/config"
)

func encodeMetadata(sampleRate uint32, channels, bits uint16, reserved uint32) []byte {
	buf := make([]byte, metadataHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], sampleRate)
	binary.LittleEndian.PutUint16(buf[4:6], channels)
	binary.LittleEndian.PutUint16(buf[6:8], bits)
	binary.LittleEndian.PutUint32(buf[8:12], reserved)
	return buf
}

func testAudioConfig() config.AudioConfig {
	return config.AudioConfig{
		ValidSampleRates: []uint32{8000, 16000, 22050, 44100, 48000},
		MaxChannels:      2,
		ValidBitDepths:   []uint16{8, 16, 24, 32},
	}
}

func TestParseMetadataRejectsWrongSize(t *testing.T) {
	_, err := parseMetadata([]byte{1, 2, 3})
	if err == nil {
		t.Fatalf("expected an error for a short handshake header")
	}
}

func TestParseMetadataDecodesLittleEndianFields(t *testing.T) {
	buf := encodeMetadata(16000, 1, 16, 0)
	m, err := parseMetadata(buf)
	if err != nil {
		t.Fatalf("parseMetadata() error = %v", err)
	}
	if m.SampleRate != 16000 || m.Channels != 1 || m.BitsPerSample != 16 {
		t.Errorf("m = %+v", m)
	}
	if m.bytesPerSample() != 2 {
		t.Errorf("bytesPerSample() = %d, want 2", m.bytesPerSample())
	}
}

func TestValidateAcceptsSupportedFormat(t *testing.T) {
	m := &audioMetadata{SampleRate: 16000, Channels: 1, BitsPerSample: 16}
	if err := m.validate(testAudioConfig()); err != nil {
		t.Errorf("validate() error = %v, want nil", err)
	}
}

func TestValidateRejectsUnsupportedSampleRate(t *testing.T) {
	m := &audioMetadata{SampleRate: 11025, Channels: 1, BitsPerSample: 16}
	if err := m.validate(testAudioConfig()); err == nil {
		t.Errorf("expected an error for an unsupported sample rate")
	}
}

func TestValidateRejectsTooManyChannels(t *testing.T) {
	m := &audioMetadata{SampleRate: 16000, Channels: 3, BitsPerSample: 16}
	if err := m.validate(testAudioConfig()); err == nil {
		t.Errorf("expected an error for too many channels")
	}
}

func TestValidateRejectsZeroChannels(t *testing.T) {
	m := &audioMetadata{SampleRate: 16000, Channels: 0, BitsPerSample: 16}
	if err := m.validate(testAudioConfig()); err == nil {
		t.Errorf("expected an error for zero channels")
	}
}

func TestValidateRejectsUnsupportedBitDepth(t *testing.T) {
	m := &audioMetadata{SampleRate: 16000, Channels: 1, BitsPerSample: 12}
	if err := m.validate(testAudioConfig()); err == nil {
		t.Errorf("expected an error for an unsupported bit depth")
	}
}
