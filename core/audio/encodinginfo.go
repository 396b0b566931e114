// Package audio describes the audio buffers handed to the speech session.
//
// Samples are produced outside this module; the speech service only needs
// WAV-wrapped 16 kHz mono linear PCM, so nothing here encodes audio.
package audio

import "bytes"

const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	DefaultFormat     = "linear16"

	// ContentTypeWAV is the Content-Type sent with every audio frame.
	ContentTypeWAV = "audio/x-wav"
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Channels: DefaultChannels, Format: encodingFormat(DefaultFormat)}
}

type EncodingInfo struct {
	SampleRate int
	Channels   int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

// BytesPerSecond is the byte rate of raw samples in this encoding.
func (e EncodingInfo) BytesPerSecond() int {
	channels := max(e.Channels, 1)
	return e.SampleRate * channels * max(e.Format.ByteSize(), 0)
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case encodingFormat("mulaw"), encodingFormat("alaw"):
		return 1
	case encodingFormat("linear16"):
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)

const wavHeaderSize = 44

// HasWAVHeader reports whether data starts with a RIFF/WAVE file header.
// Only the first chunk of a recording carries one.
func HasWAVHeader(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE"))
}

// SplitWAVHeader returns the header and sample bytes of a canonical 44 byte
// header WAV buffer. Buffers without a header are returned as samples.
func SplitWAVHeader(data []byte) (header, samples []byte) {
	if !HasWAVHeader(data) || len(data) < wavHeaderSize {
		return nil, data
	}
	return data[:wavHeaderSize], data[wavHeaderSize:]
}
