package audio

import "testing"

func TestHasWAVHeader(t *testing.T) {
	wav := append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 40)...)

	testCases := []struct {
		name     string
		data     []byte
		expected bool
	}{
		{name: "wav header", data: wav, expected: true},
		{name: "raw samples", data: []byte{0x01, 0x02, 0x03}, expected: false},
		{name: "riff without wave", data: []byte("RIFF\x00\x00\x00\x00AVI "), expected: false},
		{name: "empty", data: nil, expected: false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := HasWAVHeader(testCase.data); got != testCase.expected {
				t.Fatalf("expected %t, got %t", testCase.expected, got)
			}
		})
	}
}

func TestSplitWAVHeader(t *testing.T) {
	wav := append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 28)...)
	wav = append(wav, 0x0a, 0x0b)

	header, samples := SplitWAVHeader(wav)
	if len(header) != wavHeaderSize {
		t.Fatalf("expected %d header bytes, got %d", wavHeaderSize, len(header))
	}
	if len(samples) != 2 || samples[0] != 0x0a || samples[1] != 0x0b {
		t.Fatalf("expected trailing samples, got %v", samples)
	}

	header, samples = SplitWAVHeader([]byte{0x01})
	if header != nil || len(samples) != 1 {
		t.Fatalf("expected headerless buffer to be all samples")
	}
}

func TestDefaultEncodingInfo(t *testing.T) {
	info := GetDefaultEncodingInfo()
	if info.IsZero() {
		t.Fatalf("expected default encoding to be set")
	}
	if got, want := info.BytesPerSecond(), 32000; got != want {
		t.Fatalf("expected %d bytes per second, got %d", want, got)
	}
}
