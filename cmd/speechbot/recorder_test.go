package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-speechbot/core/audio"
	"github.com/koscakluka/ema-speechbot/core/speechtotext"
)

func TestWAVRecorderStreamsFileInChunks(t *testing.T) {
	header := append([]byte("RIFF\x00\x00\x00\x00WAVE"), make([]byte, 32)...)
	samples := bytes.Repeat([]byte{1, 2}, 100)
	path := writeWAV(t, append(append([]byte(nil), header...), samples...))

	feed := speechtotext.NewRecordingFeed(audio.EncodingInfo{SampleRate: 500, Channels: 1, Format: audio.EncodingLinear16})
	var mu sync.Mutex
	var chunks [][]byte
	feed.OnRecordedData(func(data []byte) {
		mu.Lock()
		defer mu.Unlock()
		chunks = append(chunks, data)
	})
	stopped := atomic.Int32{}
	feed.OnRecordingStopped(func() { stopped.Add(1) })

	recorder, err := newWAVRecorder(path, feed, 100*time.Millisecond, slog.Default())
	if err != nil {
		t.Fatalf("failed to create recorder: %v", err)
	}

	recorder.StartRecording()
	waitForCondition(t, 2*time.Second, "end of file", func() bool { return stopped.Load() == 1 })

	mu.Lock()
	defer mu.Unlock()
	if len(chunks) != 2 {
		t.Fatalf("expected two 100 byte chunks, got %d", len(chunks))
	}
	if !audio.HasWAVHeader(chunks[0]) || len(chunks[0]) != len(header)+100 {
		t.Fatalf("expected header on the first chunk only, got %d bytes", len(chunks[0]))
	}
	if audio.HasWAVHeader(chunks[1]) || len(chunks[1]) != 100 {
		t.Fatalf("expected a bare sample chunk, got %d bytes", len(chunks[1]))
	}
}

func TestWAVRecorderStopEndsStream(t *testing.T) {
	data := append([]byte("RIFF\x00\x00\x00\x00WAVE"), make([]byte, 32+64000)...)
	feed := speechtotext.NewRecordingFeed(audio.EncodingInfo{})
	stopped := atomic.Int32{}
	feed.OnRecordingStopped(func() { stopped.Add(1) })

	recorder, err := newWAVRecorder(writeWAV(t, data), feed, time.Hour, slog.Default())
	if err != nil {
		t.Fatalf("failed to create recorder: %v", err)
	}

	recorder.StartRecording()
	recorder.StartRecording()
	recorder.StopRecording()
	recorder.StopRecording()

	if stopped.Load() != 1 {
		t.Fatalf("expected one stopped signal, got %d", stopped.Load())
	}
}

func TestNewWAVRecorderRejectsOtherFiles(t *testing.T) {
	feed := speechtotext.NewRecordingFeed(audio.EncodingInfo{})

	if _, err := newWAVRecorder(filepath.Join(t.TempDir(), "missing.wav"), feed, 0, slog.Default()); err == nil {
		t.Fatalf("expected missing file to fail")
	}
	if _, err := newWAVRecorder(writeWAV(t, []byte("not a wav file")), feed, 0, slog.Default()); err == nil {
		t.Fatalf("expected non wav file to fail")
	}
}

func writeWAV(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.wav")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write wav file: %v", err)
	}
	return path
}

func waitForCondition(t *testing.T, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}
