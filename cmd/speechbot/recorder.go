package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/koscakluka/ema-speechbot/core/audio"
	"github.com/koscakluka/ema-speechbot/core/speechtotext"
)

const defaultChunkInterval = 200 * time.Millisecond

// wavRecorder stands in for a microphone: it streams a WAV file into the
// recording feed in real time sized chunks. Only the first chunk carries the
// WAV header.
type wavRecorder struct {
	feed     *speechtotext.RecordingFeed
	data     []byte
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newWAVRecorder(path string, feed *speechtotext.RecordingFeed, interval time.Duration, logger *slog.Logger) (*wavRecorder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wav file: %w", err)
	}
	if !audio.HasWAVHeader(data) {
		return nil, fmt.Errorf("%s is not a wav file", path)
	}
	if interval <= 0 {
		interval = defaultChunkInterval
	}

	return &wavRecorder{feed: feed, data: data, interval: interval, logger: logger}, nil
}

func (r *wavRecorder) StartRecording() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.logger.Warn("Already recording")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.logger.Info("Start recording", "bytes", len(r.data))
	go r.stream(ctx, r.done)
}

func (r *wavRecorder) StopRecording() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		r.logger.Warn("Already stopped")
		return
	}
	cancel()
	<-done
	r.logger.Info("Stopped recording")
}

func (r *wavRecorder) stream(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer r.feed.PublishStopped()

	header, samples := audio.SplitWAVHeader(r.data)
	chunkSize := max(int(float64(r.feed.EncodingInfo.BytesPerSecond())*r.interval.Seconds()), 1)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for len(samples) > 0 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		n := min(chunkSize, len(samples))
		chunk := samples[:n:n]
		samples = samples[n:]
		if header != nil {
			chunk = append(append([]byte(nil), header...), chunk...)
			header = nil
		}
		r.feed.PublishRecorded(chunk)
	}
}
