// Package speechtotext holds what speech recognition sessions share: the
// microphone contract they subscribe to while a connection is active.
package speechtotext

import (
	"github.com/koscakluka/ema-speechbot/core/audio"
	"github.com/koscakluka/ema-speechbot/core/sessions"
)

// Microphone publishes recorded audio chunks and the end of a recording.
// Both subscriptions return a function that removes the handler again.
type Microphone interface {
	OnRecordedData(func(data []byte)) (unsubscribe func())
	OnRecordingStopped(func()) (unsubscribe func())
}

// RecordingFeed is a Microphone driven by whoever owns the capture device.
type RecordingFeed struct {
	EncodingInfo audio.EncodingInfo

	recorded sessions.Signal[[]byte]
	stopped  sessions.Signal[struct{}]
}

func NewRecordingFeed(encoding audio.EncodingInfo) *RecordingFeed {
	if encoding.IsZero() {
		encoding = audio.GetDefaultEncodingInfo()
	}
	return &RecordingFeed{EncodingInfo: encoding}
}

func (f *RecordingFeed) OnRecordedData(fn func(data []byte)) func() {
	return f.recorded.Subscribe(fn)
}

func (f *RecordingFeed) OnRecordingStopped(fn func()) func() {
	if fn == nil {
		return func() {}
	}
	return f.stopped.Subscribe(func(struct{}) { fn() })
}

// PublishRecorded hands a chunk to every subscriber. Empty chunks are dropped;
// the end of a recording is signalled with PublishStopped.
func (f *RecordingFeed) PublishRecorded(data []byte) {
	if len(data) == 0 {
		return
	}
	f.recorded.Emit(data)
}

func (f *RecordingFeed) PublishStopped() {
	f.stopped.Emit(struct{}{})
}

// Subscribers reports how many sessions currently listen for audio.
func (f *RecordingFeed) Subscribers() int {
	return f.recorded.Len()
}
