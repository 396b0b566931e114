package orchestration

import (
	"context"
	"log/slog"
	"time"

	"github.com/koscakluka/ema-speechbot/core/events"
)

const (
	DefaultInactivityTimeout = 5 * time.Second
	DefaultTickInterval      = 50 * time.Millisecond
)

type OrchestratorOption func(*Orchestrator)

// Session is the lifecycle both halves of the pair share. Connect and Close
// never block on the network; their outcome arrives through the signals.
type Session interface {
	Connect(ctx context.Context)
	Close()
	Tick(elapsed time.Duration)
	OnReady(func(events.SessionReady)) (unsubscribe func())
	OnClosed(func(events.SessionClosed)) (unsubscribe func())
	OnEvent(func(events.Event)) (unsubscribe func())
}

type SpeechSession interface {
	Session
}

// BotSession posts user text to the bot. SendMessage returns the local id
// that the later BotMessageSent or BotMessageFailed event carries.
type BotSession interface {
	Session
	SendMessage(ctx context.Context, text string) (string, error)
}

type Recorder interface {
	StartRecording()
	StopRecording()
}

func WithRecorder(recorder Recorder) OrchestratorOption {
	return func(o *Orchestrator) { o.recorder = recorder }
}

type CaptionSink interface {
	ShowCaption(text string)
}

// TypingSink is an optional CaptionSink extension notified while the bot is
// composing a reply.
type TypingSink interface {
	ShowTyping()
}

func WithCaptionSink(sink CaptionSink) OrchestratorOption {
	return func(o *Orchestrator) { o.captions = sink }
}

type Speaker interface {
	Speak(text string)
}

func WithSpeaker(speaker Speaker) OrchestratorOption {
	return func(o *Orchestrator) { o.speaker = speaker }
}

// WithInactivityTimeout sets how long focus may stay lost while both
// sessions are ready before the pair is stopped.
func WithInactivityTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.inactivityTimeout = timeout
		}
	}
}

// WithMessageRetries re-queues a failed message at the head of the outbound
// queue up to retries times. Zero drops failed messages.
func WithMessageRetries(retries int) OrchestratorOption {
	return func(o *Orchestrator) {
		if retries >= 0 {
			o.messageRetries = retries
		}
	}
}

// WithTargetName restricts which focus target starts the pair. Focus on any
// other target counts as focus lost. An empty name accepts every target.
func WithTargetName(name string) OrchestratorOption {
	return func(o *Orchestrator) { o.targetName = name }
}

func WithStateChangedCallback(callback func(State)) OrchestratorOption {
	return func(o *Orchestrator) { o.onStateChanged = callback }
}

func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithBaseContext sets the context handed to Connect and SendMessage.
func WithBaseContext(ctx context.Context) OrchestratorOption {
	return func(o *Orchestrator) {
		if ctx != nil {
			o.baseContext = ctx
		}
	}
}
