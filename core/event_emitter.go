package orchestration

import (
	"github.com/koscakluka/ema-speechbot/core/events"
)

const typingCaption = "..."

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

// newRelayEventEmitter forwards transcriptions and bot replies to the caption
// and speech collaborators. Every call is queued on the runtime so delivery
// is fire-and-forget.
func newRelayEventEmitter(runtime *conversationRuntime, captions CaptionSink, speaker Speaker) eventEmitter {
	if captions == nil && speaker == nil {
		return noopEventEmitter
	}

	showCaption := func(text string) {
		if captions != nil {
			runtime.deliver("caption", func() { captions.ShowCaption(text) })
		}
	}

	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.SpeechPartialText:
			showCaption(typedEvent.Text)
		case events.SpeechPhraseText:
			if !isBlank(typedEvent.Text) {
				showCaption(typedEvent.Text)
			}
		case events.BotReply:
			showCaption(typedEvent.Text)
			if speaker != nil && !isBlank(typedEvent.Text) {
				runtime.deliver("speaker", func() { speaker.Speak(typedEvent.Text) })
			}
		case events.BotTyping:
			if typing, ok := captions.(TypingSink); ok {
				runtime.deliver("typing", typing.ShowTyping)
			} else {
				showCaption(typingCaption)
			}
		}
	}
}

// handleIntentLocked applies one posted intent and returns the side effects
// to run once the lock is released.
func (o *Orchestrator) handleIntentLocked(intent events.Event) []func() {
	switch typedIntent := intent.(type) {
	case events.FocusAcquired:
		return o.focusAcquiredLocked(typedIntent.Target)
	case events.FocusLost:
		o.focusActive = false
	case events.StopRequested:
		return o.stopLocked()
	case events.SessionReady:
		return o.sessionReadyLocked(typedIntent.Session)
	case events.SessionClosed:
		return o.sessionClosedLocked(typedIntent)
	case events.SpeechPhraseText:
		o.emitEvent(typedIntent)
		o.enqueueLocked(typedIntent.Text)
	case events.BotMessageSent:
		o.messageSentLocked(typedIntent)
	case events.BotMessageFailed:
		o.messageFailedLocked(typedIntent)
	case events.SpeechTurnEnded:
		o.logger.Debug("Speech turn ended")
	default:
		o.emitEvent(intent)
	}
	return nil
}
