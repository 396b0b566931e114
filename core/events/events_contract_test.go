package events

import (
	"errors"
	"testing"
)

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "speech partial text", event: NewSpeechPartialText("hel"), expected: KindSpeechPartialText},
		{name: "speech phrase text", event: NewSpeechPhraseText("hello", "Success"), expected: KindSpeechPhraseText},
		{name: "speech turn ended", event: NewSpeechTurnEnded(), expected: KindSpeechTurnEnded},
		{name: "session ready", event: NewSessionReady(SessionSpeech), expected: KindSessionReady},
		{name: "session closed", event: NewSessionClosed(SessionBot, true, nil), expected: KindSessionClosed},
		{name: "bot reply", event: NewBotReply("hi", "acceptingInput"), expected: KindBotReply},
		{name: "bot typing", event: NewBotTyping(), expected: KindBotTyping},
		{name: "user echo", event: NewUserEcho("hello"), expected: KindUserEcho},
		{name: "bot message sent", event: NewBotMessageSent("id", "hello"), expected: KindBotMessageSent},
		{name: "bot message failed", event: NewBotMessageFailed("id", "hello", errors.New("boom")), expected: KindBotMessageFailed},
		{name: "watermark advanced", event: NewWatermarkAdvanced("3"), expected: KindWatermarkAdvanced},
		{name: "focus acquired", event: NewFocusAcquired("bot"), expected: KindFocusAcquired},
		{name: "focus lost", event: NewFocusLost(), expected: KindFocusLost},
		{name: "stop requested", event: NewStopRequested(), expected: KindStopRequested},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
			if testCase.event.Timestamp().IsZero() {
				t.Fatalf("expected timestamp to be set")
			}
		})
	}
}

func TestSessionClosedCarriesSessionAndExpectation(t *testing.T) {
	err := errors.New("connection reset")
	closed := NewSessionClosed(SessionSpeech, false, err)

	if closed.Session != SessionSpeech {
		t.Fatalf("expected speech session, got %q", closed.Session)
	}
	if closed.Expected {
		t.Fatalf("expected unexpected closure")
	}
	if !errors.Is(closed.Err, err) {
		t.Fatalf("expected closure error to be kept, got %v", closed.Err)
	}
}
