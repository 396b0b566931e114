package bingspeech

import (
	"errors"
	"testing"

	"github.com/koscakluka/ema-speechbot/core/events"
	"github.com/koscakluka/ema-speechbot/core/sessions"
)

func TestParseSpeechPayloadMapsPaths(t *testing.T) {
	event, err := ParseSpeechPayload("speech.hypothesis", []byte(`{"Text":"hel","Offset":1,"Duration":2}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	partial, ok := event.(events.SpeechPartialText)
	if !ok || partial.Text != "hel" {
		t.Fatalf("expected partial text hel, got %#v", event)
	}

	event, err = ParseSpeechPayload("speech.phrase", []byte(`{"RecognitionStatus":"Success","DisplayText":"Hello."}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	phrase, ok := event.(events.SpeechPhraseText)
	if !ok || phrase.Text != "Hello." || phrase.Status != "Success" {
		t.Fatalf("expected phrase Hello., got %#v", event)
	}

	event, err = ParseSpeechPayload("turn.end", []byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := event.(events.SpeechTurnEnded); !ok {
		t.Fatalf("expected turn ended, got %#v", event)
	}
}

func TestParseSpeechPayloadIgnoresUnknownPaths(t *testing.T) {
	event, err := ParseSpeechPayload("speech.startDetected", []byte(`{"Offset":0}`))
	if err != nil || event != nil {
		t.Fatalf("expected unknown path to be ignored, got %#v, %v", event, err)
	}
}

func TestParseSpeechPayloadReportsInvalidJSON(t *testing.T) {
	_, err := ParseSpeechPayload("speech.phrase", []byte(`{"DisplayText":`))
	if !errors.Is(err, sessions.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}
