package bingspeech

import (
	"encoding/json"
	"fmt"

	"github.com/koscakluka/ema-speechbot/core/events"
	"github.com/koscakluka/ema-speechbot/core/sessions"
)

const (
	pathSpeechConfig     = "speech.config"
	pathAudio            = "audio"
	pathSpeechHypothesis = "speech.hypothesis"
	pathSpeechPhrase     = "speech.phrase"
	pathTurnEnd          = "turn.end"
)

type speechHypothesis struct {
	Text     string `json:"Text"`
	Offset   int64  `json:"Offset"`
	Duration int64  `json:"Duration"`
}

type speechPhrase struct {
	RecognitionStatus string `json:"RecognitionStatus"`
	DisplayText       string `json:"DisplayText"`
	Offset            int64  `json:"Offset"`
	Duration          int64  `json:"Duration"`
}

// ParseSpeechPayload maps the body of a recognized path to its event. Paths
// the session does not surface yield a nil event and no error.
func ParseSpeechPayload(path string, body []byte) (events.Event, error) {
	switch path {
	case pathSpeechHypothesis:
		var hypothesis speechHypothesis
		if err := json.Unmarshal(body, &hypothesis); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", sessions.ErrParse, path, err)
		}
		return events.NewSpeechPartialText(hypothesis.Text), nil

	case pathSpeechPhrase:
		var phrase speechPhrase
		if err := json.Unmarshal(body, &phrase); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", sessions.ErrParse, path, err)
		}
		return events.NewSpeechPhraseText(phrase.DisplayText, phrase.RecognitionStatus), nil

	case pathTurnEnd:
		return events.NewSpeechTurnEnded(), nil

	default:
		return nil, nil
	}
}
