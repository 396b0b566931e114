package events

const (
	// KindSpeechPartialText identifies an interim hypothesis for the current turn.
	KindSpeechPartialText Kind = "speech.partial_text"
	// KindSpeechPhraseText identifies a finalized phrase for the current turn.
	KindSpeechPhraseText Kind = "speech.phrase_text"
	// KindSpeechTurnEnded identifies the server-side end of a turn.
	KindSpeechTurnEnded Kind = "speech.turn_ended"
)

// SpeechPartialText carries a partial transcription (speech.hypothesis).
type SpeechPartialText struct {
	Base
	Text string
}

// NewSpeechPartialText creates a partial transcription event.
func NewSpeechPartialText(text string) SpeechPartialText {
	return SpeechPartialText{Base: NewBase(KindSpeechPartialText), Text: text}
}

// SpeechPhraseText carries a final transcription (speech.phrase).
//
// Status is the recognition status reported by the server, e.g. "Success" or
// "NoMatch". Text is empty for anything but a successful recognition.
type SpeechPhraseText struct {
	Base
	Text   string
	Status string
}

// NewSpeechPhraseText creates a final transcription event.
func NewSpeechPhraseText(text, status string) SpeechPhraseText {
	return SpeechPhraseText{Base: NewBase(KindSpeechPhraseText), Text: text, Status: status}
}

// SpeechTurnEnded marks a turn.end message from the server.
type SpeechTurnEnded struct{ Base }

// NewSpeechTurnEnded creates a turn ended event.
func NewSpeechTurnEnded() SpeechTurnEnded {
	return SpeechTurnEnded{Base: NewBase(KindSpeechTurnEnded)}
}
