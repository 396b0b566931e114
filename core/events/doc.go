// Package events defines the typed event contract shared by the speech and
// bot sessions and the orchestrator that drives them.
//
// Event kinds are grouped by namespace:
//
//   - speech.*
//   - session.*
//   - bot.*
//   - control.*
//
// speech events
//
//   - SpeechPartialText (speech.partial_text): interim hypothesis, mutable
//     until the phrase is final.
//   - SpeechPhraseText (speech.phrase_text): final text for a phrase. Empty
//     text with a non-success status means nothing was recognized.
//   - SpeechTurnEnded (speech.turn_ended): turn boundary; the speech session
//     has already rotated its request id when this is observed.
//
// session events
//
//   - SessionReady (session.ready): configuration or handshake completed.
//   - SessionClosed (session.closed): socket closed, with Expected set when
//     the closure was requested locally.
//
// bot events
//
//   - BotReply (bot.reply): activity with a non-empty input hint.
//   - BotTyping (bot.typing): typing indicator without text.
//   - UserEcho (bot.user_echo): activity without input hint.
//   - BotMessageSent / BotMessageFailed (bot.message_*): completion of a
//     user message post.
//   - WatermarkAdvanced (bot.watermark_advanced): stream cursor moved.
//
// control events
//
//   - FocusAcquired, FocusLost, StopRequested (control.*): intents posted by
//     external collaborators; only the orchestrator consumes them.
package events
