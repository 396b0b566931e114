package events

const (
	// KindBotReply identifies a reply activity authored by the bot.
	KindBotReply Kind = "bot.reply"
	// KindBotTyping identifies a typing indicator from the bot.
	KindBotTyping Kind = "bot.typing"
	// KindUserEcho identifies the echo of an activity sent by the user.
	KindUserEcho Kind = "bot.user_echo"
	// KindBotMessageSent identifies a confirmed user message post.
	KindBotMessageSent Kind = "bot.message_sent"
	// KindBotMessageFailed identifies a failed user message post.
	KindBotMessageFailed Kind = "bot.message_failed"
	// KindWatermarkAdvanced identifies a watermark update from the stream.
	KindWatermarkAdvanced Kind = "bot.watermark_advanced"
)

// BotReply carries the text of a bot reply.
type BotReply struct {
	Base
	Text      string
	InputHint string
}

// NewBotReply creates a bot reply event.
func NewBotReply(text, inputHint string) BotReply {
	return BotReply{Base: NewBase(KindBotReply), Text: text, InputHint: inputHint}
}

// BotTyping is a transient "bot is thinking" signal. It is never a real reply.
type BotTyping struct{ Base }

// NewBotTyping creates a typing event.
func NewBotTyping() BotTyping {
	return BotTyping{Base: NewBase(KindBotTyping)}
}

// UserEcho carries an activity without input hint, i.e. the user's own message.
type UserEcho struct {
	Base
	Text string
}

// NewUserEcho creates a user echo event.
func NewUserEcho(text string) UserEcho {
	return UserEcho{Base: NewBase(KindUserEcho), Text: text}
}

// BotMessageSent confirms that a user message was accepted by the bot service.
type BotMessageSent struct {
	Base
	MessageID string
	Text      string
}

// NewBotMessageSent creates a message sent event.
func NewBotMessageSent(messageID, text string) BotMessageSent {
	return BotMessageSent{Base: NewBase(KindBotMessageSent), MessageID: messageID, Text: text}
}

// BotMessageFailed reports that posting a user message failed.
type BotMessageFailed struct {
	Base
	MessageID string
	Text      string
	Err       error
}

// NewBotMessageFailed creates a message failed event.
func NewBotMessageFailed(messageID, text string, err error) BotMessageFailed {
	return BotMessageFailed{Base: NewBase(KindBotMessageFailed), MessageID: messageID, Text: text, Err: err}
}

// WatermarkAdvanced carries the latest watermark seen on the bot stream.
type WatermarkAdvanced struct {
	Base
	Watermark string
}

// NewWatermarkAdvanced creates a watermark event.
func NewWatermarkAdvanced(watermark string) WatermarkAdvanced {
	return WatermarkAdvanced{Base: NewBase(KindWatermarkAdvanced), Watermark: watermark}
}
