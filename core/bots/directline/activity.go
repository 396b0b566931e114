package directline

const (
	ActivityTypeMessage = "message"
	ActivityTypeTyping  = "typing"

	DefaultUserName = "UnityUser"
)

type ChannelAccount struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Activity is the subset of a Bot Framework activity this package reads and
// writes.
type Activity struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Text      string          `json:"text,omitempty"`
	InputHint string          `json:"inputHint,omitempty"`
	From      *ChannelAccount `json:"from,omitempty"`
}

// IsTyping reports a typing indicator without any text.
func (a Activity) IsTyping() bool {
	return a.Type == ActivityTypeTyping && a.Text == ""
}

// FromBot reports whether the activity was authored by the bot. Only bot
// activities carry an input hint.
func (a Activity) FromBot() bool {
	return a.InputHint != ""
}

// NewUserMessage builds the message activity posted on behalf of user.
func NewUserMessage(text, user string) Activity {
	if user == "" {
		user = DefaultUserName
	}
	return Activity{
		Type: ActivityTypeMessage,
		Text: text,
		From: &ChannelAccount{ID: user, Name: user},
	}
}

// ActivitySet is one batch pushed on the conversation stream.
type ActivitySet struct {
	Activities []Activity `json:"activities"`
	Watermark  string     `json:"watermark,omitempty"`
}

// ConversationResponse covers the bodies of the conversation and token
// endpoints; each fills in a subset of the fields.
type ConversationResponse struct {
	Token          string     `json:"token,omitempty"`
	ConversationID string     `json:"conversationId,omitempty"`
	ExpiresIn      int        `json:"expires_in,omitempty"`
	StreamURL      string     `json:"streamUrl,omitempty"`
	Watermark      string     `json:"watermark,omitempty"`
	Activities     []Activity `json:"activities,omitempty"`
}

type resourceResponse struct {
	ID string `json:"id"`
}
