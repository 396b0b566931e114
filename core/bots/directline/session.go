package directline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-speechbot/core/events"
	"github.com/koscakluka/ema-speechbot/core/sessions"
	"github.com/koscakluka/ema-speechbot/core/tokens"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type State string

const (
	StateIdle        State = "idle"
	StateNegotiating State = "negotiating"
	StateConnecting  State = "connecting"
	StateActive      State = "active"
	StateClosing     State = "closing"
	StateClosed      State = "closed"
	StateDisabled    State = "disabled"
)

func (s State) String() string { return string(s) }

var ErrEmptyMessage = errors.New("empty message")

// Session keeps a Direct Line conversation open. The stream socket only
// receives; user messages are posted over REST.
//
// The conversation id and watermark survive Close so the next Connect resumes
// the conversation without replaying activities.
type Session struct {
	mu sync.Mutex

	secret        string
	token         string
	userName      string
	client        Conversations
	dialer        sessions.Dialer
	refreshRetry  time.Duration
	refreshMargin time.Duration
	refreshClock  *tokens.Clock
	logger        *slog.Logger
	now           func() time.Time

	state          State
	conn           sessions.Conn
	attempt        uint64
	baseCtx        context.Context
	conversationID string
	watermark      string
	tokenExpiry    time.Duration
	refreshing     bool
	closeRequested bool
	disabledLogged bool

	readySignal  sessions.Signal[events.SessionReady]
	closedSignal sessions.Signal[events.SessionClosed]
	eventSignal  sessions.Signal[events.Event]
}

func New(opts ...SessionOption) *Session {
	s := &Session{
		userName:      DefaultUserName,
		dialer:        sessions.WebsocketDialer{},
		refreshRetry:  DefaultRefreshRetry,
		refreshMargin: tokens.DefaultSafetyMargin,
		logger:        logger,
		now:           time.Now,
		state:         StateIdle,
		baseCtx:       context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.secret == "" && s.token == "" {
		s.secret, s.token = lookupCredentials()
	}
	if s.client == nil {
		s.client = NewHTTPClient()
	}
	s.refreshClock = tokens.NewClock(tokens.WithSafetyMargin(s.refreshMargin))
	s.refreshClock.OnElapsed(s.refreshToken)
	return s
}

func (s *Session) OnReady(fn func(events.SessionReady)) func() {
	return s.readySignal.Subscribe(fn)
}

func (s *Session) OnClosed(fn func(events.SessionClosed)) func() {
	return s.closedSignal.Subscribe(fn)
}

// OnEvent delivers bot replies, typing indicators, user echoes, message post
// outcomes and watermark updates.
func (s *Session) OnEvent(fn func(events.Event)) func() {
	return s.eventSignal.Subscribe(fn)
}

// Connect negotiates the conversation and opens the stream socket. A known
// conversation is resumed from its watermark, otherwise a new one is started.
func (s *Session) Connect(ctx context.Context) {
	s.mu.Lock()
	switch s.state {
	case StateNegotiating, StateConnecting, StateActive, StateClosing, StateDisabled:
		s.mu.Unlock()
		return
	}

	credential := s.credentialLocked()
	if credential == "" {
		s.state = StateDisabled
		logged := s.disabledLogged
		s.disabledLogged = true
		s.mu.Unlock()
		if !logged {
			s.logger.Error("Bot session disabled", "error", fmt.Errorf("%w: direct line secret or token required", sessions.ErrConfig))
		}
		return
	}

	s.attempt++
	attempt := s.attempt
	s.state = StateNegotiating
	s.closeRequested = false
	s.baseCtx = context.WithoutCancel(ctx)
	conversationID, watermark := s.conversationID, s.watermark
	s.mu.Unlock()

	go s.negotiate(ctx, attempt, credential, conversationID, watermark)
}

func (s *Session) negotiate(ctx context.Context, attempt uint64, credential, conversationID, watermark string) {
	resume := conversationID != "" || watermark != ""
	ctx, span := tracer.Start(ctx, "directline.connect", trace.WithAttributes(
		attribute.Bool("resume", resume),
		attribute.String("conversation_id", conversationID),
	))
	defer span.End()

	var (
		response ConversationResponse
		err      error
	)
	if resume {
		s.logger.Debug("Resuming conversation", "conversation_id", conversationID, "watermark", watermark)
		response, err = s.client.GetConversation(ctx, credential, conversationID, watermark)
	} else {
		s.logger.Debug("Starting conversation")
		response, err = s.client.StartConversation(ctx, credential)
	}
	if err == nil && response.StreamURL == "" {
		err = fmt.Errorf("%w: conversation response has no stream url", sessions.ErrRequest)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to negotiate conversation")
		s.failConnect(attempt, StateNegotiating, err)
		return
	}

	s.mu.Lock()
	if s.attempt != attempt || s.state != StateNegotiating {
		s.mu.Unlock()
		return
	}
	s.applyResponseLocked(response)
	s.state = StateConnecting
	s.mu.Unlock()

	conn, err := s.dialer.DialContext(ctx, response.StreamURL, nil)
	if err != nil {
		err = fmt.Errorf("%w: failed to open conversation stream: %w", sessions.ErrTransport, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to dial")
		s.failConnect(attempt, StateConnecting, err)
		return
	}

	s.mu.Lock()
	if s.attempt != attempt || s.state != StateConnecting {
		s.mu.Unlock()
		s.logger.Debug("Discarding stale conversation stream")
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.state = StateActive
	conversationID = s.conversationID
	s.mu.Unlock()

	s.logger.Info("Bot socket open", "conversation_id", conversationID)
	go s.readMessages(attempt, conn)
	s.readySignal.Emit(events.NewSessionReady(events.SessionBot))
}

// applyResponseLocked takes over the token, conversation, watermark and expiry
// from a conversation or refresh response and restarts the refresh countdown.
func (s *Session) applyResponseLocked(response ConversationResponse) {
	if response.Token != "" {
		s.token = response.Token
	}
	if response.ConversationID != "" {
		s.conversationID = response.ConversationID
	}
	if response.Watermark != "" {
		s.watermark = response.Watermark
	}

	expiry := time.Duration(response.ExpiresIn) * time.Second
	if expiry <= 0 && s.token != "" {
		if fromJWT, ok := tokens.ExpiryFromJWT(s.token, s.now()); ok && fromJWT > 0 {
			expiry = fromJWT
		}
	}
	if expiry <= 0 {
		expiry = DefaultTokenExpiry
	}
	s.tokenExpiry = expiry
	s.refreshClock.Start(expiry)
}

func (s *Session) failConnect(attempt uint64, expected State, err error) {
	s.mu.Lock()
	if s.attempt != attempt || s.state != expected {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.conn = nil
	s.mu.Unlock()

	s.logger.Error("Bot connection failed", "error", err)
	s.closedSignal.Emit(events.NewSessionClosed(events.SessionBot, false, err))
}

// Tick advances the token refresh countdown.
func (s *Session) Tick(elapsed time.Duration) {
	s.refreshClock.Tick(elapsed)
}

func (s *Session) refreshToken() {
	s.mu.Lock()
	if s.refreshing || s.token == "" {
		s.mu.Unlock()
		return
	}
	s.refreshing = true
	token := s.token
	ctx := s.baseCtx
	s.mu.Unlock()

	go func() {
		ctx, span := tracer.Start(ctx, "directline.refresh_token")
		defer span.End()

		response, err := s.client.RefreshToken(ctx, token)
		if err == nil && response.Token == "" {
			err = fmt.Errorf("%w: refresh response has no token", sessions.ErrRequest)
		}

		s.mu.Lock()
		s.refreshing = false
		if err != nil {
			s.mu.Unlock()
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to refresh token")
			s.logger.Warn("Failed to refresh bot token, keeping current token", "error", err, "retry_in", s.refreshRetry)
			s.refreshClock.Reset(s.refreshRetry)
			return
		}
		s.applyResponseLocked(response)
		s.mu.Unlock()

		s.logger.Debug("Bot token refreshed")
	}()
}

// SendMessage posts text as a user message and returns the id the outcome is
// reported under. The post itself completes asynchronously with
// BotMessageSent or BotMessageFailed.
func (s *Session) SendMessage(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyMessage
	}

	s.mu.Lock()
	conversationID := s.conversationID
	credential := s.credentialLocked()
	userName := s.userName
	active := s.state == StateActive
	s.mu.Unlock()

	if conversationID == "" {
		return "", fmt.Errorf("%w: no conversation id", sessions.ErrNotActive)
	}
	if credential == "" {
		return "", fmt.Errorf("%w: direct line secret or token required", sessions.ErrConfig)
	}
	if !active {
		s.logger.Warn("Bot socket not open, replies will not be received until it reconnects")
	}

	messageID := uuid.NewString()
	go func() {
		ctx, span := tracer.Start(ctx, "directline.send_message", trace.WithAttributes(
			attribute.String("message_id", messageID),
		))
		defer span.End()

		activityID, err := s.client.PostActivity(ctx, credential, conversationID, NewUserMessage(text, userName))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to post message")
			s.logger.Error("Failed to send message to bot", "message_id", messageID, "error", err)
			s.eventSignal.Emit(events.NewBotMessageFailed(messageID, text, err))
			return
		}

		s.logger.Debug("Sent message to bot", "message_id", messageID, "activity_id", activityID)
		s.eventSignal.Emit(events.NewBotMessageSent(messageID, text))
	}()
	return messageID, nil
}

// Close closes the stream socket. The closed signal is emitted once the read
// loop returns, or right away when there is no socket to close.
func (s *Session) Close() {
	s.mu.Lock()
	switch s.state {
	case StateClosing:
		s.mu.Unlock()
		return
	case StateActive:
		s.state = StateClosing
		s.closeRequested = true
		conn := s.conn
		s.mu.Unlock()

		if err := conn.Close(); err != nil {
			s.logger.Warn("Failed to close bot socket", "error", err)
		}
		return
	case StateNegotiating, StateConnecting:
		s.attempt++
		s.state = StateClosed
	case StateIdle, StateClosed:
		s.state = StateClosed
	}
	s.conn = nil
	s.mu.Unlock()

	s.closedSignal.Emit(events.NewSessionClosed(events.SessionBot, true, nil))
}

func (s *Session) readMessages(attempt uint64, conn sessions.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.handleClosed(attempt, err)
			return
		}
		if len(strings.TrimSpace(string(data))) == 0 {
			continue
		}
		s.handleActivities(data)
	}
}

func (s *Session) handleActivities(data []byte) {
	var set ActivitySet
	if err := json.Unmarshal(data, &set); err != nil {
		s.logger.Warn("Dropping bot message", "error", fmt.Errorf("%w: %w", sessions.ErrParse, err))
		return
	}

	if set.Watermark != "" {
		s.mu.Lock()
		s.watermark = set.Watermark
		s.mu.Unlock()
		s.eventSignal.Emit(events.NewWatermarkAdvanced(set.Watermark))
	}

	if len(set.Activities) == 0 {
		s.logger.Debug("Bot message without activities", "watermark", set.Watermark)
		return
	}

	activity := set.Activities[0]
	if activity.IsTyping() {
		s.eventSignal.Emit(events.NewBotTyping())
		return
	}
	if len(set.Activities) > 1 {
		s.logger.Warn("Only the first activity of a batch is handled", "activities", len(set.Activities))
	}

	if activity.FromBot() {
		s.eventSignal.Emit(events.NewBotReply(activity.Text, activity.InputHint))
	} else {
		s.eventSignal.Emit(events.NewUserEcho(activity.Text))
	}
}

func (s *Session) handleClosed(attempt uint64, err error) {
	s.mu.Lock()
	if s.attempt != attempt || s.state == StateClosed || s.state == StateDisabled {
		s.mu.Unlock()
		return
	}
	expected := s.closeRequested
	s.state = StateClosed
	s.conn = nil
	s.closeRequested = false
	s.mu.Unlock()

	var closeErr error
	if !expected {
		closeErr = fmt.Errorf("%w: %w", sessions.ErrTransport, err)
		s.logger.Warn("Bot socket closed unexpectedly", "error", err)
	} else {
		s.logger.Info("Bot socket closed")
	}
	s.closedSignal.Emit(events.NewSessionClosed(events.SessionBot, expected, closeErr))
}

func (s *Session) credentialLocked() string {
	if s.secret != "" {
		return s.secret
	}
	return s.token
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

type ConversationState struct {
	ConversationID string
	Watermark      string
	TokenExpiry    time.Duration
	RefreshIn      time.Duration
}

func (s *Session) ConversationState() ConversationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ConversationState{
		ConversationID: s.conversationID,
		Watermark:      s.watermark,
		TokenExpiry:    s.tokenExpiry,
		RefreshIn:      s.refreshClock.Remaining(),
	}
}
