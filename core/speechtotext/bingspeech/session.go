package bingspeech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/koscakluka/ema-speechbot/core/audio"
	"github.com/koscakluka/ema-speechbot/core/events"
	"github.com/koscakluka/ema-speechbot/core/sessions"
	"github.com/koscakluka/ema-speechbot/core/speechtotext"
	"github.com/koscakluka/ema-speechbot/core/tokens"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type State string

const (
	StateIdle              State = "idle"
	StateConnecting        State = "connecting"
	StateAwaitingConfigAck State = "awaiting_config_ack"
	StateActive            State = "active"
	StateClosing           State = "closing"
	StateClosed            State = "closed"
	StateDisabled          State = "disabled"
)

func (s State) String() string { return string(s) }

// Session streams microphone audio to the speech recognition socket and
// surfaces the transcriptions it receives.
//
// Timers only advance through Tick. Signals are emitted without holding the
// session lock, either from the read loop or from the goroutine that caused
// the transition.
type Session struct {
	mu      sync.Mutex
	writeMu sync.Mutex

	apiKey        string
	token         string
	issuedToken   bool
	language      Language
	host          string
	issuer        TokenIssuer
	dialer        sessions.Dialer
	microphone    speechtotext.Microphone
	speechConfig  SpeechConfig
	maxDuration   time.Duration
	maxIdle       time.Duration
	tokenLifetime time.Duration
	tokenClock    *tokens.Clock
	logger        *slog.Logger
	now           func() time.Time

	state          State
	conn           sessions.Conn
	attempt        uint64
	connectionID   string
	requestID      string
	configSent     bool
	closeRequested bool
	disabledLogged bool
	sinceOpen      time.Duration
	sinceInbound   time.Duration
	unsubscribeMic []func()

	readySignal  sessions.Signal[events.SessionReady]
	closedSignal sessions.Signal[events.SessionClosed]
	eventSignal  sessions.Signal[events.Event]
}

func New(opts ...SessionOption) *Session {
	s := &Session{
		language:      DefaultLanguage,
		host:          DefaultHost,
		dialer:        sessions.WebsocketDialer{},
		speechConfig:  DefaultSpeechConfig(),
		maxDuration:   DefaultMaxDuration,
		maxIdle:       DefaultMaxIdle,
		tokenLifetime: DefaultTokenLifetime,
		tokenClock:    tokens.NewClock(),
		logger:        logger,
		now:           time.Now,
		state:         StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.apiKey == "" {
		s.apiKey = lookupAPIKey()
	}
	if s.issuer == nil {
		s.issuer = NewHTTPTokenIssuer()
	}
	s.tokenClock.OnElapsed(s.expireToken)
	return s
}

func (s *Session) OnReady(fn func(events.SessionReady)) func() {
	return s.readySignal.Subscribe(fn)
}

func (s *Session) OnClosed(fn func(events.SessionClosed)) func() {
	return s.closedSignal.Subscribe(fn)
}

// OnEvent delivers partial texts, phrases and turn ends.
func (s *Session) OnEvent(fn func(events.Event)) func() {
	return s.eventSignal.Subscribe(fn)
}

// Connect starts a connection attempt unless one is already in flight or open.
// The outcome is reported through OnReady or OnClosed.
func (s *Session) Connect(ctx context.Context) {
	s.mu.Lock()
	switch s.state {
	case StateConnecting, StateAwaitingConfigAck, StateActive, StateClosing:
		s.mu.Unlock()
		return
	case StateDisabled:
		s.mu.Unlock()
		return
	}

	if s.apiKey == "" && s.token == "" {
		s.state = StateDisabled
		logged := s.disabledLogged
		s.disabledLogged = true
		s.mu.Unlock()
		if !logged {
			s.logger.Error("Speech session disabled", "error", fmt.Errorf("%w: speech api key or token required", sessions.ErrConfig))
		}
		return
	}

	s.attempt++
	attempt := s.attempt
	s.state = StateConnecting
	s.closeRequested = false
	s.connectionID = NewID()
	connectionID := s.connectionID
	apiKey, token := s.apiKey, s.token
	endpoint := Endpoint(s.host, s.language)
	s.mu.Unlock()

	go s.connect(ctx, attempt, connectionID, endpoint, apiKey, token)
}

func (s *Session) connect(ctx context.Context, attempt uint64, connectionID, endpoint, apiKey, token string) {
	ctx, span := tracer.Start(ctx, "bingspeech.connect", trace.WithAttributes(
		attribute.String("connection_id", connectionID),
		attribute.String("endpoint", endpoint),
	))
	defer span.End()

	if token == "" {
		s.logger.Debug("Requesting speech token")
		issued, err := s.issuer.IssueToken(ctx, apiKey)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to issue token")
			s.failConnect(attempt, err)
			return
		}
		token = issued

		s.mu.Lock()
		if s.attempt == attempt {
			s.token = issued
			s.issuedToken = true
		}
		s.mu.Unlock()
		s.tokenClock.Start(s.tokenLifetime)
	}

	header := http.Header{
		"Authorization":  {"Bearer " + token},
		"X-ConnectionId": {connectionID},
	}
	conn, err := s.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		err = fmt.Errorf("%w: failed to open speech socket: %w", sessions.ErrTransport, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to dial")
		s.dropIssuedToken()
		s.failConnect(attempt, err)
		return
	}

	s.mu.Lock()
	if s.attempt != attempt || s.state != StateConnecting {
		s.mu.Unlock()
		s.logger.Debug("Discarding stale speech connection", "connection_id", connectionID)
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.state = StateAwaitingConfigAck
	s.sinceOpen = 0
	s.sinceInbound = 0
	s.mu.Unlock()

	s.logger.Info("Speech socket open", "connection_id", connectionID)
	go s.readMessages(attempt, conn)

	s.sendSpeechConfig(attempt, conn)
}

func (s *Session) failConnect(attempt uint64, err error) {
	s.mu.Lock()
	if s.attempt != attempt || s.state != StateConnecting {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	unsubscribe := s.resetLocked()
	s.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
	s.logger.Error("Speech connection failed", "error", err)
	s.closedSignal.Emit(events.NewSessionClosed(events.SessionSpeech, false, err))
}

// sendSpeechConfig sends the speech.config message once per connection and,
// once it is on the wire, marks the session ready.
func (s *Session) sendSpeechConfig(attempt uint64, conn sessions.Conn) {
	s.mu.Lock()
	if s.attempt != attempt || s.state != StateAwaitingConfigAck {
		s.mu.Unlock()
		return
	}
	alreadySent := s.configSent
	config := s.speechConfig
	s.mu.Unlock()

	if !alreadySent {
		body, err := json.Marshal(config)
		if err != nil {
			s.logger.Error("Failed to marshal speech config", "error", err)
			s.abort(attempt, conn)
			return
		}
		message, err := EncodeControlFrame(body,
			Header{Key: headerPath, Value: pathSpeechConfig},
			Header{Key: headerContentType, Value: "application/json; charset=utf-8"},
			Header{Key: headerTimestamp, Value: Timestamp(s.now())},
		)
		if err != nil {
			s.logger.Error("Failed to encode speech config", "error", err)
			s.abort(attempt, conn)
			return
		}
		if err := s.write(conn, sessions.TextMessage, message); err != nil {
			s.logger.Error("Failed to send speech config", "error", err)
			s.abort(attempt, conn)
			return
		}
	}

	s.mu.Lock()
	if s.attempt != attempt || s.state != StateAwaitingConfigAck {
		s.mu.Unlock()
		return
	}
	s.configSent = true
	s.state = StateActive
	if s.microphone != nil {
		s.unsubscribeMic = append(s.unsubscribeMic,
			s.microphone.OnRecordedData(s.receivedAudio),
			s.microphone.OnRecordingStopped(s.NewTurn),
		)
	}
	connectionID := s.connectionID
	s.mu.Unlock()

	s.logger.Info("Speech config sent, session ready", "connection_id", connectionID)
	s.readySignal.Emit(events.NewSessionReady(events.SessionSpeech))
}

func (s *Session) receivedAudio(data []byte) {
	if err := s.SendAudio(data); err != nil && !errors.Is(err, sessions.ErrNotActive) {
		s.logger.Warn("Failed to send recorded audio", "error", err)
	}
}

// SendAudio sends one audio frame for the current turn. A nil chunk sends the
// empty-body frame the service reads as end of speech, which also keeps an
// idle socket alive.
func (s *Session) SendAudio(data []byte) error {
	s.mu.Lock()
	if s.state != StateActive {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: speech session is %s", sessions.ErrNotActive, state)
	}
	if s.requestID == "" {
		s.requestID = NewID()
	}
	requestID := s.requestID
	attempt := s.attempt
	conn := s.conn
	s.mu.Unlock()

	header, err := EncodeHeader(
		Header{Key: headerPath, Value: pathAudio},
		Header{Key: headerRequestID, Value: requestID},
		Header{Key: headerTimestamp, Value: Timestamp(s.now())},
		Header{Key: headerContentType, Value: audio.ContentTypeWAV},
	)
	if err != nil {
		return err
	}
	frame, err := EncodeAudioFrame(header, data)
	if err != nil {
		return err
	}

	if err := s.write(conn, sessions.BinaryMessage, frame); err != nil {
		s.abort(attempt, conn)
		return err
	}
	return nil
}

// SendAudioFile sends the contents of a WAV file as a single audio frame.
func (s *Session) SendAudioFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read audio file: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("audio file %s is empty", path)
	}
	if !audio.HasWAVHeader(data) {
		s.logger.Warn("Audio file has no WAV header", "path", path)
	}
	return s.SendAudio(data)
}

// NewTurn starts a new request id for the next audio frame.
func (s *Session) NewTurn() {
	s.mu.Lock()
	s.requestID = NewID()
	requestID := s.requestID
	s.mu.Unlock()

	s.logger.Debug("New speech turn", "request_id", requestID)
}

// Tick advances the connection and idle timers and the token lifetime.
func (s *Session) Tick(elapsed time.Duration) {
	s.tokenClock.Tick(elapsed)

	s.mu.Lock()
	if s.conn == nil || (s.state != StateAwaitingConfigAck && s.state != StateActive) {
		s.mu.Unlock()
		return
	}
	s.sinceOpen += elapsed
	s.sinceInbound += elapsed

	if s.sinceOpen > s.maxDuration {
		s.state = StateClosing
		s.closeRequested = false
		conn := s.conn
		s.mu.Unlock()

		s.logger.Info("Closing speech socket, reached max duration")
		if err := conn.Close(); err != nil {
			s.logger.Warn("Failed to close speech socket", "error", err)
		}
		return
	}

	keepAlive := s.state == StateActive && s.sinceInbound > s.maxIdle
	if keepAlive {
		s.sinceInbound = 0
	}
	s.mu.Unlock()

	if keepAlive {
		s.logger.Debug("Sending speech keepalive")
		if err := s.SendAudio(nil); err != nil {
			s.logger.Warn("Failed to send speech keepalive", "error", err)
		}
	}
}

// Close closes the socket. The closed signal is emitted once the read loop
// returns, or right away when there is no socket to close.
func (s *Session) Close() {
	s.mu.Lock()
	switch s.state {
	case StateClosing:
		s.mu.Unlock()
		return
	case StateAwaitingConfigAck, StateActive:
		s.state = StateClosing
		s.closeRequested = true
		conn := s.conn
		s.mu.Unlock()

		if err := conn.Close(); err != nil {
			s.logger.Warn("Failed to close speech socket", "error", err)
		}
		return
	case StateConnecting:
		// Invalidate the attempt in flight.
		s.attempt++
		s.state = StateClosed
	case StateIdle, StateClosed:
		s.state = StateClosed
	}
	unsubscribe := s.resetLocked()
	s.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
	s.closedSignal.Emit(events.NewSessionClosed(events.SessionSpeech, true, nil))
}

func (s *Session) readMessages(attempt uint64, conn sessions.Conn) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			s.handleClosed(attempt, err)
			return
		}

		s.mu.Lock()
		if s.attempt != attempt {
			s.mu.Unlock()
			return
		}
		s.sinceInbound = 0
		s.mu.Unlock()

		if messageType != sessions.TextMessage || len(data) == 0 {
			continue
		}
		s.handleTextMessage(data)
	}
}

func (s *Session) handleTextMessage(data []byte) {
	frame, err := DecodeTextMessage(data)
	if err != nil {
		s.logger.Warn("Dropping speech message", "error", err)
		return
	}
	event, err := ParseSpeechPayload(frame.Path(), frame.Body)
	if err != nil {
		s.logger.Warn("Dropping speech message", "path", frame.Path(), "error", err)
		return
	}
	if event == nil {
		return
	}
	if _, ok := event.(events.SpeechTurnEnded); ok {
		s.NewTurn()
	}
	s.eventSignal.Emit(event)
}

func (s *Session) handleClosed(attempt uint64, err error) {
	s.mu.Lock()
	if s.attempt != attempt || s.state == StateClosed || s.state == StateDisabled {
		s.mu.Unlock()
		return
	}
	expected := s.closeRequested
	s.state = StateClosed
	unsubscribe := s.resetLocked()
	s.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}

	var closeErr error
	if !expected {
		closeErr = fmt.Errorf("%w: %w", sessions.ErrTransport, err)
		s.logger.Warn("Speech socket closed unexpectedly", "error", err)
	} else {
		s.logger.Info("Speech socket closed")
	}
	s.closedSignal.Emit(events.NewSessionClosed(events.SessionSpeech, expected, closeErr))
}

// abort tears down a connection after a failed write. The read loop reports
// the closure.
func (s *Session) abort(attempt uint64, conn sessions.Conn) {
	s.mu.Lock()
	if s.attempt != attempt || s.conn != conn || s.state == StateClosing {
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	s.closeRequested = false
	s.mu.Unlock()

	_ = conn.Close()
}

// resetLocked clears per-connection state and returns the microphone
// subscriptions to cancel once the lock is released.
func (s *Session) resetLocked() []func() {
	unsubscribe := s.unsubscribeMic
	s.unsubscribeMic = nil
	s.conn = nil
	s.configSent = false
	s.closeRequested = false
	s.connectionID = ""
	s.requestID = ""
	s.sinceOpen = 0
	s.sinceInbound = 0
	return unsubscribe
}

func (s *Session) write(conn sessions.Conn, messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("%w: failed to write to speech socket: %w", sessions.ErrTransport, err)
	}
	return nil
}

func (s *Session) expireToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.issuedToken {
		s.token = ""
		s.issuedToken = false
	}
}

func (s *Session) dropIssuedToken() {
	s.tokenClock.Stop()
	s.expireToken()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) RequestID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestID
}

func (s *Session) ConnectionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectionID
}

type Status struct {
	State        State
	ConnectionID string
	RequestID    string
	ConfigSent   bool
	SinceOpen    time.Duration
	SinceInbound time.Duration
	HasToken     bool
}

func (s *Session) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:        s.state,
		ConnectionID: s.connectionID,
		RequestID:    s.requestID,
		ConfigSent:   s.configSent,
		SinceOpen:    s.sinceOpen,
		SinceInbound: s.sinceInbound,
		HasToken:     s.token != "",
	}
}
