package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/koscakluka/ema-speechbot/core/events"
	"github.com/koscakluka/ema-speechbot/core/sessions"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

func (s State) String() string { return string(s) }

// Orchestrator drives a speech session and a bot session as one unit: focus
// starts both, finalized phrases are relayed to the bot one per tick, and
// lost focus or an explicit stop tears both down again.
//
// Session signals and external intents are only posted from their callers'
// goroutines. All state changes happen inside Tick.
type Orchestrator struct {
	speech    *boundSession
	bot       *boundSession
	botSender BotSession

	recorder          Recorder
	captions          CaptionSink
	speaker           Speaker
	inactivityTimeout time.Duration
	messageRetries    int
	targetName        string
	onStateChanged    func(State)
	logger            *slog.Logger
	baseContext       context.Context

	intents   *mailbox[events.Event]
	runtime   *conversationRuntime
	emitEvent eventEmitter

	tickMu sync.Mutex
	mu     sync.Mutex

	state          State
	speechReady    bool
	botReady       bool
	speechClosed   bool
	botClosed      bool
	recording      bool
	focusTriggered bool
	focusActive    bool
	inactivity     time.Duration
	outbound       []outboundMessage
	inflight       map[string]outboundMessage
	closed         bool

	closeOnce sync.Once
}

type outboundMessage struct {
	text     string
	failures int
}

// Status is a point in time copy of the orchestrator flags.
type Status struct {
	State         State
	SpeechReady   bool
	BotReady      bool
	SpeechClosed  bool
	BotClosed     bool
	IsStarting    bool
	IsFocusActive bool
	Inactivity    time.Duration
	Queued        int
	InFlight      int
}

func NewOrchestrator(speech SpeechSession, bot BotSession, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		botSender:         bot,
		inactivityTimeout: DefaultInactivityTimeout,
		logger:            logger,
		baseContext:       context.Background(),
		intents:           newMailbox[events.Event](),
		state:             StateIdle,
		inflight:          map[string]outboundMessage{},
	}

	for _, opt := range opts {
		opt(o)
	}

	o.runtime = newConversationRuntime(o.logger)
	o.emitEvent = newRelayEventEmitter(o.runtime, o.captions, o.speaker)
	if speech != nil {
		o.speech = bindSession(events.SessionSpeech, speech, o.post)
	}
	if bot != nil {
		o.bot = bindSession(events.SessionBot, bot, o.post)
	}
	o.runtime.start(o.baseContext)

	return o
}

// FocusAcquired reports that target gained focus. Only the first focus on
// the configured target starts the pair; it has to return to idle before
// focus can start it again.
func (o *Orchestrator) FocusAcquired(target string) {
	o.post(events.NewFocusAcquired(target))
}

// FocusLost reports that the conversation target lost focus. The pair is
// stopped once focus stays lost for the inactivity timeout.
func (o *Orchestrator) FocusLost() {
	o.post(events.NewFocusLost())
}

// Stop requests an immediate teardown of both sessions.
func (o *Orchestrator) Stop() {
	o.post(events.NewStopRequested())
}

func (o *Orchestrator) post(event events.Event) {
	if event == nil {
		return
	}
	o.intents.post(event)
}

// Tick advances the orchestrator by elapsed. It handles every intent posted
// since the previous tick in arrival order, advances the inactivity timer,
// ticks both sessions and sends at most one queued message.
func (o *Orchestrator) Tick(elapsed time.Duration) {
	o.tickMu.Lock()
	defer o.tickMu.Unlock()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	var effects []func()
	for _, intent := range o.intents.drain() {
		effects = append(effects, o.handleIntentLocked(intent)...)
	}
	effects = append(effects, o.advanceInactivityLocked(elapsed)...)
	o.mu.Unlock()

	for _, effect := range effects {
		effect()
	}

	o.speech.tick(elapsed)
	o.bot.tick(elapsed)

	o.sendNextMessage()
}

// Run ticks the orchestrator on a wall clock until ctx is done.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			o.Tick(now.Sub(last))
			last = now
		}
	}
}

func (o *Orchestrator) advanceInactivityLocked(elapsed time.Duration) []func() {
	if o.state != StateRunning || o.focusActive || !o.speechReady || !o.botReady {
		return nil
	}

	o.inactivity += elapsed
	if o.inactivity <= o.inactivityTimeout {
		return nil
	}

	o.logger.Info("Focus lost past inactivity timeout", "inactivity", o.inactivity)
	return o.stopLocked()
}

func (o *Orchestrator) focusAcquiredLocked(target string) []func() {
	if o.targetName != "" && target != o.targetName {
		o.focusActive = false
		return nil
	}

	o.focusActive = true
	o.inactivity = 0
	if o.state != StateIdle || o.focusTriggered {
		return nil
	}

	o.focusTriggered = true
	o.speechReady, o.botReady = false, false
	o.speechClosed, o.botClosed = false, false

	ctx := o.baseContext
	effects := o.setStateLocked(StateStarting)
	return append(effects,
		func() { o.bot.connect(ctx) },
		func() { o.speech.connect(ctx) },
	)
}

func (o *Orchestrator) sessionReadyLocked(kind events.SessionKind) []func() {
	if o.state != StateStarting && o.state != StateRunning {
		o.logger.Debug("Ignoring session ready", "session", kind, "state", o.state)
		return nil
	}

	o.setReadyLocked(kind, true)
	if !o.speechReady || !o.botReady {
		return nil
	}

	effects := o.setStateLocked(StateRunning)
	if !o.recording && o.recorder != nil {
		o.recording = true
		effects = append(effects, o.recorder.StartRecording)
	}
	return effects
}

func (o *Orchestrator) sessionClosedLocked(closed events.SessionClosed) []func() {
	switch o.state {
	case StateStarting, StateRunning:
		o.setReadyLocked(closed.Session, false)
		o.setClosedLocked(closed.Session)
		o.logger.Warn("Session closed, reconnecting",
			"session", closed.Session,
			"expected", closed.Expected,
			"error", closed.Err)

		reconnectCounter.Add(o.baseContext, 1,
			metric.WithAttributes(attribute.String("session", closed.Session.String())))

		ctx := o.baseContext
		binding := o.binding(closed.Session)
		effects := o.setStateLocked(StateStarting)
		return append(effects, func() { binding.connect(ctx) })

	case StateStopping:
		o.setClosedLocked(closed.Session)
		return o.finishStoppingLocked()

	default:
		o.logger.Debug("Ignoring session closed", "session", closed.Session, "state", o.state)
		return nil
	}
}

func (o *Orchestrator) stopLocked() []func() {
	if o.state != StateStarting && o.state != StateRunning {
		return nil
	}

	effects := o.setStateLocked(StateStopping)
	o.speechReady, o.botReady = false, false
	o.speechClosed = !o.speech.isConfigured()
	o.botClosed = !o.bot.isConfigured()
	o.inactivity = 0

	if o.recording {
		o.recording = false
		if o.recorder != nil {
			effects = append(effects, o.recorder.StopRecording)
		}
	}

	effects = append(effects, o.speech.close, o.bot.close)
	return append(effects, o.finishStoppingLocked()...)
}

func (o *Orchestrator) finishStoppingLocked() []func() {
	if !o.speechClosed || !o.botClosed {
		return nil
	}

	o.focusTriggered = false
	o.focusActive = false
	return o.setStateLocked(StateIdle)
}

func (o *Orchestrator) enqueueLocked(text string) {
	if isBlank(text) {
		return
	}
	o.outbound = append(o.outbound, outboundMessage{text: text})
}

func (o *Orchestrator) sendNextMessage() {
	o.mu.Lock()
	if len(o.outbound) == 0 || !o.botReady || o.botSender == nil {
		o.mu.Unlock()
		return
	}
	message := o.outbound[0]
	o.outbound = o.outbound[1:]
	ctx := o.baseContext
	o.mu.Unlock()

	ctx, span := tracer.Start(ctx, "send bot message")
	defer span.End()

	id, err := o.botSender.SendMessage(ctx, message.text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		o.mu.Lock()
		defer o.mu.Unlock()
		if errors.Is(err, sessions.ErrNotActive) {
			o.outbound = append([]outboundMessage{message}, o.outbound...)
			return
		}
		messagesFailedCounter.Add(ctx, 1)
		o.retryLocked(message, fmt.Errorf("failed to send bot message: %w", err))
		return
	}

	o.mu.Lock()
	o.inflight[id] = message
	o.mu.Unlock()
}

func (o *Orchestrator) messageSentLocked(sent events.BotMessageSent) {
	if _, ok := o.inflight[sent.MessageID]; !ok {
		return
	}
	delete(o.inflight, sent.MessageID)
	messagesSentCounter.Add(o.baseContext, 1)
}

func (o *Orchestrator) messageFailedLocked(failed events.BotMessageFailed) {
	message, ok := o.inflight[failed.MessageID]
	if !ok {
		return
	}
	delete(o.inflight, failed.MessageID)
	messagesFailedCounter.Add(o.baseContext, 1)
	o.retryLocked(message, failed.Err)
}

func (o *Orchestrator) retryLocked(message outboundMessage, err error) {
	if message.failures >= o.messageRetries {
		o.logger.Warn("Dropping bot message", "failures", message.failures+1, "error", err)
		return
	}

	message.failures++
	o.logger.Info("Re-queueing bot message", "failures", message.failures, "error", err)
	o.outbound = append([]outboundMessage{message}, o.outbound...)
}

func (o *Orchestrator) setReadyLocked(kind events.SessionKind, ready bool) {
	switch kind {
	case events.SessionSpeech:
		o.speechReady = ready
		if ready {
			o.speechClosed = false
		}
	case events.SessionBot:
		o.botReady = ready
		if ready {
			o.botClosed = false
		}
	}
}

func (o *Orchestrator) setClosedLocked(kind events.SessionKind) {
	switch kind {
	case events.SessionSpeech:
		o.speechClosed = true
	case events.SessionBot:
		o.botClosed = true
	}
}

func (o *Orchestrator) setStateLocked(state State) []func() {
	if o.state == state {
		return nil
	}

	previous := o.state
	o.state = state
	o.logger.Info("Orchestrator state changed", "from", previous, "to", state)

	if o.onStateChanged == nil {
		return nil
	}
	callback := o.onStateChanged
	return []func(){func() { callback(state) }}
}

func (o *Orchestrator) binding(kind events.SessionKind) *boundSession {
	if kind == events.SessionBot {
		return o.bot
	}
	return o.speech
}

// Snapshot returns the current flags.
func (o *Orchestrator) Snapshot() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	return Status{
		State:         o.state,
		SpeechReady:   o.speechReady,
		BotReady:      o.botReady,
		SpeechClosed:  o.speechClosed,
		BotClosed:     o.botClosed,
		IsStarting:    o.state == StateStarting,
		IsFocusActive: o.focusActive,
		Inactivity:    o.inactivity,
		Queued:        len(o.outbound),
		InFlight:      len(o.inflight),
	}
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Close unsubscribes from both sessions and closes them. The orchestrator
// ignores further ticks.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.tickMu.Lock()
		defer o.tickMu.Unlock()

		o.mu.Lock()
		o.closed = true
		wasRecording := o.recording
		o.recording = false
		effects := o.setStateLocked(StateIdle)
		o.mu.Unlock()

		o.speech.unbind()
		o.bot.unbind()
		if wasRecording && o.recorder != nil {
			o.recorder.StopRecording()
		}
		o.speech.close()
		o.bot.close()
		o.runtime.close()

		for _, effect := range effects {
			effect()
		}
	})
}
