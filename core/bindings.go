package orchestration

import (
	"context"
	"time"

	"github.com/koscakluka/ema-speechbot/core/events"
)

// boundSession owns the subscriptions the orchestrator holds on one session.
// Every signal is turned into an intent and posted; nothing is handled on the
// session's goroutine.
type boundSession struct {
	kind        events.SessionKind
	session     Session
	unsubscribe []func()
}

func bindSession(kind events.SessionKind, session Session, post func(events.Event)) *boundSession {
	b := &boundSession{kind: kind, session: session}
	if !b.isConfigured() {
		return b
	}

	b.unsubscribe = []func(){
		session.OnReady(func(ready events.SessionReady) { post(ready) }),
		session.OnClosed(func(closed events.SessionClosed) { post(closed) }),
		session.OnEvent(post),
	}
	return b
}

func (b *boundSession) isConfigured() bool {
	return b != nil && b.session != nil
}

func (b *boundSession) connect(ctx context.Context) {
	if b.isConfigured() {
		b.session.Connect(ctx)
	}
}

func (b *boundSession) close() {
	if b.isConfigured() {
		b.session.Close()
	}
}

func (b *boundSession) tick(elapsed time.Duration) {
	if b.isConfigured() {
		b.session.Tick(elapsed)
	}
}

func (b *boundSession) unbind() {
	if b == nil {
		return
	}
	for _, unsubscribe := range b.unsubscribe {
		unsubscribe()
	}
	b.unsubscribe = nil
}
