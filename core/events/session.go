package events

const (
	// KindSessionReady identifies a session that finished its handshake.
	KindSessionReady Kind = "session.ready"
	// KindSessionClosed identifies a session whose socket went away.
	KindSessionClosed Kind = "session.closed"
)

// SessionReady reports that a session may carry real traffic.
type SessionReady struct {
	Base
	Session SessionKind
}

// NewSessionReady creates a readiness event for the given session.
func NewSessionReady(session SessionKind) SessionReady {
	return SessionReady{Base: NewBase(KindSessionReady), Session: session}
}

// SessionClosed reports that a session is closed.
//
// Expected is true when the closure was requested through Close. Err holds the
// transport error that ended the socket, if any.
type SessionClosed struct {
	Base
	Session  SessionKind
	Expected bool
	Err      error
}

// NewSessionClosed creates a closed event for the given session.
func NewSessionClosed(session SessionKind, expected bool, err error) SessionClosed {
	return SessionClosed{Base: NewBase(KindSessionClosed), Session: session, Expected: expected, Err: err}
}
