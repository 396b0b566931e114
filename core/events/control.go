package events

const (
	// KindFocusAcquired identifies the user focusing the conversation target.
	KindFocusAcquired Kind = "control.focus_acquired"
	// KindFocusLost identifies the user looking away from the target.
	KindFocusLost Kind = "control.focus_lost"
	// KindStopRequested identifies an explicit request to end the session pair.
	KindStopRequested Kind = "control.stop_requested"
)

// FocusAcquired is posted when the conversation target gains focus.
type FocusAcquired struct {
	Base
	Target string
}

// NewFocusAcquired creates a focus acquired event.
func NewFocusAcquired(target string) FocusAcquired {
	return FocusAcquired{Base: NewBase(KindFocusAcquired), Target: target}
}

// FocusLost is posted when the conversation target loses focus.
type FocusLost struct{ Base }

// NewFocusLost creates a focus lost event.
func NewFocusLost() FocusLost {
	return FocusLost{Base: NewBase(KindFocusLost)}
}

// StopRequested asks the orchestrator to tear the session pair down.
type StopRequested struct{ Base }

// NewStopRequested creates a stop requested event.
func NewStopRequested() StopRequested {
	return StopRequested{Base: NewBase(KindStopRequested)}
}
