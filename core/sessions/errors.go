package sessions

import "errors"

var (
	// ErrConfig marks a missing or invalid credential. The session is
	// disabled and not retried.
	ErrConfig = errors.New("session configuration error")
	// ErrTransport marks a socket level failure. It is always followed by a
	// close of the session.
	ErrTransport = errors.New("session transport error")
	// ErrMalformedFrame marks an inbound frame whose headers or body could not
	// be located.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrParse marks a frame body that could not be decoded.
	ErrParse = errors.New("parse error")
	// ErrRequest marks a failed REST call.
	ErrRequest = errors.New("request error")
	// ErrNotActive is returned when traffic is sent on a session that is not
	// active.
	ErrNotActive = errors.New("session not active")
	// ErrDisabled is returned by sessions disabled after a configuration error.
	ErrDisabled = errors.New("session disabled")
)
