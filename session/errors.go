package session

import "errors"

var (
	// ErrNotReady is returned by command operations outside the Ready state
	ErrNotReady = errors.New("session is not ready")

	// ErrInvalidState is returned when an operation is not allowed in the current state
	ErrInvalidState = errors.New("invalid session state")

	// ErrKeepAliveRunning is returned when a second keep-alive is started for a session
	ErrKeepAliveRunning = errors.New("keep-alive already running")

	// ErrNoData is returned by Session.Read when no inbound bytes are buffered
	ErrNoData = errors.New("no data buffered")

	// ErrClosed is returned by Manager operations after Close
	ErrClosed = errors.New("manager is closed")
)
