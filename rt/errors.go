package rt

import (
	"errors"
	"fmt"
	"time"
)

// ErrSessionClosed is returned by operations attempted after the session
// has sent EndOfStream or reached a terminal state.
var ErrSessionClosed = errors.New("rt: session closed")

// ErrSessionNotStarted is returned by operations that require an active
// session before RecognitionStarted has been received.
var ErrSessionNotStarted = errors.New("rt: session not started")

// ErrSessionAborted is recorded as the session error when the caller
// tears the session down with Close instead of draining it with
// StopSession. It distinguishes a deliberate abort from a failure.
var ErrSessionAborted = errors.New("rt: session aborted")

// TransportError indicates a connection-level failure. It is unrecoverable:
// the session moves to StateErrored and no further operations are accepted.
type TransportError struct {
	Op  string // "dial", "write", "read", "close"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rt: transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// TimeoutError indicates that an expected server message did not arrive
// within its bounded wait. It is unrecoverable.
type TimeoutError struct {
	Op      string // "recognition started", "end of transcript"
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("rt: timed out waiting for %s after %v", e.Op, e.Timeout)
}

// ProtocolError indicates a malformed or out-of-sequence message from the
// server. It is unrecoverable.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("rt: protocol violation: %s", e.Reason)
}

// ServerError is an explicit fatal error reported by the server. The
// session cannot continue after receiving one.
type ServerError struct {
	Reason string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("rt: server error: %s", e.Reason)
}

// ServerWarning is a non-fatal condition reported by the server. It is
// surfaced through the Warning handler; the session continues.
type ServerWarning struct {
	Reason string
}

func (e *ServerWarning) Error() string {
	return fmt.Sprintf("rt: server warning: %s", e.Reason)
}
