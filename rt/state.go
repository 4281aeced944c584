package rt

import "fmt"

// State represents the lifecycle state of a transcription session.
//
// The normal progression is Connecting → AwaitingStart → Active → Ending
// → Closed. StateErrored is an absorbing state reachable from any
// non-terminal state on transport failure, timeout, protocol violation,
// or a fatal server-reported error.
type State int

const (
	// StateConnecting is the initial state while the WebSocket handshake
	// and StartRecognition transmission are in progress.
	StateConnecting State = iota

	// StateAwaitingStart means StartRecognition has been sent and the
	// client is waiting for RecognitionStarted.
	StateAwaitingStart

	// StateActive means the server acknowledged the session; audio may be
	// streamed and transcript events may arrive.
	StateActive

	// StateEnding means EndOfStream has been sent and the client is
	// waiting for EndOfTranscript. No further audio is accepted.
	StateEnding

	// StateClosed means EndOfTranscript arrived and the session completed
	// gracefully.
	StateClosed

	// StateErrored means the session failed. The triggering error is
	// available from Client.Err.
	StateErrored
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingStart:
		return "awaiting_start"
	case StateActive:
		return "active"
	case StateEnding:
		return "ending"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Terminal reports whether the session can make no further progress.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateErrored
}
