package rt

import "testing"

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateConnecting, "connecting"},
		{StateAwaitingStart, "awaiting_start"},
		{StateActive, "active"},
		{StateEnding, "ending"},
		{StateClosed, "closed"},
		{StateErrored, "errored"},
		{State(99), "unknown(99)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String(): expected %q, got %q", int(tt.state), tt.expected, got)
		}
	}
}

func TestStateTerminal(t *testing.T) {
	terminal := map[State]bool{
		StateConnecting:    false,
		StateAwaitingStart: false,
		StateActive:        false,
		StateEnding:        false,
		StateClosed:        true,
		StateErrored:       true,
	}

	for state, expected := range terminal {
		if got := state.Terminal(); got != expected {
			t.Errorf("State %s: expected Terminal()=%v, got %v", state, expected, got)
		}
	}
}
