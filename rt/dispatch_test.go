package rt

import (
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.Default()
}

func TestDispatchPreservesArrivalOrder(t *testing.T) {
	d := newDispatcher(testLogger())

	var got []string
	d.on(ServerAddPartialTranscript, func(msg *ServerMessage) {
		got = append(got, "partial:"+msg.Transcript.Transcript)
	})
	d.on(ServerAddTranscript, func(msg *ServerMessage) {
		got = append(got, "final:"+msg.Transcript.Transcript)
	})

	// Partial for utterance A, final for A, then partial for B: the
	// sequence handlers observe must match arrival order exactly.
	sequence := []*ServerMessage{
		{Type: ServerAddPartialTranscript, Transcript: &TranscriptResult{Transcript: "utterance a"}},
		{Type: ServerAddTranscript, Transcript: &TranscriptResult{Final: true, Transcript: "utterance A"}},
		{Type: ServerAddPartialTranscript, Transcript: &TranscriptResult{Transcript: "utterance b"}},
	}
	for _, msg := range sequence {
		d.dispatch(msg)
	}

	expected := []string{"partial:utterance a", "final:utterance A", "partial:utterance b"}
	if len(got) != len(expected) {
		t.Fatalf("Expected %d deliveries, got %d: %v", len(expected), len(got), got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Delivery %d: expected %q, got %q", i, expected[i], got[i])
		}
	}
}

func TestDispatchRegistrationOrder(t *testing.T) {
	d := newDispatcher(testLogger())

	var got []int
	for i := 0; i < 3; i++ {
		i := i
		d.on(ServerAddTranscript, func(*ServerMessage) { got = append(got, i) })
	}

	d.dispatch(&ServerMessage{Type: ServerAddTranscript, Transcript: &TranscriptResult{Final: true}})

	if len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Errorf("Expected handlers to run in registration order, got %v", got)
	}
}

func TestDispatchEmptyFinalIsDelivered(t *testing.T) {
	d := newDispatcher(testLogger())

	delivered := false
	d.on(ServerAddTranscript, func(msg *ServerMessage) {
		delivered = true
		if msg.Transcript.Transcript != "" {
			t.Errorf("Expected empty transcript, got %q", msg.Transcript.Transcript)
		}
	})

	d.dispatch(&ServerMessage{Type: ServerAddTranscript, Transcript: &TranscriptResult{Final: true}})

	if !delivered {
		t.Errorf("Expected empty-text final transcript to reach its handler")
	}
}

func TestDispatchRecoversPanickingHandler(t *testing.T) {
	d := newDispatcher(testLogger())

	var got []string
	d.on(ServerAddTranscript, func(*ServerMessage) { panic("bad handler") })
	d.on(ServerAddTranscript, func(*ServerMessage) { got = append(got, "second") })

	d.dispatch(&ServerMessage{Type: ServerAddTranscript, Transcript: &TranscriptResult{Final: true}})
	d.dispatch(&ServerMessage{Type: ServerAddTranscript, Transcript: &TranscriptResult{Final: true}})

	if len(got) != 2 {
		t.Errorf("Expected subsequent handlers and messages to still be delivered, got %v", got)
	}
}

func TestDispatchNilHandlerIgnored(t *testing.T) {
	d := newDispatcher(testLogger())
	d.on(ServerAddTranscript, nil)
	// Must not panic.
	d.dispatch(&ServerMessage{Type: ServerAddTranscript, Transcript: &TranscriptResult{Final: true}})
}
