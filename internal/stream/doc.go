// Package stream drives complete transcription runs: it pumps audio from
// a source into a session, runs utterance endpoint detection on the
// outgoing chunks, surfaces transcript events to callbacks, and publishes
// final transcripts to the event bus.
package stream
