// Package rt provides a client for the Shunyalabs real-time speech
// transcription WebSocket API. It manages the session lifecycle, streams
// audio as binary frames, and dispatches partial/final transcript events
// to registered handlers.
package rt
