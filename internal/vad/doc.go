// Package vad provides energy-based utterance endpoint detection.
// It processes PCM windows in stream order and signals when a stretch of
// speech is followed by enough silence to consider the utterance finished.
package vad
