// Package server provides the local HTTP server that hosts the scripted
// transcription endpoint for development, with health, session, and
// Prometheus metrics routes.
package server
