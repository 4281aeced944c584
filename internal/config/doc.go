// Package config provides configuration loading and validation for the
// transcription client. It handles YAML-based configuration with
// per-section validation and environment overrides for credentials.
package config
