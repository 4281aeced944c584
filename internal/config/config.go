package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// APIKeyEnv is the environment variable that overrides the configured API
// key, so credentials can stay out of config files.
const APIKeyEnv = "SHUNYALABS_API_KEY"

// Config represents the complete client configuration
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Audio         AudioConfig         `yaml:"audio"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Endpointing   EndpointingConfig   `yaml:"endpointing"`
	Events        EventsConfig        `yaml:"events"`
	HTTP          HTTPConfig          `yaml:"http"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServiceConfig contains transcription service connection parameters
type ServiceConfig struct {
	URL                    string  `yaml:"url"`
	APIKey                 string  `yaml:"api_key"`
	StartTimeout           float64 `yaml:"start_timeout"`             // seconds
	EndOfTranscriptTimeout float64 `yaml:"end_of_transcript_timeout"` // seconds
}

// AudioConfig contains audio input parameters
type AudioConfig struct {
	Encoding      string  `yaml:"encoding"`
	SampleRate    int     `yaml:"sample_rate"`
	Channels      int     `yaml:"channels"`
	ChunkDuration float64 `yaml:"chunk_duration"` // seconds
	Realtime      bool    `yaml:"realtime"`       // pace chunks to real time
}

// TranscriptionConfig contains transcription behavior parameters
type TranscriptionConfig struct {
	Language       string  `yaml:"language"`
	OperatingPoint string  `yaml:"operating_point"`
	EnablePartials bool    `yaml:"enable_partials"`
	MaxDelay       float64 `yaml:"max_delay"` // seconds
}

// EndpointingConfig contains utterance endpoint detection parameters
type EndpointingConfig struct {
	Enabled            bool    `yaml:"enabled"`
	Threshold          float32 `yaml:"threshold"`
	Smoothing          float32 `yaml:"smoothing"`
	MinSpeechDuration  float64 `yaml:"min_speech_duration"`  // seconds
	MinSilenceDuration float64 `yaml:"min_silence_duration"` // seconds
}

// EventsConfig contains transcript event publishing parameters
type EventsConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// HTTPConfig contains the local HTTP server configuration used for health
// and metrics endpoints
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file. An API key present in
// APIKeyEnv overrides the configured one.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if key := os.Getenv(APIKeyEnv); key != "" {
		config.Service.APIKey = key
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Service.Validate(); err != nil {
		return fmt.Errorf("service config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Endpointing.Validate(); err != nil {
		return fmt.Errorf("endpointing config: %w", err)
	}

	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("events config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates service configuration
func (s *ServiceConfig) Validate() error {
	if s.URL == "" {
		return fmt.Errorf("url cannot be empty")
	}

	if s.APIKey == "" {
		return fmt.Errorf("api_key cannot be empty (set it in the config or via %s)", APIKeyEnv)
	}

	if s.StartTimeout < 0 {
		return fmt.Errorf("start_timeout cannot be negative, got %f", s.StartTimeout)
	}

	if s.EndOfTranscriptTimeout < 0 {
		return fmt.Errorf("end_of_transcript_timeout cannot be negative, got %f", s.EndOfTranscriptTimeout)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	validEncodings := map[string]bool{"pcm_s16le": true, "pcm_f32le": true, "mulaw": true}
	if !validEncodings[a.Encoding] {
		return fmt.Errorf("encoding must be one of [pcm_s16le, pcm_f32le, mulaw], got '%s'", a.Encoding)
	}

	if a.SampleRate < 8000 || a.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", a.SampleRate)
	}

	if a.Channels < 0 {
		return fmt.Errorf("channels cannot be negative, got %d", a.Channels)
	}

	if a.ChunkDuration <= 0 {
		return fmt.Errorf("chunk_duration must be positive, got %f", a.ChunkDuration)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if t.Language == "" {
		return fmt.Errorf("language cannot be empty")
	}

	if t.MaxDelay < 0 {
		return fmt.Errorf("max_delay cannot be negative, got %f", t.MaxDelay)
	}

	return nil
}

// Validate validates endpointing configuration
func (e *EndpointingConfig) Validate() error {
	if !e.Enabled {
		return nil
	}

	if e.Threshold < 0 || e.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", e.Threshold)
	}

	if e.Smoothing <= 0 || e.Smoothing > 1 {
		return fmt.Errorf("smoothing must be in (0, 1], got %f", e.Smoothing)
	}

	if e.MinSpeechDuration <= 0 {
		return fmt.Errorf("min_speech_duration must be positive, got %f", e.MinSpeechDuration)
	}

	if e.MinSilenceDuration <= 0 {
		return fmt.Errorf("min_silence_duration must be positive, got %f", e.MinSilenceDuration)
	}

	return nil
}

// Validate validates events configuration
func (e *EventsConfig) Validate() error {
	if !e.Enabled {
		return nil
	}

	if len(e.Brokers) == 0 {
		return fmt.Errorf("brokers cannot be empty when events are enabled")
	}

	if e.Topic == "" {
		return fmt.Errorf("topic cannot be empty when events are enabled")
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetStartTimeout returns the start timeout as a time.Duration
func (s *ServiceConfig) GetStartTimeout() time.Duration {
	return time.Duration(s.StartTimeout * float64(time.Second))
}

// GetEndOfTranscriptTimeout returns the end-of-transcript timeout as a
// time.Duration
func (s *ServiceConfig) GetEndOfTranscriptTimeout() time.Duration {
	return time.Duration(s.EndOfTranscriptTimeout * float64(time.Second))
}

// GetChunkDuration returns the chunk duration as a time.Duration
func (a *AudioConfig) GetChunkDuration() time.Duration {
	return time.Duration(a.ChunkDuration * float64(time.Second))
}

// GetMinSpeechDuration returns the minimum speech duration as a time.Duration
func (e *EndpointingConfig) GetMinSpeechDuration() time.Duration {
	return time.Duration(e.MinSpeechDuration * float64(time.Second))
}

// GetMinSilenceDuration returns the minimum silence duration as a time.Duration
func (e *EndpointingConfig) GetMinSilenceDuration() time.Duration {
	return time.Duration(e.MinSilenceDuration * float64(time.Second))
}
