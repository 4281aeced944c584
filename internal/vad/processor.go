package vad

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// maxEnergy is the RMS amplitude treated as full-scale speech when
// normalizing 16-bit PCM energy to the 0-1 range.
const maxEnergy = 10000.0

// DetectorConfig configures endpoint detection.
type DetectorConfig struct {
	// Threshold is the normalized energy above which a window counts as
	// speech, in the 0-1 range.
	Threshold float32

	// Smoothing is the exponential smoothing factor applied to window
	// energy; 1 disables smoothing.
	Smoothing float32

	// MinSpeech is the amount of audible speech required before an
	// endpoint may fire at all.
	MinSpeech time.Duration

	// MinSilence is the trailing silence that marks the end of an
	// utterance.
	MinSilence time.Duration
}

// Detector detects utterance endpoints in a PCM stream using RMS energy.
// An endpoint fires when a stretch of speech is followed by enough
// silence; the caller typically reacts by requesting an early utterance
// flush from the transcription server.
type Detector struct {
	config DetectorConfig

	mu          sync.RWMutex
	lastEnergy  float32
	speechDur   time.Duration
	silenceDur  time.Duration
	totalWindow uint64
	voiceWindow uint64
	endpoints   uint64
}

// Result describes one processed audio window.
type Result struct {
	Energy   float32 // smoothed normalized energy, 0-1
	HasVoice bool
	Endpoint bool // an utterance just ended
}

// DetectorStats represents detector statistics.
type DetectorStats struct {
	TotalWindows    uint64  `json:"total_windows"`
	VoiceWindows    uint64  `json:"voice_windows"`
	VoicePercentage float64 `json:"voice_percentage"`
	Endpoints       uint64  `json:"endpoints"`
	Threshold       float32 `json:"threshold"`
}

// NewDetector creates an endpoint detector.
func NewDetector(config DetectorConfig) (*Detector, error) {
	if config.Threshold < 0 || config.Threshold > 1 {
		return nil, fmt.Errorf("threshold must be between 0 and 1, got %f", config.Threshold)
	}
	if config.Smoothing <= 0 || config.Smoothing > 1 {
		return nil, fmt.Errorf("smoothing must be in (0, 1], got %f", config.Smoothing)
	}
	if config.MinSpeech <= 0 {
		return nil, fmt.Errorf("min speech duration must be positive, got %v", config.MinSpeech)
	}
	if config.MinSilence <= 0 {
		return nil, fmt.Errorf("min silence duration must be positive, got %v", config.MinSilence)
	}

	return &Detector{config: config}, nil
}

// Process analyzes one window of samples and reports whether an utterance
// endpoint was just crossed. Windows must be fed in stream order.
func (d *Detector) Process(samples []int16, sampleRate int) (*Result, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("empty sample window")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	energy := normalizedEnergy(samples)
	if d.totalWindow > 0 {
		energy = d.config.Smoothing*energy + (1-d.config.Smoothing)*d.lastEnergy
	}
	d.lastEnergy = energy

	hasVoice := energy >= d.config.Threshold
	windowDur := time.Duration(float64(len(samples)) / float64(sampleRate) * float64(time.Second))

	d.totalWindow++
	if hasVoice {
		d.voiceWindow++
		d.speechDur += windowDur
		d.silenceDur = 0
	} else if d.speechDur > 0 {
		d.silenceDur += windowDur
	}

	endpoint := false
	if d.speechDur >= d.config.MinSpeech && d.silenceDur >= d.config.MinSilence {
		endpoint = true
		d.endpoints++
		d.speechDur = 0
		d.silenceDur = 0
	}

	return &Result{
		Energy:   energy,
		HasVoice: hasVoice,
		Endpoint: endpoint,
	}, nil
}

// normalizedEnergy computes RMS energy scaled to the 0-1 range.
func normalizedEnergy(samples []int16) float32 {
	var energy float64
	for _, sample := range samples {
		energy += float64(sample) * float64(sample)
	}
	energy = math.Sqrt(energy / float64(len(samples)))

	normalized := energy / maxEnergy
	if normalized > 1.0 {
		normalized = 1.0
	}
	return float32(normalized)
}

// GetStats returns current detector statistics.
func (d *Detector) GetStats() DetectorStats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	voicePercentage := float64(0)
	if d.totalWindow > 0 {
		voicePercentage = float64(d.voiceWindow) / float64(d.totalWindow) * 100
	}

	return DetectorStats{
		TotalWindows:    d.totalWindow,
		VoiceWindows:    d.voiceWindow,
		VoicePercentage: voicePercentage,
		Endpoints:       d.endpoints,
		Threshold:       d.config.Threshold,
	}
}

// UpdateThreshold updates the speech energy threshold.
func (d *Detector) UpdateThreshold(threshold float32) error {
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", threshold)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.config.Threshold = threshold
	return nil
}

// Reset clears the detector state and statistics.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastEnergy = 0
	d.speechDur = 0
	d.silenceDur = 0
	d.totalWindow = 0
	d.voiceWindow = 0
	d.endpoints = 0
}
