package vad

import (
	"testing"
	"time"
)

func speechWindow(n int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 9000
		} else {
			samples[i] = -9000
		}
	}
	return samples
}

func silenceWindow(n int) []int16 {
	return make([]int16, n)
}

func testConfig() DetectorConfig {
	return DetectorConfig{
		Threshold:  0.5,
		Smoothing:  1, // no smoothing, deterministic windows
		MinSpeech:  100 * time.Millisecond,
		MinSilence: 100 * time.Millisecond,
	}
}

func TestNewDetectorValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DetectorConfig)
	}{
		{"threshold above 1", func(c *DetectorConfig) { c.Threshold = 1.5 }},
		{"threshold below 0", func(c *DetectorConfig) { c.Threshold = -0.1 }},
		{"zero smoothing", func(c *DetectorConfig) { c.Smoothing = 0 }},
		{"zero min speech", func(c *DetectorConfig) { c.MinSpeech = 0 }},
		{"zero min silence", func(c *DetectorConfig) { c.MinSilence = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig()
			tt.mutate(&config)
			if _, err := NewDetector(config); err == nil {
				t.Errorf("Expected error but got none")
			}
		})
	}

	if _, err := NewDetector(testConfig()); err != nil {
		t.Errorf("Expected no error for valid config but got: %v", err)
	}
}

func TestProcessClassifiesWindows(t *testing.T) {
	detector, err := NewDetector(testConfig())
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}

	// 50ms windows at 16kHz.
	result, err := detector.Process(speechWindow(800), 16000)
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}
	if !result.HasVoice {
		t.Errorf("Expected loud window to classify as voice, energy %f", result.Energy)
	}

	result, err = detector.Process(silenceWindow(800), 16000)
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}
	if result.HasVoice {
		t.Errorf("Expected silent window to classify as silence, energy %f", result.Energy)
	}
}

func TestEndpointAfterSpeechThenSilence(t *testing.T) {
	detector, err := NewDetector(testConfig())
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}

	// Three 50ms speech windows satisfy MinSpeech.
	for i := 0; i < 3; i++ {
		result, err := detector.Process(speechWindow(800), 16000)
		if err != nil {
			t.Fatalf("Speech window %d: expected no error but got: %v", i, err)
		}
		if result.Endpoint {
			t.Errorf("Speech window %d fired an endpoint", i)
		}
	}

	// First silence window: 50ms of silence, below MinSilence.
	result, err := detector.Process(silenceWindow(800), 16000)
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}
	if result.Endpoint {
		t.Errorf("Endpoint fired before the silence bound")
	}

	// Second silence window crosses MinSilence.
	result, err = detector.Process(silenceWindow(800), 16000)
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}
	if !result.Endpoint {
		t.Errorf("Expected endpoint after speech followed by enough silence")
	}

	stats := detector.GetStats()
	if stats.Endpoints != 1 {
		t.Errorf("Expected 1 endpoint in stats, got %d", stats.Endpoints)
	}
}

func TestSilenceOnlyNeverEndpoints(t *testing.T) {
	detector, err := NewDetector(testConfig())
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}

	for i := 0; i < 20; i++ {
		result, err := detector.Process(silenceWindow(800), 16000)
		if err != nil {
			t.Fatalf("Expected no error but got: %v", err)
		}
		if result.Endpoint {
			t.Fatalf("Endpoint fired with no speech at window %d", i)
		}
	}
}

func TestProcessInputValidation(t *testing.T) {
	detector, err := NewDetector(testConfig())
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}

	if _, err := detector.Process(nil, 16000); err == nil {
		t.Errorf("Expected error for empty window")
	}
	if _, err := detector.Process(speechWindow(800), 0); err == nil {
		t.Errorf("Expected error for zero sample rate")
	}
}

func TestUpdateThresholdAndReset(t *testing.T) {
	detector, err := NewDetector(testConfig())
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}

	if err := detector.UpdateThreshold(1.5); err == nil {
		t.Errorf("Expected error for out-of-range threshold")
	}
	if err := detector.UpdateThreshold(0.2); err != nil {
		t.Errorf("Expected no error but got: %v", err)
	}
	if got := detector.GetStats().Threshold; got != 0.2 {
		t.Errorf("Expected threshold 0.2, got %f", got)
	}

	if _, err := detector.Process(speechWindow(800), 16000); err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}
	detector.Reset()
	if stats := detector.GetStats(); stats.TotalWindows != 0 || stats.VoiceWindows != 0 {
		t.Errorf("Expected cleared stats after reset, got %+v", stats)
	}
}
