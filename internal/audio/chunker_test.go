package audio

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/Shunyalabsai/rt-client-go/rt"
)

func TestChunkSize(t *testing.T) {
	tests := []struct {
		name        string
		encoding    rt.AudioEncoding
		sampleRate  int
		duration    time.Duration
		expected    int
		expectError bool
	}{
		{
			name:       "100ms of pcm_s16le at 16kHz",
			encoding:   rt.EncodingPCMS16LE,
			sampleRate: 16000,
			duration:   100 * time.Millisecond,
			expected:   3200,
		},
		{
			name:       "100ms of pcm_f32le at 16kHz",
			encoding:   rt.EncodingPCMF32LE,
			sampleRate: 16000,
			duration:   100 * time.Millisecond,
			expected:   6400,
		},
		{
			name:       "20ms of mulaw at 8kHz",
			encoding:   rt.EncodingMuLaw,
			sampleRate: 8000,
			duration:   20 * time.Millisecond,
			expected:   160,
		},
		{
			name:        "unsupported encoding",
			encoding:    "opus",
			sampleRate:  16000,
			duration:    time.Second,
			expectError: true,
		},
		{
			name:        "zero duration",
			encoding:    rt.EncodingPCMS16LE,
			sampleRate:  16000,
			expectError: true,
		},
		{
			name:        "zero sample rate",
			encoding:    rt.EncodingPCMS16LE,
			duration:    time.Second,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ChunkSize(tt.encoding, tt.sampleRate, tt.duration)
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error but got: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected chunk size %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestSampleConversionRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 12345}
	data := SamplesToBytes(samples)
	back := BytesToSamples(data)

	if len(back) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(back))
	}
	for i := range samples {
		if back[i] != samples[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, samples[i], back[i])
		}
	}
}

func TestBytesToSamplesDropsTrailingByte(t *testing.T) {
	if got := BytesToSamples([]byte{0x01, 0x02, 0x03}); len(got) != 1 {
		t.Errorf("Expected 1 sample from 3 bytes, got %d", len(got))
	}
}

func TestPacedSourceDeliversAllChunks(t *testing.T) {
	data := bytes.Repeat([]byte{0xAA}, 12)
	paced := NewPacedSource(rt.NewFileSource(bytes.NewReader(data), 4), time.Millisecond)

	var chunks int
	for {
		_, err := paced.Next(context.Background())
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Expected no error but got: %v", err)
		}
		chunks++
	}
	if chunks != 3 {
		t.Errorf("Expected 3 chunks, got %d", chunks)
	}
}

func TestPacedSourceCancellation(t *testing.T) {
	data := bytes.Repeat([]byte{0xAA}, 8)
	paced := NewPacedSource(rt.NewFileSource(bytes.NewReader(data), 4), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := paced.Next(ctx); err != nil {
		t.Fatalf("First chunk: expected no error but got: %v", err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if _, err := paced.Next(ctx); err != context.Canceled {
		t.Errorf("Expected context.Canceled during pacing wait, got %v", err)
	}
}
