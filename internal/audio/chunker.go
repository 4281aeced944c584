package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/Shunyalabsai/rt-client-go/rt"
)

// ChunkSize returns the payload size in bytes for one chunk of the given
// duration, aligned to whole samples.
func ChunkSize(encoding rt.AudioEncoding, sampleRate int, d time.Duration) (int, error) {
	bytesPerSample := encoding.BytesPerSample()
	if bytesPerSample == 0 {
		return 0, fmt.Errorf("unsupported audio encoding: %q", encoding)
	}
	if sampleRate <= 0 {
		return 0, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if d <= 0 {
		return 0, fmt.Errorf("chunk duration must be positive, got %v", d)
	}

	samples := int(float64(sampleRate) * d.Seconds())
	if samples < 1 {
		samples = 1
	}
	return samples * bytesPerSample, nil
}

// BytesToSamples converts little-endian 16-bit PCM bytes to samples. A
// trailing odd byte is dropped.
func BytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// SamplesToBytes converts samples to little-endian 16-bit PCM bytes.
func SamplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}

// PacedSource wraps a source and paces chunk delivery to real time, so a
// pre-recorded file is streamed at the rate a live microphone would
// produce it.
type PacedSource struct {
	src      rt.Source
	interval time.Duration
	next     time.Time
}

// NewPacedSource paces src to one chunk per interval. The first chunk is
// delivered immediately.
func NewPacedSource(src rt.Source, interval time.Duration) *PacedSource {
	return &PacedSource{src: src, interval: interval}
}

// Next returns the next chunk, sleeping as needed to hold the pace.
func (p *PacedSource) Next(ctx context.Context) ([]byte, error) {
	if !p.next.IsZero() {
		if wait := time.Until(p.next); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}
	}
	p.next = time.Now().Add(p.interval)
	return p.src.Next(ctx)
}
