package rt

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func TestFileSourceChunking(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 10)
	src := NewFileSource(bytes.NewReader(data), 4)

	var chunks [][]byte
	for {
		chunk, err := src.Next(context.Background())
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Expected no error but got: %v", err)
		}
		chunks = append(chunks, chunk)
	}

	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 4 || len(chunks[1]) != 4 {
		t.Errorf("Expected full chunks of 4 bytes, got %d and %d", len(chunks[0]), len(chunks[1]))
	}
	if len(chunks[2]) != 2 {
		t.Errorf("Expected final short chunk of 2 bytes, got %d", len(chunks[2]))
	}
}

func TestFileSourceEmptyReader(t *testing.T) {
	src := NewFileSource(bytes.NewReader(nil), 4)
	if _, err := src.Next(context.Background()); err != io.EOF {
		t.Errorf("Expected io.EOF for empty reader, got %v", err)
	}
}

func TestFileSourceDefaultChunkSize(t *testing.T) {
	data := make([]byte, DefaultChunkSize+1)
	src := NewFileSource(bytes.NewReader(data), 0)

	chunk, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}
	if len(chunk) != DefaultChunkSize {
		t.Errorf("Expected default chunk size %d, got %d", DefaultChunkSize, len(chunk))
	}
}

func TestFileSourceCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := NewFileSource(bytes.NewReader([]byte{1, 2, 3}), 4)
	if _, err := src.Next(ctx); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
