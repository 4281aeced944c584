package rt

import (
	"context"
	"fmt"
	"io"
)

// DefaultChunkSize is the audio payload size used by FileSource when no
// chunk size is configured.
const DefaultChunkSize = 4096

// Source yields audio payload chunks for streaming. A Source is finite and
// not restartable: once Next returns io.EOF the stream is exhausted.
type Source interface {
	// Next returns the next audio chunk, io.EOF when the source is
	// exhausted, or any other error to abort the stream.
	Next(ctx context.Context) ([]byte, error)
}

// FileSource adapts an io.Reader into a Source that yields fixed-size
// chunks. The final chunk may be shorter.
type FileSource struct {
	r         io.Reader
	chunkSize int
}

// NewFileSource wraps r. A non-positive chunkSize falls back to
// DefaultChunkSize.
func NewFileSource(r io.Reader, chunkSize int) *FileSource {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &FileSource{r: r, chunkSize: chunkSize}
}

// Next reads up to one chunk from the underlying reader.
func (s *FileSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := make([]byte, s.chunkSize)
	n, err := io.ReadFull(s.r, buf)
	switch {
	case err == io.EOF:
		return nil, io.EOF
	case err == io.ErrUnexpectedEOF:
		return buf[:n], nil
	case err != nil:
		return nil, fmt.Errorf("read audio source: %w", err)
	}
	return buf, nil
}
