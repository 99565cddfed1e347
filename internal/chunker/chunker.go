// Package chunker splits text into fixed-size overlapping chunks.
package chunker

import (
	"errors"
	"fmt"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of characters shared by adjacent chunks.
const DefaultChunkOverlap = 200

// ErrInvalidParameters is returned when size and overlap cannot make progress.
var ErrInvalidParameters = errors.New("chunker: invalid parameters")

// Split cuts text into chunks of at most size runes, each sharing overlap
// runes with its predecessor. Empty text yields no chunks.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidParameters, size, overlap)
	}
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	step := size - overlap
	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks, nil
}

// Splitter carries a fixed configuration for Split.
type Splitter struct {
	size    int
	overlap int
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.size = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// New returns a Splitter. It fails if the resulting overlap is not smaller
// than the chunk size.
func New(opts ...Option) (*Splitter, error) {
	s := &Splitter{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
	for _, opt := range opts {
		opt(s)
	}
	if s.overlap >= s.size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidParameters, s.size, s.overlap)
	}
	return s, nil
}

func (s *Splitter) Split(text string) ([]string, error) {
	return Split(text, s.size, s.overlap)
}
