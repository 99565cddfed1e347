package domain

import "errors"

var (
	// ErrNotFound is returned when a conference or document id is unknown.
	ErrNotFound = errors.New("not found")
	// ErrUnintelligibleAudio is returned by transcribers when speech was not recognised.
	ErrUnintelligibleAudio = errors.New("could not understand audio")
	// ErrUnsupportedFormat is returned for files no extractor can read.
	ErrUnsupportedFormat = errors.New("unsupported format")
)
