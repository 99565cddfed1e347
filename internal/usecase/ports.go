package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"conference-assistant/internal/domain"
)

// VectorIndex stores text chunks with metadata and answers scoped
// similarity queries.
type VectorIndex interface {
	Add(ctx context.Context, texts []string, metadata []map[string]string) error
	Search(ctx context.Context, query string, filter map[string]string, k int) ([]domain.SearchHit, error)
	Delete(ctx context.Context, filter map[string]string) (int, error)
}

type ConferenceStore interface {
	Get(ctx context.Context, id string) (domain.Conference, error)
	Put(ctx context.Context, c domain.Conference) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.Conference, error)
}

type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

type TextSplitter interface {
	Split(text string) ([]string, error)
}

// AudioConverter produces a recognition-ready WAV file. release must be
// called once the file is no longer needed.
type AudioConverter interface {
	ToWAV(ctx context.Context, src string) (path string, release func(), err error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (string, error)
}

type Translator interface {
	Detect(ctx context.Context, text string) (string, error)
	Translate(ctx context.Context, text, source, target string) (string, error)
}

type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
}

var newUUID = func() string {
	return uuid.NewString()
}

// newConferenceID returns a time-ordered id.
var newConferenceID = func() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

var now = func() time.Time {
	return time.Now().UTC()
}
