package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"conference-assistant/internal/domain"
)

type fakeIndex struct {
	texts     []string
	metadata  []map[string]string
	addErr    error
	searchErr error
	deleteErr error

	searchCalls int
	lastQuery   string
	lastFilter  map[string]string
	lastK       int
	deletes     []map[string]string
}

func (f *fakeIndex) Add(_ context.Context, texts []string, metadata []map[string]string) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.texts = append(f.texts, texts...)
	f.metadata = append(f.metadata, metadata...)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, query string, filter map[string]string, k int) ([]domain.SearchHit, error) {
	f.searchCalls++
	f.lastQuery, f.lastFilter, f.lastK = query, filter, k
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var hits []domain.SearchHit
	for i, text := range f.texts {
		if !metaMatches(f.metadata[i], filter) {
			continue
		}
		hits = append(hits, domain.SearchHit{Chunk: domain.Chunk{ID: fmt.Sprint(i), Text: text, Metadata: f.metadata[i]}})
		if k > 0 && len(hits) == k {
			break
		}
	}
	return hits, nil
}

func (f *fakeIndex) Delete(_ context.Context, filter map[string]string) (int, error) {
	f.deletes = append(f.deletes, filter)
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	var texts []string
	var metadata []map[string]string
	for i, m := range f.metadata {
		if metaMatches(m, filter) {
			continue
		}
		texts = append(texts, f.texts[i])
		metadata = append(metadata, m)
	}
	removed := len(f.texts) - len(texts)
	f.texts, f.metadata = texts, metadata
	return removed, nil
}

func metaMatches(meta, filter map[string]string) bool {
	for k, v := range filter {
		if meta[k] != v {
			return false
		}
	}
	return true
}

type fakeExtractor struct {
	text    string
	err     error
	gotPath string
}

func (f *fakeExtractor) Extract(_ context.Context, path string) (string, error) {
	f.gotPath = path
	return f.text, f.err
}

type fakeConverter struct {
	err      error
	released int
	gotSrc   string
}

func (f *fakeConverter) ToWAV(_ context.Context, src string) (string, func(), error) {
	f.gotSrc = src
	release := func() { f.released++ }
	if f.err != nil {
		return "", release, f.err
	}
	return src + ".wav", release, nil
}

type fakeTranscriber struct {
	text    string
	err     error
	gotPath string
	gotLang string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, path, lang string) (string, error) {
	f.gotPath, f.gotLang = path, lang
	return f.text, f.err
}

// fakeTranslator tags translated text with the target language.
type fakeTranslator struct {
	detected     string
	detectErr    error
	translateErr error
	calls        []string
}

func (f *fakeTranslator) Detect(context.Context, string) (string, error) {
	return f.detected, f.detectErr
}

func (f *fakeTranslator) Translate(_ context.Context, text, source, target string) (string, error) {
	f.calls = append(f.calls, source+">"+target)
	if f.translateErr != nil {
		return "", f.translateErr
	}
	if source == target {
		return text, nil
	}
	return "[" + target + "] " + text, nil
}

type fakeLLM struct {
	answer   string
	err      error
	calls    int
	model    string
	messages []domain.ChatMessage
}

func (f *fakeLLM) Chat(_ context.Context, model string, messages []domain.ChatMessage) (string, error) {
	f.calls++
	f.model, f.messages = model, messages
	return f.answer, f.err
}

// failingLLM fails the test if the pipeline reaches generation.
type failingLLM struct{ t *testing.T }

func (f failingLLM) Chat(context.Context, string, []domain.ChatMessage) (string, error) {
	f.t.Errorf("llm must not be called")
	return "", errors.New("unexpected call")
}

type statusErr struct{ code int }

func (e statusErr) Error() string       { return fmt.Sprintf("status %d", e.code) }
func (e statusErr) HTTPStatusCode() int { return e.code }

func pinUUID(t *testing.T, id string) {
	t.Helper()
	prev := newUUID
	newUUID = func() string { return id }
	t.Cleanup(func() { newUUID = prev })
}

func pinClock(t *testing.T, start time.Time, step time.Duration) {
	t.Helper()
	prev := now
	current := start
	now = func() time.Time {
		out := current
		current = current.Add(step)
		return out
	}
	t.Cleanup(func() { now = prev })
}

func requireCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, code, ucErr.Code, err.Error())
}
