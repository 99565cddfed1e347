package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"conference-assistant/internal/domain"
)

const (
	keyPointCount = 5

	unintelligibleText      = "Could not understand audio"
	recognitionFailedPrefix = "Could not request results from speech recognition service: "
)

// ConferenceDeps lists the collaborators of a ConferenceService. Index and
// Translator are optional.
type ConferenceDeps struct {
	Store         ConferenceStore
	Converter     AudioConverter
	Transcriber   Transcriber
	Index         VectorIndex
	Translator    Translator
	RecordingsDir string
}

// ConferenceService owns the conference lifecycle. All store access is
// serialized behind mu.
type ConferenceService struct {
	mu            sync.Mutex
	store         ConferenceStore
	converter     AudioConverter
	transcriber   Transcriber
	index         VectorIndex
	translator    Translator
	recordingsDir string
}

// RecordOutput is the result of an uploaded audio segment.
type RecordOutput struct {
	Text      string
	Recording string
}

func NewConferenceService(d ConferenceDeps) (*ConferenceService, error) {
	if d.Store == nil {
		return nil, errors.New("usecase: conference store must not be nil")
	}
	if d.Converter == nil {
		return nil, errors.New("usecase: audio converter must not be nil")
	}
	if d.Transcriber == nil {
		return nil, errors.New("usecase: transcriber must not be nil")
	}
	dir := strings.TrimSpace(d.RecordingsDir)
	if dir == "" {
		return nil, errors.New("usecase: recordings dir must not be empty")
	}
	return &ConferenceService{
		store:         d.Store,
		converter:     d.Converter,
		transcriber:   d.Transcriber,
		index:         d.Index,
		translator:    d.Translator,
		recordingsDir: dir,
	}, nil
}

func (s *ConferenceService) Start(ctx context.Context, parentLanguage string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := domain.Conference{
		ID:             newConferenceID(),
		ParentLanguage: domain.NormalizeLanguage(parentLanguage),
		StartTime:      now(),
		Segments:       []domain.Segment{},
	}
	if err := s.store.Put(ctx, c); err != nil {
		return "", newError(ErrorInternal, "store_write_error", err)
	}
	logger(ctx).Info("conference started", "conference_id", c.ID, "language", c.ParentLanguage)
	return c.ID, nil
}

func (s *ConferenceService) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.load(ctx, id)
	if err == nil {
		return true, nil
	}
	var ucErr *Error
	if errors.As(err, &ucErr) && ucErr.Code == ErrorNotFound {
		return false, nil
	}
	return false, err
}

// load must be called with mu held.
func (s *ConferenceService) load(ctx context.Context, id string) (domain.Conference, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Conference{}, newError(ErrorInvalidInput, "empty_conference_id", nil)
	}
	c, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Conference{}, newError(ErrorNotFound, "conference_not_found", err)
		}
		return domain.Conference{}, newError(ErrorInternal, "store_read_error", err)
	}
	return c, nil
}

// RecordSegment appends a transcribed segment and indexes its text under the
// conference id. Indexing is best-effort and happens under mu so a concurrent
// Delete cannot leave index entries behind.
func (s *ConferenceService) RecordSegment(ctx context.Context, id, text string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	c.Segments = append(c.Segments, domain.Segment{Text: text, Timestamp: ts})
	if err := s.store.Put(ctx, c); err != nil {
		return newError(ErrorInternal, "store_write_error", err)
	}
	s.indexSegment(ctx, id, text)
	return nil
}

// indexSegment must be called with mu held.
func (s *ConferenceService) indexSegment(ctx context.Context, id, text string) {
	if s.index == nil || strings.TrimSpace(text) == "" {
		return
	}
	meta := []map[string]string{{domain.MetaConferenceID: id}}
	if err := s.index.Add(ctx, []string{text}, meta); err != nil {
		logger(ctx).Warn("failed to index conference segment", "conference_id", id, "err", err)
	}
}

// Summarize returns the cached summary or builds, caches and persists an
// extractive one from the first sentences of the transcript.
func (s *ConferenceService) Summarize(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.load(ctx, id)
	if err != nil {
		return "", err
	}
	if c.Summary != nil {
		return *c.Summary, nil
	}
	summary := extractiveSummary(c.Segments)
	c.Summary = &summary
	if err := s.store.Put(ctx, c); err != nil {
		return "", newError(ErrorInternal, "store_write_error", err)
	}
	return summary, nil
}

func extractiveSummary(segments []domain.Segment) string {
	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}
	points := strings.Split(strings.Join(texts, " "), ". ")
	if len(points) > keyPointCount {
		points = points[:keyPointCount]
	}

	var b strings.Builder
	b.WriteString("Conference Summary:\n")
	fmt.Fprintf(&b, "Duration: %d segments\n", len(segments))
	b.WriteString("Key Points:\n")
	for _, p := range points {
		fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(p))
	}
	return b.String()
}

// SummaryIn returns the conference summary translated to language. The
// cached summary is never replaced by a translation.
func (s *ConferenceService) SummaryIn(ctx context.Context, id, language string) (string, error) {
	summary, err := s.Summarize(ctx, id)
	if err != nil {
		return "", err
	}
	language = domain.NormalizeLanguage(language)
	if s.translator == nil || language == domain.PivotLanguage {
		return summary, nil
	}
	translated, err := s.translator.Translate(ctx, summary, domain.PivotLanguage, language)
	if err != nil {
		logger(ctx).Warn("failed to translate conference summary", "conference_id", id, "language", language, "err", err)
		return summary, nil
	}
	return translated, nil
}

func (s *ConferenceService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return newError(ErrorNotFound, "conference_not_found", err)
		}
		return newError(ErrorInternal, "store_delete_error", err)
	}

	files := removePrefixed(ctx, s.recordingsDir, id+"_")
	if s.index != nil {
		if _, err := s.index.Delete(ctx, map[string]string{domain.MetaConferenceID: id}); err != nil {
			logger(ctx).Warn("failed to remove conference transcript from index", "conference_id", id, "err", err)
		}
	}
	logger(ctx).Info("conference deleted", "conference_id", id, "recordings", files)
	return nil
}

// ListAll returns every conference ordered by start time.
func (s *ConferenceService) ListAll(ctx context.Context) ([]domain.ConferenceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, err := s.store.List(ctx)
	if err != nil {
		return nil, newError(ErrorInternal, "store_list_error", err)
	}
	out := make([]domain.ConferenceInfo, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Info())
	}
	return out, nil
}

// TranscribeSegment converts and transcribes audioPath, appends the text as a
// new segment and returns it. Recognition failures become sentinel text so a
// bad segment never ends the session.
func (s *ConferenceService) TranscribeSegment(ctx context.Context, id, audioPath string) (string, error) {
	s.mu.Lock()
	c, err := s.load(ctx, id)
	s.mu.Unlock()
	if err != nil {
		return "", err
	}

	text := s.recognize(ctx, audioPath, domain.RecognitionLanguage(c.ParentLanguage))
	if err := s.RecordSegment(ctx, id, text, now()); err != nil {
		return "", err
	}
	return text, nil
}

func (s *ConferenceService) recognize(ctx context.Context, audioPath, locale string) string {
	wav, release, err := s.converter.ToWAV(ctx, audioPath)
	if release != nil {
		defer release()
	}
	if err != nil {
		logger(ctx).Error("audio conversion failed", "path", audioPath, "err", err)
		return recognitionFailedPrefix + err.Error()
	}

	text, err := s.transcriber.Transcribe(ctx, wav, locale)
	switch {
	case errors.Is(err, domain.ErrUnintelligibleAudio):
		logger(ctx).Warn("speech recognition could not understand audio", "path", audioPath)
		return unintelligibleText
	case err != nil:
		logger(ctx).Error("speech recognition request failed", "path", audioPath, "err", err)
		return recognitionFailedPrefix + err.Error()
	}
	return text
}

// RecordAudio stores an uploaded segment as recordings/{id}_{filename} and
// transcribes it.
func (s *ConferenceService) RecordAudio(ctx context.Context, id, filename string, r io.Reader) (RecordOutput, error) {
	base, ok := cleanFilename(filename)
	if !ok {
		return RecordOutput{}, newError(ErrorInvalidInput, "invalid_filename", nil)
	}
	exists, err := s.Exists(ctx, id)
	if err != nil {
		return RecordOutput{}, err
	}
	if !exists {
		return RecordOutput{}, newError(ErrorNotFound, "conference_not_found", domain.ErrNotFound)
	}

	if err := os.MkdirAll(s.recordingsDir, 0o755); err != nil {
		return RecordOutput{}, newError(ErrorInternal, "recordings_dir_error", err)
	}
	name := id + "_" + base
	path := filepath.Join(s.recordingsDir, name)
	if err := writeFile(path, r); err != nil {
		return RecordOutput{}, newError(ErrorInternal, "recording_write_error", err)
	}

	text, err := s.TranscribeSegment(ctx, id, path)
	if err != nil {
		return RecordOutput{}, err
	}
	return RecordOutput{Text: text, Recording: name}, nil
}

// RecordingPath resolves a stored recording by file name.
func (s *ConferenceService) RecordingPath(name string) (string, error) {
	base, ok := cleanFilename(name)
	if !ok || base != name {
		return "", newError(ErrorInvalidInput, "invalid_filename", nil)
	}
	path := filepath.Join(s.recordingsDir, base)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", newError(ErrorNotFound, "recording_not_found", domain.ErrNotFound)
	}
	return path, nil
}
