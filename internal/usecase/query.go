package usecase

import (
	"context"
	"errors"
	"strings"

	"conference-assistant/internal/domain"
)

const retrievalK = 5

// User-facing fallbacks. The query pipeline returns these instead of errors.
const (
	NotFoundAnswer = "I couldn't find any information about that in the provided documents."
	ErrorAnswer    = "Sorry, there was an error processing your question. Please try again later."
)

// QueryService answers questions and summarizes documents over the vector
// index, in the caller's language.
type QueryService struct {
	index      VectorIndex
	llm        LLMClient
	translator Translator
	model      string
}

// QueryInput scopes a question to one document or conference. ScopeKey
// defaults to document_id.
type QueryInput struct {
	ScopeKey string
	ScopeID  string
	Question string
	Language string
}

func NewQueryService(index VectorIndex, llm LLMClient, translator Translator, model string) (*QueryService, error) {
	if index == nil {
		return nil, errors.New("usecase: vector index must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if translator == nil {
		return nil, errors.New("usecase: translator must not be nil")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("usecase: model must not be empty")
	}
	return &QueryService{index: index, llm: llm, translator: translator, model: model}, nil
}

// Answer runs detect, translate, retrieve, generate and translate back. Only
// invalid input is reported as an error; pipeline failures yield ErrorAnswer.
func (s *QueryService) Answer(ctx context.Context, in QueryInput) (string, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return "", newError(ErrorInvalidInput, "empty_question", nil)
	}
	scopeID := strings.TrimSpace(in.ScopeID)
	if scopeID == "" {
		return "", newError(ErrorInvalidInput, "empty_scope_id", nil)
	}
	scopeKey := strings.TrimSpace(in.ScopeKey)
	if scopeKey == "" {
		scopeKey = domain.MetaDocumentID
	}
	target := domain.NormalizeLanguage(in.Language)

	answer, err := s.answer(ctx, scopeKey, scopeID, question, target)
	if err != nil {
		logger(ctx).Error("query pipeline failed", scopeKey, scopeID, "err", err)
		return s.localize(ctx, ErrorAnswer, target), nil
	}
	return answer, nil
}

func (s *QueryService) answer(ctx context.Context, scopeKey, scopeID, question, target string) (string, error) {
	detected, err := s.translator.Detect(ctx, question)
	if err != nil {
		return "", upstreamError("detect", err)
	}
	pivotQuestion := question
	if domain.NormalizeLanguage(detected) != domain.PivotLanguage {
		pivotQuestion, err = s.translator.Translate(ctx, question, detected, domain.PivotLanguage)
		if err != nil {
			return "", upstreamError("translate_question", err)
		}
	}

	hits, err := s.index.Search(ctx, pivotQuestion, map[string]string{scopeKey: scopeID}, retrievalK)
	if err != nil {
		return "", newError(ErrorInternal, "index_search_error", err)
	}
	if len(hits) == 0 {
		return s.translateOut(ctx, NotFoundAnswer, target)
	}

	raw, err := s.llm.Chat(ctx, s.model, buildAnswerMessages(pivotQuestion, hits))
	if err != nil {
		return "", upstreamError("openai", err)
	}
	return s.translateOut(ctx, strings.TrimSpace(raw), target)
}

// SummarizeDocument summarizes every chunk of a document. It follows the
// same containment policy as Answer.
func (s *QueryService) SummarizeDocument(ctx context.Context, documentID, language string) (string, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return "", newError(ErrorInvalidInput, "empty_document_id", nil)
	}
	target := domain.NormalizeLanguage(language)

	summary, err := s.summarize(ctx, documentID, target)
	if err != nil {
		logger(ctx).Error("document summary failed", "document_id", documentID, "err", err)
		return s.localize(ctx, ErrorAnswer, target), nil
	}
	return summary, nil
}

func (s *QueryService) summarize(ctx context.Context, documentID, target string) (string, error) {
	hits, err := s.index.Search(ctx, "", map[string]string{domain.MetaDocumentID: documentID}, 0)
	if err != nil {
		return "", newError(ErrorInternal, "index_search_error", err)
	}
	if len(hits) == 0 {
		return s.translateOut(ctx, NotFoundAnswer, target)
	}
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Chunk.Text
	}

	raw, err := s.llm.Chat(ctx, s.model, buildSummaryMessages(strings.Join(texts, "\n")))
	if err != nil {
		return "", upstreamError("openai", err)
	}
	return s.translateOut(ctx, strings.TrimSpace(raw), target)
}

func (s *QueryService) translateOut(ctx context.Context, text, target string) (string, error) {
	if target == domain.PivotLanguage {
		return text, nil
	}
	out, err := s.translator.Translate(ctx, text, domain.PivotLanguage, target)
	if err != nil {
		return "", upstreamError("translate_answer", err)
	}
	return out, nil
}

// localize translates a fallback message, returning it untranslated on failure.
func (s *QueryService) localize(ctx context.Context, text, target string) string {
	out, err := s.translateOut(ctx, text, target)
	if err != nil {
		logger(ctx).Warn("failed to translate fallback message", "language", target, "err", err)
		return text
	}
	return out
}
