package usecase

import (
	"fmt"
	"strings"

	"conference-assistant/internal/domain"
)

func buildAnswerMessages(question string, hits []domain.SearchHit) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildPersonaPrompt()},
		{Role: domain.RoleUser, Content: buildContextPrompt(question, hits)},
	}
}

func buildPersonaPrompt() string {
	return strings.Join([]string{
		"Role:",
		"You are a helpful assistant that helps parents understand their child's academic progress.",
		"",
		"Behavior Rules:",
		behaviorRules(),
	}, "\n")
}

func behaviorRules() string {
	return strings.Join([]string{
		"1) Answer only the question in this request.",
		"2) Use only the context provided in this request as a source.",
		"3) If you don't know the answer, just say that you don't know, don't try to make up an answer.",
		"4) Keep answers clear and suitable for a parent without an education background.",
	}, "\n")
}

func buildContextPrompt(question string, hits []domain.SearchHit) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		if text := strings.TrimSpace(h.Chunk.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return fmt.Sprintf(
		"Use the following pieces of context to answer the question at the end.\n\nContext:\n%s\n\nQuestion: %s\n\nAnswer:",
		strings.Join(parts, "\n\n"),
		strings.TrimSpace(question),
	)
}

func buildSummaryMessages(document string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildPersonaPrompt()},
		{Role: domain.RoleUser, Content: buildSummaryPrompt(document)},
	}
}

func buildSummaryPrompt(document string) string {
	return strings.Join([]string{
		"Please provide a comprehensive summary of the following academic document in English.",
		"Focus on the student's performance, grades, and any notable achievements or areas for improvement.",
		"",
		"Document content:",
		strings.TrimSpace(document),
	}, "\n")
}
