package domain

import "strings"

// PivotLanguage is the language retrieval and generation run in.
const PivotLanguage = "en"

const defaultRecognitionLanguage = "en-US"

var recognitionLanguages = map[string]string{
	"en": "en-US",
	"es": "es-ES",
	"fr": "fr-FR",
	"de": "de-DE",
	"zh": "zh-CN",
	"ja": "ja-JP",
	"ko": "ko-KR",
	"ru": "ru-RU",
	"ar": "ar-SA",
	"hi": "hi-IN",
	"vi": "vi-VN",
	"th": "th-TH",
}

// RecognitionLanguage maps an ISO 639-1 code to a speech recognition locale.
func RecognitionLanguage(lang string) string {
	if code, ok := recognitionLanguages[strings.ToLower(strings.TrimSpace(lang))]; ok {
		return code
	}
	return defaultRecognitionLanguage
}

// NormalizeLanguage lowercases a language code and falls back to the pivot.
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return PivotLanguage
	}
	return lang
}
