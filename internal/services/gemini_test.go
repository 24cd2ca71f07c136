package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnalysisJSONPlain(t *testing.T) {
	result, err := parseAnalysisJSON(`{
		"description": "a tulip garden at dawn",
		"extracted_text": "Good morning",
		"text_language": "English",
		"english_translation": null
	}`)
	require.NoError(t, err)

	assert.Equal(t, "a tulip garden at dawn", result.Description)
	assert.Equal(t, "Good morning", result.ExtractedText)
	assert.Equal(t, "English", result.TextLanguage)
	assert.Nil(t, result.EnglishTranslation)
}

func TestParseAnalysisJSONInsideMarkdownFence(t *testing.T) {
	result, err := parseAnalysisJSON("Here is the analysis:\n```json\n" +
		`{"description": "a garden", "extracted_text": "Guten Morgen", "text_language": "German", "english_translation": "Good morning"}` +
		"\n```\nLet me know if you need anything else.")
	require.NoError(t, err)

	assert.Equal(t, "a garden", result.Description)
	require.NotNil(t, result.EnglishTranslation)
	assert.Equal(t, "Good morning", *result.EnglishTranslation)
}

func TestParseAnalysisJSONNoObject(t *testing.T) {
	_, err := parseAnalysisJSON("I could not analyze this image.")
	assert.Error(t, err)
}

func TestParseAnalysisJSONMissingDescription(t *testing.T) {
	_, err := parseAnalysisJSON(`{"extracted_text": "hi"}`)
	assert.Error(t, err)
}

func TestParseAnalysisJSONMalformed(t *testing.T) {
	_, err := parseAnalysisJSON(`{"description": `)
	assert.Error(t, err)
}
