package services

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const translateModel = "gpt-4o-mini"

// TranslateService turns overlay and watermark text into the batch's target
// languages. Failures here are non-fatal: the translation cache falls back
// to the source text.
type TranslateService struct {
	client *openai.Client
}

func NewTranslateService(apiKey string) *TranslateService {
	return &TranslateService{
		client: openai.NewClient(apiKey),
	}
}

// Translate renders text into targetLanguage and returns only the
// translated text.
func (s *TranslateService) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	prompt := fmt.Sprintf("Translate the following text to %s. Return only the translation, nothing else: %q", titleCase(targetLanguage), text)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: translateModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a professional translator. Respond with the translated text only, with no quotes and no explanation.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.2,
	})

	if err != nil {
		return "", fmt.Errorf("translation request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from translator")
	}

	translated := strings.TrimSpace(resp.Choices[0].Message.Content)
	translated = strings.Trim(translated, `"`)
	if translated == "" {
		return "", fmt.Errorf("empty translation")
	}

	return translated, nil
}

// titleCase capitalizes the first letter so "french" reads as "French" in
// the prompt.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
