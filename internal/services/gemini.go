package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dkarlovi/babelshot/internal/models"
)

// ErrNoImageData is returned when Gemini answers without any inline image
// part. Callers record it as a per-task synthesis failure.
var ErrNoImageData = errors.New("no image data in response")

type GeminiService struct {
	apiKey      string
	visionModel string
	imageModel  string
	client      *http.Client
}

func NewGeminiService(apiKey, visionModel, imageModel string) *GeminiService {
	if visionModel == "" {
		visionModel = "gemini-2.0-flash-exp"
	}
	if imageModel == "" {
		imageModel = "gemini-2.5-flash-image"
	}
	return &GeminiService{
		apiKey:      apiKey,
		visionModel: visionModel,
		imageModel:  imageModel,
		client:      &http.Client{Timeout: 300 * time.Second},
	}
}

// Gemini API request/response structures
type GeminiGenerateContentRequest struct {
	Contents         []GeminiContent         `json:"contents"`
	GenerationConfig *GeminiGenerationConfig `json:"generationConfig,omitempty"`
}

type GeminiGenerationConfig struct {
	ResponseModalities []string           `json:"responseModalities,omitempty"`
	ImageConfig        *GeminiImageConfig `json:"imageConfig,omitempty"`
}

type GeminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

type GeminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *GeminiInlineData `json:"inlineData,omitempty"`
}

type GeminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type GeminiGenerateContentResponse struct {
	Candidates []GeminiCandidate `json:"candidates"`
}

type GeminiCandidate struct {
	Content GeminiResponseContent `json:"content"`
}

type GeminiResponseContent struct {
	Parts []GeminiResponsePart `json:"parts"`
}

type GeminiResponsePart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *GeminiInlineData `json:"inlineData,omitempty"`
}

const analysisPrompt = `Please analyze this image and provide:
1. A detailed description of what you see in the image (IMPORTANT: Do NOT include or mention any logos, watermarks, brand names, copyright marks, or URLs in the description - focus only on the main subject matter and content)
2. Extract the main meaningful text found in the image (in its original language), but EXCLUDE watermarks, logos or brand text, URLs or website addresses, and copyright notices
3. If the main text is not in English, provide an English translation
4. Identify the language of the main text found

Format your response as JSON with the following structure:
{
  "description": "detailed description of the image content (without logos, watermarks, or URLs)",
  "extracted_text": "main meaningful text from the image (excluding watermarks, URLs, logos)",
  "text_language": "language of the text",
  "english_translation": "English translation if needed, or null if text is already in English"
}`

// AnalyzeImage describes an uploaded image and extracts its overlay text.
// An error here is terminal for the whole request: tasks cannot be derived
// without a description.
func (s *GeminiService) AnalyzeImage(ctx context.Context, imageData []byte, mimeType string) (*models.AnalysisResult, error) {
	if mimeType == "" {
		mimeType = "image/png"
	}

	reqBody := GeminiGenerateContentRequest{
		Contents: []GeminiContent{
			{
				Role: "user",
				Parts: []GeminiPart{
					{Text: analysisPrompt},
					{
						InlineData: &GeminiInlineData{
							MimeType: mimeType,
							Data:     base64.StdEncoding.EncodeToString(imageData),
						},
					},
				},
			},
		},
	}

	text, err := s.doGenerateText(ctx, s.visionModel, reqBody)
	if err != nil {
		return nil, fmt.Errorf("image analysis failed: %w", err)
	}

	result, err := parseAnalysisJSON(text)
	if err != nil {
		return nil, fmt.Errorf("image analysis returned unparseable response: %w", err)
	}
	return result, nil
}

// GenerateImage generates a single image for one task's prompt. Each call is
// independent and safe for parallel execution across tasks.
func (s *GeminiService) GenerateImage(ctx context.Context, prompt, aspectRatio string) ([]byte, error) {
	reqBody := GeminiGenerateContentRequest{
		Contents: []GeminiContent{
			{Role: "user", Parts: []GeminiPart{{Text: prompt}}},
		},
		GenerationConfig: &GeminiGenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
			ImageConfig: &GeminiImageConfig{
				AspectRatio: aspectRatio,
			},
		},
	}

	return s.doGenerateImage(ctx, s.imageModel, reqBody)
}

func (s *GeminiService) doGenerateContent(ctx context.Context, model string, reqBody GeminiGenerateContentRequest) (*GeminiGenerateContentResponse, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s", model, s.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var geminiResp GeminiGenerateContentResponse
	if err := json.Unmarshal(bodyBytes, &geminiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(geminiResp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	return &geminiResp, nil
}

func (s *GeminiService) doGenerateText(ctx context.Context, model string, reqBody GeminiGenerateContentRequest) (string, error) {
	resp, err := s.doGenerateContent(ctx, model, reqBody)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text in response")
	}
	return sb.String(), nil
}

func (s *GeminiService) doGenerateImage(ctx context.Context, model string, reqBody GeminiGenerateContentRequest) ([]byte, error) {
	resp, err := s.doGenerateContent(ctx, model, reqBody)
	if err != nil {
		return nil, err
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && part.InlineData.Data != "" {
			imageData, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to decode base64 image: %w", err)
			}
			return imageData, nil
		}
	}

	return nil, ErrNoImageData
}

// parseAnalysisJSON extracts the JSON object from a model response that may
// wrap it in prose or markdown fences.
func parseAnalysisJSON(text string) (*models.AnalysisResult, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return nil, fmt.Errorf("failed to parse analysis JSON: %w", err)
	}

	if result.Description == "" {
		return nil, fmt.Errorf("analysis JSON missing description")
	}
	return &result, nil
}
