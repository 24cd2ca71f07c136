package worker

import (
	"fmt"

	"github.com/dkarlovi/babelshot/internal/models"
)

// Cost estimation uses fixed token-estimate tables per operation kind and
// published per-1K-token prices. Estimates, not metering; close enough for
// the per-batch report.

type tokenEstimate struct {
	input  int
	output int
}

type modelPricing struct {
	inputPer1K  float64
	outputPer1K float64
}

var (
	analysisEstimate = tokenEstimate{input: 500, output: 300}
	imageGenEstimate = tokenEstimate{input: 800, output: 50}
	videoGenEstimate = tokenEstimate{input: 1000, output: 100}

	geminiPricing = map[string]modelPricing{
		"gemini-2.0-flash-exp":   {inputPer1K: 0, outputPer1K: 0}, // free during preview
		"gemini-2.5-flash-image": {inputPer1K: 0.00001875, outputPer1K: 0.000075},
	}

	// Veo is priced per generated video, not per token.
	veoPricePerVideo = map[string]float64{
		"veo-3.1-generate-preview": 0, // free during preview
	}
)

// EstimateAnalysisCost prices one vision analysis call.
func EstimateAnalysisCost(model string) *models.CostInfo {
	return estimateTokenCost(model, analysisEstimate, 1)
}

// EstimateImageBatchCost prices languages×variations independent image
// generation calls.
func EstimateImageBatchCost(model string, languages, variationsPerLanguage int) *models.CostInfo {
	return estimateTokenCost(model, imageGenEstimate, languages*variationsPerLanguage)
}

// EstimateVideoBatchCost prices per-video generation.
func EstimateVideoBatchCost(model string, videos int) *models.CostInfo {
	perVideo := veoPricePerVideo[model]
	total := perVideo * float64(videos)

	return &models.CostInfo{
		Model:         model,
		InputTokens:   videoGenEstimate.input * videos,
		OutputTokens:  videoGenEstimate.output * videos,
		TotalCost:     total,
		EstimatedCost: formatCost(total),
	}
}

func estimateTokenCost(model string, est tokenEstimate, calls int) *models.CostInfo {
	pricing := geminiPricing[model]

	inputTokens := est.input * calls
	outputTokens := est.output * calls
	total := float64(inputTokens)/1000*pricing.inputPer1K + float64(outputTokens)/1000*pricing.outputPer1K

	return &models.CostInfo{
		Model:         model,
		InputTokens:   inputTokens,
		OutputTokens:  outputTokens,
		TotalCost:     total,
		EstimatedCost: formatCost(total),
	}
}

func formatCost(cost float64) string {
	if cost == 0 {
		return "Free (Preview)"
	}
	if cost < 0.01 {
		return "<$0.01"
	}
	return fmt.Sprintf("$%.2f", cost)
}

// CostToJSONB flattens a CostInfo for the batch's JSONB column.
func CostToJSONB(c *models.CostInfo) models.JSONB {
	if c == nil {
		return nil
	}
	return models.JSONB{
		"model":              c.Model,
		"input_tokens":       c.InputTokens,
		"output_tokens":      c.OutputTokens,
		"total_cost":         c.TotalCost,
		"estimated_cost":     c.EstimatedCost,
		"actual_generations": c.ActualGenerations,
	}
}
