package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateAnalysisCostFreeModel(t *testing.T) {
	c := EstimateAnalysisCost("gemini-2.0-flash-exp")
	require.NotNil(t, c)

	assert.Equal(t, 500, c.InputTokens)
	assert.Equal(t, 300, c.OutputTokens)
	assert.Equal(t, 0.0, c.TotalCost)
	assert.Equal(t, "Free (Preview)", c.EstimatedCost)
}

func TestEstimateImageBatchCostScalesWithTasks(t *testing.T) {
	c := EstimateImageBatchCost("gemini-2.5-flash-image", 3, 4)
	require.NotNil(t, c)

	assert.Equal(t, 800*12, c.InputTokens)
	assert.Equal(t, 50*12, c.OutputTokens)
	assert.Greater(t, c.TotalCost, 0.0)
	assert.Equal(t, "<$0.01", c.EstimatedCost)
}

func TestEstimateVideoBatchCostPreviewIsFree(t *testing.T) {
	c := EstimateVideoBatchCost("veo-3.1-generate-preview", 5)
	require.NotNil(t, c)

	assert.Equal(t, 0.0, c.TotalCost)
	assert.Equal(t, "Free (Preview)", c.EstimatedCost)
	assert.Equal(t, 1000*5, c.InputTokens)
}

func TestFormatCost(t *testing.T) {
	assert.Equal(t, "Free (Preview)", formatCost(0))
	assert.Equal(t, "<$0.01", formatCost(0.0043))
	assert.Equal(t, "$0.25", formatCost(0.25))
	assert.Equal(t, "$12.50", formatCost(12.5))
}

func TestCostToJSONB(t *testing.T) {
	assert.Nil(t, CostToJSONB(nil))

	c := EstimateImageBatchCost("gemini-2.5-flash-image", 2, 1)
	c.ActualGenerations = 2

	j := CostToJSONB(c)
	require.NotNil(t, j)
	assert.Equal(t, "gemini-2.5-flash-image", j["model"])
	assert.Equal(t, 2, j["actual_generations"])
}
