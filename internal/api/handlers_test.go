package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dkarlovi/babelshot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, apiKey string) http.Handler {
	t.Helper()
	h := NewHandler(nil, nil, nil, nil, nil, nil, HandlerConfig{
		DefaultWatermarkText: "Gardening Tips and Trick",
	})
	return NewRouter(h, RouterConfig{BackendAPIKey: apiKey})
}

func TestHealthIsPublic(t *testing.T) {
	router := newTestRouter(t, "secret")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMissingAPIKeyRejected(t *testing.T) {
	router := newTestRouter(t, "secret")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/sessions", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWrongAPIKeyRejected(t *testing.T) {
	router := newTestRouter(t, "secret")

	req := httptest.NewRequest("GET", "/v1/sessions", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBearerTokenAccepted(t *testing.T) {
	router := newTestRouter(t, "secret")

	// Validation runs after auth, so a 400 proves the key was accepted.
	req := httptest.NewRequest("POST", "/v1/generate", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateRejectsMissingDescription(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest("POST", "/v1/generate", strings.NewReader(`{"languages":["english"]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Description is required")
}

func TestGenerateRejectsMissingLanguages(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest("POST", "/v1/generate", strings.NewReader(`{"description":"a garden"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "language")
}

func TestGenerateRejectsTooManyVariations(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest("POST", "/v1/generate",
		strings.NewReader(`{"description":"a garden","languages":["english"],"variationsPerLanguage":11}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWatermarkRejectsMissingPath(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest("POST", "/v1/watermark", strings.NewReader(`{"watermarkText":"mark"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "imagePath")
}

func TestInvalidBatchIDRejected(t *testing.T) {
	router := newTestRouter(t, "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/batches/not-a-uuid", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeRejectsEmptyJSONBody(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest("POST", "/v1/analyze", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "imageUrl")
}

func TestCountPrimaryArtifactsIgnoresDerivatives(t *testing.T) {
	artifacts := []models.Artifact{
		{Kind: models.ArtifactKindImage},
		{Kind: models.ArtifactKindImage},
		{Kind: models.ArtifactKindWatermarkedImage},
		{Kind: models.ArtifactKindExtendedVideo},
	}

	// Post-processing rows must never push successful past totalRequested.
	assert.Equal(t, 2, countPrimaryArtifacts(artifacts))
}

func TestCountPrimaryArtifactsCountsWatermarkedVideos(t *testing.T) {
	artifacts := []models.Artifact{
		{Kind: models.ArtifactKindWatermarkedVideo},
		{Kind: models.ArtifactKindVideo},
		{Kind: models.ArtifactKindExtendedVideo},
	}

	assert.Equal(t, 2, countPrimaryArtifacts(artifacts))
}

func TestMergeBatchResultsServesFailedTasks(t *testing.T) {
	resp := map[string]interface{}{
		"successful": 3,
		"artifacts":  []models.Artifact{{Kind: models.ArtifactKindImage}},
	}

	// Persisted outcomes as they come back from the JSONB column.
	stored := models.JSONB{
		"successful": float64(3),
		"failed":     float64(1),
		"results": []interface{}{
			map[string]interface{}{"language": "english", "variation": float64(1), "url": "/generated/images/a.png"},
			map[string]interface{}{"language": "german", "variation": float64(1), "error": "upstream 500", "reason": "synthesis_failed"},
		},
		"translationDegraded": map[string]interface{}{"german": true},
	}

	mergeBatchResults(resp, stored)

	results, ok := resp["results"].([]interface{})
	require.True(t, ok)
	require.Len(t, results, 2, "failed tasks must appear in the served report")

	failed := results[1].(map[string]interface{})
	assert.Equal(t, "synthesis_failed", failed["reason"])

	assert.Equal(t, float64(3), resp["successful"])
	assert.Equal(t, float64(1), resp["failed"])
	assert.Equal(t, map[string]interface{}{"german": true}, resp["translationDegraded"])
}

func TestMergeBatchResultsNoopWhileGenerating(t *testing.T) {
	resp := map[string]interface{}{"successful": 2}

	mergeBatchResults(resp, nil)

	assert.Equal(t, 2, resp["successful"])
	_, present := resp["results"]
	assert.False(t, present)
}
