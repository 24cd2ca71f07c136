package api

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dkarlovi/babelshot/internal/db"
	"github.com/dkarlovi/babelshot/internal/models"
	"github.com/dkarlovi/babelshot/internal/queue"
	"github.com/dkarlovi/babelshot/internal/services"
	"github.com/dkarlovi/babelshot/internal/storage"
	"github.com/dkarlovi/babelshot/internal/worker"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	maxUploadBytes    = 10 << 20 // 10 MB source image cap
	maxVariations     = 10
	defaultOpacity    = 40
	sessionListLimit  = 50
	downloadZipPrefix = "batch_"
)

// HandlerConfig carries the model names and defaults handlers need for
// validation and cost estimates.
type HandlerConfig struct {
	VisionModel          string
	ImageModel           string
	VideoModel           string
	DefaultWatermarkText string
	UploadRoot           string // empty disables source image retention
}

type Handler struct {
	db         *db.DB
	queue      *queue.Queue
	store      *storage.Store
	downloader *storage.Downloader
	gemini     *services.GeminiService
	compositor *services.WatermarkCompositor
	cfg        HandlerConfig
}

func NewHandler(database *db.DB, q *queue.Queue, store *storage.Store, downloader *storage.Downloader, gemini *services.GeminiService, compositor *services.WatermarkCompositor, cfg HandlerConfig) *Handler {
	return &Handler{
		db:         database,
		queue:      q,
		store:      store,
		downloader: downloader,
		gemini:     gemini,
		compositor: compositor,
		cfg:        cfg,
	}
}

// Analyze handles POST /v1/analyze.
// Accepts either a multipart upload (field "image") or a JSON body with an
// imageUrl to fetch. Creates a session holding the analysis.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	imageData, mimeType, err := h.readSourceImage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(imageData) == 0 {
		respondError(w, http.StatusBadRequest, "No image provided. Upload an 'image' file or pass imageUrl")
		return
	}

	analysis, err := h.gemini.AnalyzeImage(r.Context(), imageData, mimeType)
	if err != nil {
		log.Printf("[API] Image analysis failed: %v", err)
		respondError(w, http.StatusBadGateway, "Image analysis failed")
		return
	}

	session := &models.Session{
		ID:                 uuid.New(),
		Title:              sessionTitle(analysis.Description),
		Description:        optionalStr(analysis.Description),
		ExtractedText:      optionalStr(analysis.ExtractedText),
		TextLanguage:       optionalStr(analysis.TextLanguage),
		EnglishTranslation: analysis.EnglishTranslation,
	}
	if err := h.db.CreateSession(r.Context(), session); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	// Keep the source image around for later re-analysis. Best effort.
	if h.cfg.UploadRoot != "" {
		name := session.ID.String() + extForMime(mimeType)
		if err := os.WriteFile(filepath.Join(h.cfg.UploadRoot, name), imageData, 0644); err != nil {
			log.Printf("[API] Failed to persist upload for session %s: %v", session.ID, err)
		}
	}

	respondJSON(w, http.StatusOK, models.AnalyzeResponse{
		SessionID:      session.ID,
		AnalysisResult: *analysis,
		CostInfo:       worker.EstimateAnalysisCost(h.cfg.VisionModel),
	})
}

func (h *Handler) readSourceImage(r *http.Request) ([]byte, string, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "application/json") {
		var req struct {
			ImageURL string `json:"imageUrl"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, "", fmt.Errorf("invalid request body")
		}
		if req.ImageURL == "" {
			return nil, "", fmt.Errorf("imageUrl is required")
		}
		data, fetchedType, err := h.downloader.Fetch(r.Context(), req.ImageURL)
		if err != nil {
			return nil, "", fmt.Errorf("failed to fetch image: %v", err)
		}
		return data, fetchedType, nil
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, "", fmt.Errorf("invalid multipart form (max %d MB)", maxUploadBytes>>20)
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, "", fmt.Errorf("missing 'image' file field")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload")
	}
	if len(data) > maxUploadBytes {
		return nil, "", fmt.Errorf("image exceeds %d MB limit", maxUploadBytes>>20)
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}

// ListSessions handles GET /v1/sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.db.ListSessions(r.Context(), sessionListLimit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// GetSession handles GET /v1/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid session ID")
		return
	}

	session, err := h.db.GetSession(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	artifacts, err := h.db.GetSessionArtifacts(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load session artifacts")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"session":   session,
		"artifacts": artifacts,
	})
}

// DeleteSession handles DELETE /v1/sessions/{id}. Artifact rows cascade;
// files are removed best-effort.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid session ID")
		return
	}

	artifacts, err := h.db.GetSessionArtifacts(r.Context(), id)
	if err == nil {
		for _, a := range artifacts {
			if err := h.store.Delete(a.FilePath); err != nil {
				log.Printf("[API] Failed to delete artifact file %s: %v", a.FilePath, err)
			}
		}
	}

	if err := h.db.DeleteSession(r.Context(), id); err != nil {
		respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GenerateImages handles POST /v1/generate
func (h *Handler) GenerateImages(w http.ResponseWriter, r *http.Request) {
	h.createBatch(w, r, models.MediaKindImage)
}

// GenerateVideos handles POST /v1/generate-videos
func (h *Handler) GenerateVideos(w http.ResponseWriter, r *http.Request) {
	h.createBatch(w, r, models.MediaKindVideo)
}

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request, kind models.MediaKind) {
	var req models.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Description == "" {
		respondError(w, http.StatusBadRequest, "Description is required")
		return
	}
	if req.VariationsPerLanguage == 0 {
		req.VariationsPerLanguage = 1
	}
	if req.VariationsPerLanguage > maxVariations {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("variationsPerLanguage must be between 1 and %d", maxVariations))
		return
	}
	if req.WatermarkText == "" {
		req.WatermarkText = h.cfg.DefaultWatermarkText
	}

	// Videos are generated one per language regardless of variations.
	variations := req.VariationsPerLanguage
	if kind == models.MediaKindVideo {
		variations = 1
	}

	tasks, err := worker.ExpandTasks(req.Languages, variations)
	if err != nil {
		respondError(w, http.StatusBadRequest, "At least one language is required")
		return
	}

	if req.SessionID != nil {
		if _, err := h.db.GetSession(r.Context(), *req.SessionID); err != nil {
			respondError(w, http.StatusNotFound, "Session not found")
			return
		}
	}

	batch := &models.Batch{
		ID:             uuid.New(),
		SessionID:      req.SessionID,
		MediaKind:      kind,
		TotalRequested: len(tasks),
		Status:         models.BatchStatusQueued,
	}
	if err := h.db.CreateBatch(r.Context(), batch); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create batch")
		return
	}

	if err := h.queue.EnqueueGenerateBatch(r.Context(), batch.ID, kind, &req); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to enqueue batch")
		return
	}

	if req.SessionID != nil {
		if err := h.db.TouchSession(r.Context(), *req.SessionID); err != nil {
			log.Printf("[API] Failed to touch session %s: %v", *req.SessionID, err)
		}
	}

	respondJSON(w, http.StatusAccepted, models.CreateBatchResponse{
		BatchID:        batch.ID,
		MediaKind:      kind,
		TotalRequested: len(tasks),
		Status:         batch.Status,
	})
}

// GetBatchReport handles GET /v1/batches/{id}
func (h *Handler) GetBatchReport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid batch ID")
		return
	}

	batch, err := h.db.GetBatch(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "Batch not found")
		return
	}

	artifacts, err := h.db.GetBatchArtifacts(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load batch artifacts")
		return
	}

	terminal := batch.Status == models.BatchStatusCompleted || batch.Status == models.BatchStatusFailed

	resp := map[string]interface{}{
		"batchId":        batch.ID,
		"mediaKind":      batch.MediaKind,
		"status":         batch.Status,
		"totalRequested": batch.TotalRequested,
		"successful":     countPrimaryArtifacts(artifacts),
		"artifacts":      artifacts,
		"costInfo":       batch.CostInfo,
		"errorMessage":   batch.ErrorMessage,
		"terminal":       terminal,
		"createdAt":      batch.CreatedAt,
		"updatedAt":      batch.UpdatedAt,
	}

	mergeBatchResults(resp, batch.Results)

	respondJSON(w, http.StatusOK, resp)
}

// mergeBatchResults folds a terminal batch's persisted per-task outcomes
// into the report payload. The outcome list enumerates every requested
// task, so it is authoritative over counting artifact rows and is the only
// place failed tasks and degraded languages appear.
func mergeBatchResults(resp map[string]interface{}, results models.JSONB) {
	if results == nil {
		return
	}

	resp["results"] = results["results"]
	if s, ok := results["successful"]; ok {
		resp["successful"] = s
	}
	if f, ok := results["failed"]; ok {
		resp["failed"] = f
	}
	if degraded, ok := results["translationDegraded"]; ok {
		resp["translationDegraded"] = degraded
	}
}

// countPrimaryArtifacts counts generation outputs only. Watermarked images
// and extended videos are post-processing derivatives of a task that is
// already counted, so they never inflate the success count.
func countPrimaryArtifacts(artifacts []models.Artifact) int {
	n := 0
	for _, a := range artifacts {
		switch a.Kind {
		case models.ArtifactKindImage, models.ArtifactKindVideo, models.ArtifactKindWatermarkedVideo:
			n++
		}
	}
	return n
}

// Watermark handles POST /v1/watermark. Synchronous: the response carries
// the placements so callers can compare regenerations.
func (h *Handler) Watermark(w http.ResponseWriter, r *http.Request) {
	var req models.WatermarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ImagePath == "" {
		respondError(w, http.StatusBadRequest, "imagePath is required")
		return
	}
	if req.WatermarkText == "" {
		req.WatermarkText = h.cfg.DefaultWatermarkText
	}
	opacity := req.Opacity
	if opacity <= 0 {
		opacity = defaultOpacity
	}
	if opacity > 100 {
		opacity = 100
	}

	path, err := h.store.ResolveURLPath(req.ImagePath)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid image path")
		return
	}

	data, err := h.store.Read(path)
	if err != nil {
		respondError(w, http.StatusNotFound, "Image not found")
		return
	}

	src, err := services.DecodeImage(data)
	if err != nil {
		respondError(w, http.StatusBadRequest, "File is not a decodable image")
		return
	}

	marked, placements, err := h.compositor.Apply(src, req.WatermarkText, opacity)
	if err != nil {
		log.Printf("[API] Watermark compositing failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to composite watermark")
		return
	}

	encoded, err := services.EncodePNG(marked)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to encode watermarked image")
		return
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	filename := worker.WatermarkedImageName(stem, time.Now())

	savedPath, url, err := h.store.Save(r.Context(), storage.DirWatermarked, filename, encoded)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to save watermarked image")
		return
	}

	h.recordWatermarkArtifact(r, stem, savedPath, url)

	respondJSON(w, http.StatusOK, models.WatermarkResponse{
		WatermarkedURL: url,
		Placements:     placements,
	})
}

// recordWatermarkArtifact links the watermarked file back to its batch when
// the source filename carries the batch-scoped stem. Untracked sources
// still get watermarked, they just skip the DB row.
func (h *Handler) recordWatermarkArtifact(r *http.Request, stem, path, url string) {
	batchID, language, variation, ok := worker.ParseImageStem(stem)
	if !ok {
		return
	}

	artifact := &models.Artifact{
		ID:        uuid.New(),
		BatchID:   batchID,
		Kind:      models.ArtifactKindWatermarkedImage,
		Language:  language,
		Variation: variation,
		FilePath:  path,
		URL:       url,
	}
	if err := h.db.CreateArtifact(r.Context(), artifact); err != nil {
		log.Printf("[API] Failed to record watermark artifact: %v", err)
	}
}

// ExtendBatch handles POST /v1/batches/{id}/extend
func (h *Handler) ExtendBatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid batch ID")
		return
	}

	batch, err := h.db.GetBatch(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "Batch not found")
		return
	}
	if batch.MediaKind != models.MediaKindVideo {
		respondError(w, http.StatusBadRequest, "Only video batches can be extended")
		return
	}

	if err := h.queue.EnqueueExtendBatch(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to enqueue extension")
		return
	}

	respondJSON(w, http.StatusAccepted, models.ExtendBatchResponse{
		BatchID: id,
		Status:  "queued",
	})
}

// DownloadBatch handles GET /v1/batches/{id}/download. Streams a zip of
// every artifact the batch produced.
func (h *Handler) DownloadBatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid batch ID")
		return
	}

	if _, err := h.db.GetBatch(r.Context(), id); err != nil {
		respondError(w, http.StatusNotFound, "Batch not found")
		return
	}

	artifacts, err := h.db.GetBatchArtifacts(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load batch artifacts")
		return
	}
	if len(artifacts) == 0 {
		respondError(w, http.StatusNotFound, "Batch has no artifacts")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s%s.zip", downloadZipPrefix, id))
	w.WriteHeader(http.StatusOK)

	zw := zip.NewWriter(w)
	defer zw.Close()

	for _, a := range artifacts {
		data, err := h.store.Read(a.FilePath)
		if err != nil {
			log.Printf("[API] Skipping unreadable artifact %s: %v", a.FilePath, err)
			continue
		}
		entry, err := zw.Create(filepath.Base(a.FilePath))
		if err != nil {
			log.Printf("[API] Failed to add zip entry for %s: %v", a.FilePath, err)
			return
		}
		if _, err := entry.Write(data); err != nil {
			log.Printf("[API] Failed to write zip entry for %s: %v", a.FilePath, err)
			return
		}
	}
}

// Helpers

func sessionTitle(description string) string {
	title := strings.TrimSpace(description)
	if title == "" {
		return "Untitled upload"
	}
	const maxTitle = 80
	if len(title) > maxTitle {
		title = title[:maxTitle]
	}
	return title
}

func extForMime(mimeType string) string {
	if strings.Contains(mimeType, "jpeg") || strings.Contains(mimeType, "jpg") {
		return ".jpg"
	}
	return ".png"
}

func optionalStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "ok"}

	if h.queue != nil {
		if depth, err := h.queue.GetQueueLength(r.Context(), queue.QueueGenerateBatch); err == nil {
			resp["queuedBatches"] = depth
		}
	}

	respondJSON(w, http.StatusOK, resp)
}
