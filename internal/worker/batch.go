package worker

import (
	"context"
	"errors"
	"log"
	"path/filepath"

	"github.com/dkarlovi/babelshot/internal/models"
	"github.com/dkarlovi/babelshot/internal/services"
	"github.com/dkarlovi/babelshot/internal/storage"
	"github.com/google/uuid"
)

// Collaborator contracts. The concrete services satisfy these; tests swap
// in fakes.

type ImageSynthesizer interface {
	GenerateImage(ctx context.Context, prompt, aspectRatio string) ([]byte, error)
}

type VideoSynthesizer interface {
	GenerateVideo(ctx context.Context, prompt, aspectRatio string) ([]byte, error)
}

// VideoMarker burns a watermark banner into a video file. Optional; nil
// skips video watermarking.
type VideoMarker interface {
	DrawTextBanner(ctx context.Context, inputPath, outputPath, text string) error
}

// ArtifactSink persists artifact bytes under a collision-free name and
// returns the local path plus public URL.
type ArtifactSink interface {
	Save(ctx context.Context, subdir, filename string, data []byte) (path, url string, err error)
	URLFor(subdir, filename string) string
}

// Orchestrator runs one batch end to end: expand tasks, warm the
// translation cache, execute under the bounded pool, persist artifacts, and
// aggregate the report. Per-task errors stay in that task's result; only
// request validation aborts the whole batch.
type Orchestrator struct {
	Translator Translator
	Images     ImageSynthesizer
	Videos     VideoSynthesizer
	Marker     VideoMarker
	Sink       ArtifactSink
	Pool       Pool

	ImageModel string
	VideoModel string

	// OnArtifact is called for each successfully persisted artifact, before
	// its task result is recorded. Used by the queue worker to write DB rows.
	OnArtifact func(ctx context.Context, artifact *models.Artifact)
}

// RunImageBatch executes languages×variations image generation tasks.
func (o *Orchestrator) RunImageBatch(ctx context.Context, batchID uuid.UUID, req *models.GenerationRequest) (*models.BatchReport, error) {
	tasks, err := ExpandTasks(req.Languages, req.VariationsPerLanguage)
	if err != nil {
		return nil, err
	}

	cache := o.warmCache(ctx, tasks, req)

	log.Printf("[Batch %s] Generating %d image variations...", batchID, len(tasks))

	opts := FormatOptions{
		FontStyle:   req.FontStyle,
		TextSize:    req.TextSize,
		Orientation: req.Orientation,
		Resolution:  req.Resolution,
	}

	results := o.Pool.Run(ctx, len(tasks),
		func(ctx context.Context, i int) models.TaskResult {
			return o.runImageTask(ctx, batchID, req, tasks[i], opts)
		},
		func(i int) models.TaskResult {
			return cancelledResult(tasks[i])
		},
	)

	cost := EstimateImageBatchCost(o.ImageModel, len(dedupeLanguages(req.Languages)), req.VariationsPerLanguage)
	return o.buildReport(batchID, models.MediaKindImage, results, cache.Degraded(), cost), nil
}

// RunVideoBatch executes one video generation task per language. Variations
// are clamped to one per language since video synthesis is priced per clip.
func (o *Orchestrator) RunVideoBatch(ctx context.Context, batchID uuid.UUID, req *models.GenerationRequest) (*models.BatchReport, error) {
	tasks, err := ExpandTasks(req.Languages, 1)
	if err != nil {
		return nil, err
	}

	cache := o.warmCache(ctx, tasks, req)

	log.Printf("[Batch %s] Generating %d videos...", batchID, len(tasks))

	opts := FormatOptions{Orientation: req.Orientation}

	results := o.Pool.Run(ctx, len(tasks),
		func(ctx context.Context, i int) models.TaskResult {
			return o.runVideoTask(ctx, batchID, req, tasks[i], opts)
		},
		func(i int) models.TaskResult {
			return cancelledResult(tasks[i])
		},
	)

	cost := EstimateVideoBatchCost(o.VideoModel, len(tasks))
	return o.buildReport(batchID, models.MediaKindVideo, results, cache.Degraded(), cost), nil
}

// warmCache prefetches every translation the batch needs, then fills each
// task's resolved texts. Pool workers never trigger a cold translation.
func (o *Orchestrator) warmCache(ctx context.Context, tasks []GenerationTask, req *models.GenerationRequest) *TranslationCache {
	cache := NewTranslationCache(o.Translator)

	languages := make([]string, 0, len(tasks))
	seen := make(map[string]bool)
	for _, t := range tasks {
		if !seen[t.Language] {
			seen[t.Language] = true
			languages = append(languages, t.Language)
		}
	}

	cache.Prefetch(ctx, []string{req.OriginalText, req.WatermarkText}, languages)

	for i := range tasks {
		tasks[i].OverlayText = cache.Resolve(ctx, req.OriginalText, tasks[i].Language)
		tasks[i].WatermarkText = cache.Resolve(ctx, req.WatermarkText, tasks[i].Language)
	}

	return cache
}

func (o *Orchestrator) runImageTask(ctx context.Context, batchID uuid.UUID, req *models.GenerationRequest, task GenerationTask, opts FormatOptions) models.TaskResult {
	prompt := ComposeImagePrompt(req.Description, task.Style, task.OverlayText, opts)

	log.Printf("[Batch %s] Generating %s variation %d...", batchID, task.Language, task.Variation)

	data, err := o.Images.GenerateImage(ctx, prompt, AspectRatioFor(req.Orientation))
	if err != nil {
		reason := models.FailureReasonSynthesis
		if errors.Is(err, services.ErrNoImageData) {
			reason = models.FailureReasonNoImageData
		}
		return failureResult(task, reason, err)
	}

	filename := ImageStem(batchID, task.Language, task.Variation) + ".png"
	path, url, err := o.Sink.Save(ctx, storage.DirImages, filename, data)
	if err != nil {
		return failureResult(task, models.FailureReasonPersistence, err)
	}

	o.recordArtifact(ctx, batchID, req, task, models.ArtifactKindImage, path, url)

	return successResult(task, filename, url)
}

func (o *Orchestrator) runVideoTask(ctx context.Context, batchID uuid.UUID, req *models.GenerationRequest, task GenerationTask, opts FormatOptions) models.TaskResult {
	prompt := ComposeVideoPrompt(req.Description, task.OverlayText, task.Language, opts)

	log.Printf("[Batch %s] Generating %s video...", batchID, task.Language)

	data, err := o.Videos.GenerateVideo(ctx, prompt, AspectRatioFor(req.Orientation))
	if err != nil {
		reason := models.FailureReasonSynthesis
		if errors.Is(err, services.ErrPollingTimeout) {
			reason = models.FailureReasonPollTimeout
		}
		return failureResult(task, reason, err)
	}

	filename := VideoStem(batchID, task.Language) + ".mp4"
	path, url, err := o.Sink.Save(ctx, storage.DirVideos, filename, data)
	if err != nil {
		return failureResult(task, models.FailureReasonPersistence, err)
	}

	kind := models.ArtifactKindVideo

	// Burn in the translated watermark banner when configured. Failure
	// keeps the plain video.
	if o.Marker != nil && task.WatermarkText != "" {
		markedName := WatermarkedVideoName(filename)
		markedPath := filepath.Join(filepath.Dir(path), markedName)

		if err := o.Marker.DrawTextBanner(ctx, path, markedPath, task.WatermarkText); err != nil {
			log.Printf("[Batch %s] Video watermark failed for %s, keeping unwatermarked: %v", batchID, task.Language, err)
		} else {
			filename = markedName
			path = markedPath
			url = o.Sink.URLFor(storage.DirVideos, markedName)
			kind = models.ArtifactKindWatermarkedVideo
		}
	}

	o.recordArtifact(ctx, batchID, req, task, kind, path, url)

	return successResult(task, filename, url)
}

func (o *Orchestrator) recordArtifact(ctx context.Context, batchID uuid.UUID, req *models.GenerationRequest, task GenerationTask, kind models.ArtifactKind, path, url string) {
	if o.OnArtifact == nil {
		return
	}

	o.OnArtifact(ctx, &models.Artifact{
		ID:          uuid.New(),
		BatchID:     batchID,
		SessionID:   req.SessionID,
		Kind:        kind,
		Language:    task.Language,
		Variation:   task.Variation,
		Style:       strPtr(task.Style),
		FontStyle:   optStr(req.FontStyle),
		Orientation: optStr(req.Orientation),
		Resolution:  optStr(req.Resolution),
		FilePath:    path,
		URL:         url,
	})
}

// buildReport assembles the terminal batch report. Called only after the
// pool has produced a result for every task.
func (o *Orchestrator) buildReport(batchID uuid.UUID, kind models.MediaKind, results []models.TaskResult, degraded map[string]bool, cost *models.CostInfo) *models.BatchReport {
	successful := 0
	for _, r := range results {
		if r.Succeeded() {
			successful++
		}
	}

	if cost != nil {
		cost.ActualGenerations = successful
	}

	return &models.BatchReport{
		BatchID:             batchID,
		MediaKind:           kind,
		TotalRequested:      len(results),
		Successful:          successful,
		Failed:              len(results) - successful,
		Results:             results,
		TranslationDegraded: degraded,
		CostInfo:            cost,
		Terminal:            true,
	}
}

func successResult(task GenerationTask, filename, url string) models.TaskResult {
	r := models.TaskResult{
		Language:  task.Language,
		Variation: task.Variation,
		Style:     task.Style,
		Filename:  filename,
		URL:       url,
	}
	if task.WatermarkText != "" {
		r.Watermark = strPtr(task.WatermarkText)
	}
	return r
}

func failureResult(task GenerationTask, reason string, err error) models.TaskResult {
	log.Printf("[Batch] Task %s v%d failed (%s): %v", task.Language, task.Variation, reason, err)
	return models.TaskResult{
		Language:  task.Language,
		Variation: task.Variation,
		Style:     task.Style,
		Error:     err.Error(),
		Reason:    reason,
	}
}

func cancelledResult(task GenerationTask) models.TaskResult {
	return models.TaskResult{
		Language:  task.Language,
		Variation: task.Variation,
		Style:     task.Style,
		Error:     "batch cancelled before task was dispatched",
		Reason:    models.FailureReasonCancelled,
	}
}

func strPtr(s string) *string { return &s }

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
