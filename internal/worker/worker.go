package worker

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/dkarlovi/babelshot/internal/db"
	"github.com/dkarlovi/babelshot/internal/models"
	"github.com/dkarlovi/babelshot/internal/queue"
	"github.com/dkarlovi/babelshot/internal/services"
	"github.com/dkarlovi/babelshot/internal/storage"
	"github.com/google/uuid"
)

// Worker consumes generation and extension jobs off the Redis queues and
// drives batches to a terminal state.
type Worker struct {
	db           *db.DB
	queue        *queue.Queue
	store        *storage.Store
	orchestrator *Orchestrator
	extender     *services.Extender
}

func New(database *db.DB, q *queue.Queue, store *storage.Store, orchestrator *Orchestrator, extender *services.Extender) *Worker {
	w := &Worker{
		db:           database,
		queue:        q,
		store:        store,
		orchestrator: orchestrator,
		extender:     extender,
	}

	orchestrator.OnArtifact = w.persistArtifact

	return w
}

// Start launches consumer goroutines for each queue. Blocks until ctx is
// cancelled.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	log.Printf("[Worker] Starting with %d batch consumers", concurrency)

	for i := 0; i < concurrency; i++ {
		go w.consume(ctx, queue.QueueGenerateBatch, w.handleGenerateBatch)
	}
	go w.consume(ctx, queue.QueueExtendBatch, w.handleExtendBatch)

	<-ctx.Done()
	log.Println("[Worker] Shutting down")
}

func (w *Worker) consume(ctx context.Context, queueName string, handle func(ctx context.Context, job *queue.Job) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx, queueName, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[Worker] Failed to dequeue from %s: %v", queueName, err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		log.Printf("[Worker] Processing job %s (%s) for batch %s", job.ID, job.Type, job.BatchID)

		if err := handle(ctx, job); err != nil {
			log.Printf("[Worker] Job %s failed: %v", job.ID, err)
		}
	}
}

func (w *Worker) handleGenerateBatch(ctx context.Context, job *queue.Job) error {
	if job.Request == nil {
		w.failBatch(ctx, job, fmt.Errorf("job %s carries no generation request", job.ID))
		return fmt.Errorf("job %s carries no generation request", job.ID)
	}

	if err := w.db.UpdateBatchStatus(ctx, job.BatchID, models.BatchStatusGenerating); err != nil {
		return fmt.Errorf("failed to mark batch %s generating: %w", job.BatchID, err)
	}

	var (
		report *models.BatchReport
		err    error
	)
	switch job.MediaKind {
	case models.MediaKindVideo:
		report, err = w.orchestrator.RunVideoBatch(ctx, job.BatchID, job.Request)
	default:
		report, err = w.orchestrator.RunImageBatch(ctx, job.BatchID, job.Request)
	}
	if err != nil {
		w.failBatch(ctx, job, err)
		return fmt.Errorf("batch %s aborted: %w", job.BatchID, err)
	}

	if report.CostInfo != nil {
		if dbErr := w.db.UpdateBatchCost(ctx, job.BatchID, CostToJSONB(report.CostInfo)); dbErr != nil {
			log.Printf("[Worker] Failed to persist cost for batch %s: %v", job.BatchID, dbErr)
		}
	}

	// Persist the full per-task outcome list. The report endpoint serves
	// failed tasks and degraded languages from here, not from artifact rows.
	if dbErr := w.db.UpdateBatchResults(ctx, job.BatchID, ReportToJSONB(report)); dbErr != nil {
		log.Printf("[Worker] Failed to persist results for batch %s: %v", job.BatchID, dbErr)
	}

	// A batch with zero artifacts is failed; partial success still completes.
	status := models.BatchStatusCompleted
	if report.Successful == 0 {
		status = models.BatchStatusFailed
	}
	if dbErr := w.db.UpdateBatchStatus(ctx, job.BatchID, status); dbErr != nil {
		return fmt.Errorf("failed to finalize batch %s: %w", job.BatchID, dbErr)
	}

	log.Printf("[Worker] Batch %s done: %d/%d succeeded", job.BatchID, report.Successful, report.TotalRequested)
	return nil
}

// handleExtendBatch stretches every video of the batch to the target
// duration. Each video is extended in isolation so one transcode failure
// does not stop the rest.
func (w *Worker) handleExtendBatch(ctx context.Context, job *queue.Job) error {
	videos, err := w.store.ListBatchFiles(storage.DirVideos, job.BatchID)
	if err != nil {
		return fmt.Errorf("failed to list videos for batch %s: %w", job.BatchID, err)
	}
	if len(videos) == 0 {
		return fmt.Errorf("batch %s has no videos to extend", job.BatchID)
	}

	targets := extendTargets(videos)
	if len(targets) == 0 {
		log.Printf("[Worker] Batch %s: every video is already extended", job.BatchID)
		return nil
	}

	extended := 0
	for _, name := range targets {
		inputPath := filepath.Join(w.store.Root, storage.DirVideos, name)
		outName := ExtendedVideoName(name)
		outPath := filepath.Join(w.store.Root, storage.DirVideos, outName)

		result, err := w.extender.Extend(ctx, inputPath, outPath)
		if err != nil {
			log.Printf("[Worker] Failed to extend %s: %v", name, err)
			continue
		}
		if result.AudioDropped {
			log.Printf("[Worker] Extended %s without audio", name)
		}

		w.persistArtifact(ctx, &models.Artifact{
			ID:           uuid.New(),
			BatchID:      job.BatchID,
			Kind:         models.ArtifactKindExtendedVideo,
			Language:     LanguageFromVideoName(name, job.BatchID),
			FilePath:     result.OutputPath,
			URL:          w.store.URLFor(storage.DirVideos, outName),
			AudioDropped: result.AudioDropped,
		})
		extended++
	}

	log.Printf("[Worker] Batch %s: extended %d/%d videos", job.BatchID, extended, len(targets))
	return nil
}

func (w *Worker) failBatch(ctx context.Context, job *queue.Job, cause error) {
	if err := w.db.UpdateBatchError(ctx, job.BatchID, cause.Error()); err != nil {
		log.Printf("[Worker] Failed to record error for batch %s: %v", job.BatchID, err)
	}
}

func (w *Worker) persistArtifact(ctx context.Context, artifact *models.Artifact) {
	if err := w.db.CreateArtifact(ctx, artifact); err != nil {
		log.Printf("[Worker] Failed to record artifact %s (%s): %v", artifact.ID, artifact.Kind, err)
	}
}
