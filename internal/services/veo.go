package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"google.golang.org/genai"
)

// ---------------------------------------------------------------------------
// Veo video generation service.
// Starts a long-running generation operation and polls it on a fixed
// interval up to a hard attempt ceiling. The poll loop is an explicit state
// machine driven by an injectable clock so tests can simulate time.
// ---------------------------------------------------------------------------

const defaultVeoModel = "veo-3.1-generate-preview"

// ErrPollingTimeout marks a video task that exhausted its poll attempts on
// a stuck remote operation. Distinguishable from synthesis failures so the
// batch report can name the reason.
var ErrPollingTimeout = errors.New("video operation polling timed out")

// OperationState tracks where a long-running video operation is in its
// lifecycle.
type OperationState string

const (
	OperationStarted  OperationState = "started"
	OperationPolling  OperationState = "polling"
	OperationDone     OperationState = "done"
	OperationFailed   OperationState = "failed"
	OperationTimedOut OperationState = "timed_out"
)

// Clock abstracts timer waits so the poll loop can be tested without real
// delays.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// videoOperator abstracts the genai client calls the poll loop needs.
type videoOperator interface {
	Start(ctx context.Context, model, prompt, aspectRatio string) (*genai.GenerateVideosOperation, error)
	Poll(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error)
	Download(ctx context.Context, video *genai.Video) ([]byte, error)
}

type VeoService struct {
	apiKey       string
	model        string
	pollInterval time.Duration
	maxAttempts  int
	clock        Clock
	operator     videoOperator // nil = build a real genai-backed operator per call
}

func NewVeoService(apiKey, model string, pollInterval time.Duration, maxAttempts int) *VeoService {
	if model == "" {
		model = defaultVeoModel
	}
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 60
	}
	return &VeoService{
		apiKey:       apiKey,
		model:        model,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
		clock:        realClock{},
	}
}

// GenerateVideo starts a Veo operation for the prompt and polls it to
// completion. It blocks the calling goroutine; each batch task runs in its
// own goroutine inside the pool.
func (s *VeoService) GenerateVideo(ctx context.Context, prompt, aspectRatio string) ([]byte, error) {
	op := s.operator
	if op == nil {
		real, err := newGenaiOperator(ctx, s.apiKey)
		if err != nil {
			return nil, err
		}
		op = real
	}

	operation, err := op.Start(ctx, s.model, prompt, aspectRatio)
	if err != nil {
		return nil, fmt.Errorf("failed to start video generation: %w", err)
	}

	state := OperationStarted
	log.Printf("[Veo] Operation started: %s (model=%s, promptLen=%d)", operation.Name, s.model, len(prompt))

	attempts := 0
	for !operation.Done {
		if attempts >= s.maxAttempts {
			state = OperationTimedOut
			log.Printf("[Veo] Operation %s state=%s after %d polls", operation.Name, state, attempts)
			return nil, fmt.Errorf("%w after %d attempts (interval %v)", ErrPollingTimeout, attempts, s.pollInterval)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("video generation cancelled: %w", ctx.Err())
		case <-s.clock.After(s.pollInterval):
		}

		state = OperationPolling
		attempts++
		operation, err = op.Poll(ctx, operation)
		if err != nil {
			return nil, fmt.Errorf("failed to poll operation (attempt %d): %w", attempts, err)
		}

		log.Printf("[Veo] Poll %d/%d: done=%v", attempts, s.maxAttempts, operation.Done)
	}

	if len(operation.Error) > 0 {
		state = OperationFailed
		errJSON, _ := json.Marshal(operation.Error)
		log.Printf("[Veo] Operation %s state=%s", operation.Name, state)
		return nil, fmt.Errorf("video generation operation failed: %s", string(errJSON))
	}

	if operation.Response == nil || len(operation.Response.GeneratedVideos) == 0 {
		state = OperationFailed
		return nil, fmt.Errorf("no videos in completed operation after %d polls (state=%s)", attempts, state)
	}

	video := operation.Response.GeneratedVideos[0]
	if video.Video == nil {
		return nil, fmt.Errorf("generated video object is nil")
	}

	state = OperationDone
	log.Printf("[Veo] Operation %s state=%s, downloading...", operation.Name, state)

	videoBytes, err := op.Download(ctx, video.Video)
	if err != nil {
		return nil, fmt.Errorf("failed to download generated video: %w", err)
	}

	if len(videoBytes) == 0 {
		return nil, fmt.Errorf("downloaded video is empty (0 bytes)")
	}

	log.Printf("[Veo] Video generated successfully (%d bytes, %d polls)", len(videoBytes), attempts)
	return videoBytes, nil
}

// genaiOperator is the real operator backed by the Google Gen AI SDK.
type genaiOperator struct {
	client *genai.Client
}

func newGenaiOperator(ctx context.Context, apiKey string) (*genaiOperator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &genaiOperator{client: client}, nil
}

func (g *genaiOperator) Start(ctx context.Context, model, prompt, aspectRatio string) (*genai.GenerateVideosOperation, error) {
	config := &genai.GenerateVideosConfig{
		AspectRatio:    aspectRatio,
		NumberOfVideos: 1,
	}
	return g.client.Models.GenerateVideos(ctx, model, prompt, nil, config)
}

func (g *genaiOperator) Poll(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	return g.client.Operations.GetVideosOperation(ctx, op, nil)
}

func (g *genaiOperator) Download(ctx context.Context, video *genai.Video) ([]byte, error) {
	return g.client.Files.Download(ctx, genai.NewDownloadURIFromVideo(video), nil)
}
