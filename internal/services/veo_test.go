package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// fakeClock fires timers immediately so poll loops run without real delays.
type fakeClock struct {
	waits int
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.waits++
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

// stuckClock never fires, so cancellation is the only way out of a wait.
type stuckClock struct{}

func (stuckClock) After(d time.Duration) <-chan time.Time {
	return make(chan time.Time)
}

// fakeOperator scripts the operation lifecycle: done after N polls.
type fakeOperator struct {
	doneAfter int
	polls     int
	videoData []byte
	startErr  error
	pollErr   error
	opError   map[string]any
	noVideos  bool
}

func (f *fakeOperator) Start(ctx context.Context, model, prompt, aspectRatio string) (*genai.GenerateVideosOperation, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &genai.GenerateVideosOperation{Name: "operations/test", Done: f.doneAfter == 0}, nil
}

func (f *fakeOperator) Poll(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	f.polls++
	next := &genai.GenerateVideosOperation{Name: op.Name}
	if f.polls >= f.doneAfter {
		next.Done = true
		next.Error = f.opError
		if f.opError == nil && !f.noVideos {
			next.Response = &genai.GenerateVideosResponse{
				GeneratedVideos: []*genai.GeneratedVideo{
					{Video: &genai.Video{URI: "https://example.invalid/video"}},
				},
			}
		}
	}
	return next, nil
}

func (f *fakeOperator) Download(ctx context.Context, video *genai.Video) ([]byte, error) {
	return f.videoData, nil
}

func newTestVeo(op videoOperator, clock Clock, maxAttempts int) *VeoService {
	return &VeoService{
		model:        defaultVeoModel,
		pollInterval: 5 * time.Second,
		maxAttempts:  maxAttempts,
		clock:        clock,
		operator:     op,
	}
}

func TestGenerateVideoCompletesAfterPolling(t *testing.T) {
	op := &fakeOperator{doneAfter: 3, videoData: []byte("mp4")}
	clock := &fakeClock{}
	svc := newTestVeo(op, clock, 60)

	data, err := svc.GenerateVideo(context.Background(), "a garden tour", "16:9")
	require.NoError(t, err)

	assert.Equal(t, []byte("mp4"), data)
	assert.Equal(t, 3, op.polls)
	assert.Equal(t, 3, clock.waits)
}

func TestGenerateVideoTimesOutAfterMaxAttempts(t *testing.T) {
	op := &fakeOperator{doneAfter: 100}
	svc := newTestVeo(op, &fakeClock{}, 5)

	_, err := svc.GenerateVideo(context.Background(), "a garden tour", "16:9")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPollingTimeout))
	assert.Equal(t, 5, op.polls)
}

func TestGenerateVideoStartFailure(t *testing.T) {
	op := &fakeOperator{startErr: errors.New("quota exceeded")}
	svc := newTestVeo(op, &fakeClock{}, 60)

	_, err := svc.GenerateVideo(context.Background(), "a garden tour", "16:9")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrPollingTimeout))
}

func TestGenerateVideoOperationError(t *testing.T) {
	op := &fakeOperator{doneAfter: 1, opError: map[string]any{"code": 13, "message": "internal"}}
	svc := newTestVeo(op, &fakeClock{}, 60)

	_, err := svc.GenerateVideo(context.Background(), "a garden tour", "16:9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operation failed")
}

func TestGenerateVideoNoVideosInResponse(t *testing.T) {
	op := &fakeOperator{doneAfter: 1, noVideos: true}
	svc := newTestVeo(op, &fakeClock{}, 60)

	_, err := svc.GenerateVideo(context.Background(), "a garden tour", "16:9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no videos")
}

func TestGenerateVideoEmptyDownload(t *testing.T) {
	op := &fakeOperator{doneAfter: 1, videoData: nil}
	svc := newTestVeo(op, &fakeClock{}, 60)

	_, err := svc.GenerateVideo(context.Background(), "a garden tour", "16:9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestGenerateVideoCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	op := &fakeOperator{doneAfter: 10}
	svc := newTestVeo(op, stuckClock{}, 60)

	_, err := svc.GenerateVideo(ctx, "a garden tour", "16:9")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewVeoServiceDefaults(t *testing.T) {
	svc := NewVeoService("key", "", 0, 0)

	assert.Equal(t, defaultVeoModel, svc.model)
	assert.Equal(t, 5*time.Second, svc.pollInterval)
	assert.Equal(t, 60, svc.maxAttempts)
}
