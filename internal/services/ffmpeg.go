package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
)

// ---------------------------------------------------------------------------
// FFmpeg-backed video transforms: duration extension (time-stretch) and
// drawtext watermark burn-in. The binary is invoked behind narrow interfaces
// so the orchestration logic is testable without ffmpeg installed.
// ---------------------------------------------------------------------------

// CommandRunner executes an external command. Tests inject a fake to capture
// the argument lists instead of spawning processes.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// StretchSpec describes a uniform time-stretch from a fixed source duration
// to a longer target duration at a fixed output frame rate.
type StretchSpec struct {
	SourceDuration float64 // seconds
	TargetDuration float64 // seconds
	FPS            int
}

// Factor is the video time-stretch multiplier (>1 slows the picture down).
func (s StretchSpec) Factor() float64 {
	return s.TargetDuration / s.SourceDuration
}

// AudioTempo is the inverse factor applied to audio so picture and sound
// stay synchronized.
func (s StretchSpec) AudioTempo() float64 {
	return s.SourceDuration / s.TargetDuration
}

// Transcoder is the narrow surface the duration extender depends on.
type Transcoder interface {
	StretchWithAudio(ctx context.Context, inputPath, outputPath string, spec StretchSpec) error
	StretchVideoOnly(ctx context.Context, inputPath, outputPath string, spec StretchSpec) error
}

type FFmpegService struct {
	binPath string
	runner  CommandRunner
}

func NewFFmpegService() *FFmpegService {
	return &FFmpegService{binPath: "ffmpeg", runner: execRunner{}}
}

// NewFFmpegServiceWithRunner wires a custom runner; used by tests.
func NewFFmpegServiceWithRunner(binPath string, runner CommandRunner) *FFmpegService {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	return &FFmpegService{binPath: binPath, runner: runner}
}

// StretchWithAudio slows the video stream by spec.Factor() and resamples
// audio tempo by the inverse, padding audio to exactly the target duration.
// Output duration and frame rate are forced.
func (s *FFmpegService) StretchWithAudio(ctx context.Context, inputPath, outputPath string, spec StretchSpec) error {
	filter := fmt.Sprintf(
		"[0:v]setpts=%.6g*PTS,fps=%d[v];[0:a]atempo=%.6g,apad=whole_dur=%.6g[a]",
		spec.Factor(), spec.FPS, spec.AudioTempo(), spec.TargetDuration,
	)

	args := []string{
		"-i", inputPath,
		"-filter_complex", filter,
		"-map", "[v]",
		"-map", "[a]",
		"-t", fmt.Sprintf("%.6g", spec.TargetDuration),
		"-r", fmt.Sprintf("%d", spec.FPS),
		"-y",
		outputPath,
	}

	if err := s.runner.Run(ctx, s.binPath, args...); err != nil {
		return fmt.Errorf("ffmpeg stretch with audio failed: %w", err)
	}
	return nil
}

// StretchVideoOnly is the degraded transform: same time-stretch but audio is
// dropped entirely.
func (s *FFmpegService) StretchVideoOnly(ctx context.Context, inputPath, outputPath string, spec StretchSpec) error {
	args := []string{
		"-i", inputPath,
		"-filter:v", fmt.Sprintf("setpts=%.6g*PTS", spec.Factor()),
		"-an",
		"-t", fmt.Sprintf("%.6g", spec.TargetDuration),
		"-r", fmt.Sprintf("%d", spec.FPS),
		"-y",
		outputPath,
	}

	if err := s.runner.Run(ctx, s.binPath, args...); err != nil {
		return fmt.Errorf("ffmpeg stretch video-only failed: %w", err)
	}
	return nil
}

// DrawTextBanner burns a translated watermark banner into a video: white
// text on a half-opaque black box, bottom center. Audio is copied through.
func (s *FFmpegService) DrawTextBanner(ctx context.Context, inputPath, outputPath, text string) error {
	filter := fmt.Sprintf(
		"drawtext=text='%s':fontcolor=white:fontsize=24:box=1:boxcolor=black@0.5:boxborderw=5:x=(w-text_w)/2:y=h-50",
		escapeDrawtext(text),
	)

	args := []string{
		"-i", inputPath,
		"-vf", filter,
		"-codec:a", "copy",
		"-y",
		outputPath,
	}

	if err := s.runner.Run(ctx, s.binPath, args...); err != nil {
		return fmt.Errorf("ffmpeg drawtext failed: %w", err)
	}
	return nil
}

// escapeDrawtext escapes characters the drawtext filter treats specially.
func escapeDrawtext(text string) string {
	text = strings.ReplaceAll(text, "\\", "\\\\")
	text = strings.ReplaceAll(text, "'", "\\'")
	text = strings.ReplaceAll(text, ":", "\\:")
	text = strings.ReplaceAll(text, "%", "\\%")
	return text
}

// ---------------------------------------------------------------------------
// Duration extender
// ---------------------------------------------------------------------------

// ExtendResult reports one video's extension outcome. AudioDropped is true
// when the audio-aware transform failed and the video-only fallback was used.
type ExtendResult struct {
	OutputPath   string `json:"output_path"`
	AudioDropped bool   `json:"audio_dropped"`
}

// Extender time-stretches fixed-duration videos to a longer target. The
// primary transform keeps audio in sync; if it fails the fallback drops
// audio and the result is flagged. Both failing is that video's failure
// only; callers continue with sibling videos.
type Extender struct {
	transcoder Transcoder
	spec       StretchSpec
}

func NewExtender(transcoder Transcoder, spec StretchSpec) *Extender {
	if spec.SourceDuration <= 0 {
		spec.SourceDuration = 8
	}
	if spec.TargetDuration <= spec.SourceDuration {
		spec.TargetDuration = spec.SourceDuration + 2
	}
	if spec.FPS <= 0 {
		spec.FPS = 30
	}
	return &Extender{transcoder: transcoder, spec: spec}
}

func (e *Extender) Extend(ctx context.Context, inputPath, outputPath string) (ExtendResult, error) {
	primaryErr := e.transcoder.StretchWithAudio(ctx, inputPath, outputPath, e.spec)
	if primaryErr == nil {
		return ExtendResult{OutputPath: outputPath}, nil
	}

	log.Printf("[Extend] Primary transform failed for %s, retrying without audio: %v", inputPath, primaryErr)

	if err := e.transcoder.StretchVideoOnly(ctx, inputPath, outputPath, e.spec); err != nil {
		return ExtendResult{}, fmt.Errorf("extension failed (primary: %v): %w", primaryErr, err)
	}

	return ExtendResult{OutputPath: outputPath, AudioDropped: true}, nil
}
