package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Enums

type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

type BatchStatus string

const (
	BatchStatusQueued     BatchStatus = "queued"
	BatchStatusGenerating BatchStatus = "generating"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
)

type ArtifactKind string

const (
	ArtifactKindImage            ArtifactKind = "image"
	ArtifactKindVideo            ArtifactKind = "video"
	ArtifactKindWatermarkedImage ArtifactKind = "watermarked_image"
	ArtifactKindWatermarkedVideo ArtifactKind = "watermarked_video"
	ArtifactKindExtendedVideo    ArtifactKind = "extended_video"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Models

// Session is one uploaded source image plus the analysis derived from it.
// Batches hang off a session so the UI can show everything generated from
// the same upload.
type Session struct {
	ID                 uuid.UUID `json:"id"`
	Title              string    `json:"title"`
	Description        *string   `json:"description,omitempty"`
	ExtractedText      *string   `json:"extracted_text,omitempty"`
	TextLanguage       *string   `json:"text_language,omitempty"`
	EnglishTranslation *string   `json:"english_translation,omitempty"`
	ArtifactCount      int       `json:"artifact_count"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Batch is one orchestration run producing language×variation generation
// tasks that share a batch ID. Identity is immutable; results are appended
// as tasks complete and the batch is terminal once every task has resolved.
type Batch struct {
	ID             uuid.UUID   `json:"id"`
	SessionID      *uuid.UUID  `json:"session_id,omitempty"`
	MediaKind      MediaKind   `json:"media_kind"`
	TotalRequested int         `json:"total_requested"`
	Status         BatchStatus `json:"status"`
	CostInfo       JSONB       `json:"cost_info,omitempty"`
	Results        JSONB       `json:"results,omitempty"`
	ErrorMessage   *string     `json:"error_message,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Artifact is one persisted generation output, correlated to its task by
// (batch, language, variation) and named by the batch-scoped file stem.
type Artifact struct {
	ID           uuid.UUID    `json:"id"`
	BatchID      uuid.UUID    `json:"batch_id"`
	SessionID    *uuid.UUID   `json:"session_id,omitempty"`
	Kind         ArtifactKind `json:"kind"`
	Language     string       `json:"language"`
	Variation    int          `json:"variation"`
	Style        *string      `json:"style,omitempty"`
	FontStyle    *string      `json:"font_style,omitempty"`
	Orientation  *string      `json:"orientation,omitempty"`
	Resolution   *string      `json:"resolution,omitempty"`
	FilePath     string       `json:"file_path"`
	URL          string       `json:"url"`
	AudioDropped bool         `json:"audio_dropped,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Per-task failure reasons, recorded so the report can distinguish why a
// slot has no artifact.
const (
	FailureReasonSynthesis   = "synthesis_failed"
	FailureReasonNoImageData = "no_image_data"
	FailureReasonPersistence = "persistence_failed"
	FailureReasonPollTimeout = "polling_timed_out"
	FailureReasonCancelled   = "batch_cancelled"
)

// TaskResult is the outcome of exactly one generation task. Either URL is
// set (success) or Error is set (failure), never both.
type TaskResult struct {
	Language  string  `json:"language"`
	Variation int     `json:"variation"`
	Style     string  `json:"style,omitempty"`
	Filename  string  `json:"filename,omitempty"`
	URL       string  `json:"url,omitempty"`
	Error     string  `json:"error,omitempty"`
	Reason    string  `json:"reason,omitempty"`
	Watermark *string `json:"watermark_text,omitempty"`
}

// Succeeded reports whether this task produced an artifact.
func (r TaskResult) Succeeded() bool {
	return r.Error == ""
}

// CostInfo is the estimated API spend for one operation or batch.
type CostInfo struct {
	Model             string  `json:"model"`
	InputTokens       int     `json:"input_tokens"`
	OutputTokens      int     `json:"output_tokens"`
	TotalCost         float64 `json:"total_cost"`
	EstimatedCost     string  `json:"estimated_cost"`
	ActualGenerations int     `json:"actual_generations,omitempty"`
}

// BatchReport is the aggregate output contract for one batch run. It is
// only assembled after every requested task has produced a TaskResult.
type BatchReport struct {
	BatchID             uuid.UUID       `json:"batchId"`
	MediaKind           MediaKind       `json:"mediaKind"`
	TotalRequested      int             `json:"totalRequested"`
	Successful          int             `json:"successful"`
	Failed              int             `json:"failed"`
	Results             []TaskResult    `json:"results"`
	TranslationDegraded map[string]bool `json:"translationDegraded,omitempty"`
	CostInfo            *CostInfo       `json:"costInfo,omitempty"`
	Terminal            bool            `json:"terminal"`
}

// WatermarkPlacement is the position and tilt of one rendered mark, in
// pixel coordinates of the source image.
type WatermarkPlacement struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
}

// API request/response shapes

type AnalysisResult struct {
	Description        string  `json:"description"`
	ExtractedText      string  `json:"extracted_text"`
	TextLanguage       string  `json:"text_language"`
	EnglishTranslation *string `json:"english_translation,omitempty"`
}

type AnalyzeResponse struct {
	SessionID uuid.UUID `json:"sessionId"`
	AnalysisResult
	CostInfo *CostInfo `json:"costInfo,omitempty"`
}

// GenerationRequest is the accepted, immutable input for one batch.
type GenerationRequest struct {
	Description           string     `json:"description"`
	OriginalText          string     `json:"originalText,omitempty"`
	Languages             []string   `json:"languages"`
	VariationsPerLanguage int        `json:"variationsPerLanguage"`
	SessionID             *uuid.UUID `json:"sessionId,omitempty"`
	FontStyle             string     `json:"fontStyle,omitempty"`
	TextSize              string     `json:"textSize,omitempty"`
	Orientation           string     `json:"orientation,omitempty"`
	Resolution            string     `json:"resolution,omitempty"`
	WatermarkText         string     `json:"watermarkText,omitempty"`
}

type CreateBatchResponse struct {
	BatchID        uuid.UUID   `json:"batchId"`
	MediaKind      MediaKind   `json:"mediaKind"`
	TotalRequested int         `json:"totalRequested"`
	Status         BatchStatus `json:"status"`
}

type WatermarkRequest struct {
	ImagePath     string `json:"imagePath"`
	WatermarkText string `json:"watermarkText"`
	Opacity       int    `json:"opacity,omitempty"`
}

type WatermarkResponse struct {
	WatermarkedURL string               `json:"watermarkedUrl"`
	Placements     []WatermarkPlacement `json:"positions"`
}

type ExtendBatchResponse struct {
	BatchID uuid.UUID `json:"batchId"`
	Status  string    `json:"status"`
}
