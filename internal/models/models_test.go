package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONBMarshal(t *testing.T) {
	j := JSONB{
		"model":          "gemini-2.5-flash-image",
		"estimated_cost": "<$0.01",
	}

	data, err := j.Value()
	if err != nil {
		t.Fatalf("failed to marshal JSONB: %v", err)
	}

	if data == nil {
		t.Fatal("expected non-nil data")
	}

	// Verify it's valid JSON
	var result map[string]interface{}
	if err := json.Unmarshal(data.([]byte), &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["estimated_cost"] != "<$0.01" {
		t.Errorf("expected estimated_cost=<$0.01, got %v", result["estimated_cost"])
	}
}

func TestJSONBScan(t *testing.T) {
	jsonData := []byte(`{"model": "veo-3.1-generate-preview", "total_cost": 0}`)

	var j JSONB
	if err := j.Scan(jsonData); err != nil {
		t.Fatalf("failed to scan: %v", err)
	}

	if j["model"] != "veo-3.1-generate-preview" {
		t.Errorf("expected model=veo-3.1-generate-preview, got %v", j["model"])
	}

	if j["total_cost"].(float64) != 0 {
		t.Errorf("expected total_cost=0, got %v", j["total_cost"])
	}
}

func TestJSONBScanNil(t *testing.T) {
	var j JSONB
	if err := j.Scan(nil); err != nil {
		t.Fatalf("failed to scan nil: %v", err)
	}
	if j != nil {
		t.Errorf("expected nil JSONB, got %v", j)
	}
}

func TestBatchStatus(t *testing.T) {
	statuses := []BatchStatus{
		BatchStatusQueued,
		BatchStatusGenerating,
		BatchStatusCompleted,
		BatchStatusFailed,
	}

	for _, s := range statuses {
		if s == "" {
			t.Error("batch status should not be empty")
		}
	}
}

func TestTaskResultSucceeded(t *testing.T) {
	ok := TaskResult{Language: "english", Variation: 1, URL: "/generated/x.png"}
	if !ok.Succeeded() {
		t.Error("result with URL and no error should be a success")
	}

	failed := TaskResult{Language: "english", Variation: 2, Error: "synthesis failed", Reason: FailureReasonSynthesis}
	if failed.Succeeded() {
		t.Error("result with an error should not be a success")
	}
}

func TestFailureReasonsAreDistinct(t *testing.T) {
	reasons := []string{
		FailureReasonSynthesis,
		FailureReasonNoImageData,
		FailureReasonPersistence,
		FailureReasonPollTimeout,
		FailureReasonCancelled,
	}

	seen := make(map[string]bool)
	for _, r := range reasons {
		if seen[r] {
			t.Errorf("duplicate failure reason %q", r)
		}
		seen[r] = true
	}
}

func TestArtifactAudioDroppedFlag(t *testing.T) {
	a := Artifact{Kind: ArtifactKindExtendedVideo, AudioDropped: true}

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("failed to marshal artifact: %v", err)
	}
	if !strings.Contains(string(data), `"audio_dropped":true`) {
		t.Error("expected audio_dropped flag in JSON output")
	}

	a.AudioDropped = false
	data, err = json.Marshal(a)
	if err != nil {
		t.Fatalf("failed to marshal artifact: %v", err)
	}
	if strings.Contains(string(data), "audio_dropped") {
		t.Error("expected audio_dropped to be omitted when false")
	}
}
