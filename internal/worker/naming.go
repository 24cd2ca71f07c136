package worker

import (
	"fmt"
	"strings"
	"time"

	"github.com/dkarlovi/babelshot/internal/storage"
	"github.com/google/uuid"
)

// Artifact naming: batch-scoped stems that are unique within a batch by
// construction, so concurrent writers never collide and a result can always
// be correlated back to its (language, variation) task. Naming is idempotent
// except watermark regeneration, which gets a timestamp token so each
// regeneration produces a new comparable artifact.

// ImageStem names one generated image: {batchId}_{language}_v{variation}.
func ImageStem(batchID uuid.UUID, language string, variation int) string {
	return fmt.Sprintf("%s_%s_v%d", batchID, sanitizeLanguage(language), variation)
}

// VideoStem names one generated video: {batchId}_{language}.
func VideoStem(batchID uuid.UUID, language string) string {
	return fmt.Sprintf("%s_%s", batchID, sanitizeLanguage(language))
}

// WatermarkedVideoName derives the drawtext-banner output from the plain
// video filename.
func WatermarkedVideoName(videoFilename string) string {
	return strings.TrimSuffix(videoFilename, ".mp4") + "_watermarked.mp4"
}

// ExtendedVideoName derives the duration-extended output filename.
func ExtendedVideoName(videoFilename string) string {
	return strings.TrimSuffix(videoFilename, ".mp4") + "_extended.mp4"
}

// extendTargets picks which of a batch's clips to stretch. Extension
// outputs are never inputs again, a clip whose extension already landed on
// disk is skipped, and when a watermarked variant exists it is preferred
// over the plain clip so only the reported video gets extended.
func extendTargets(names []string) []string {
	have := make(map[string]bool, len(names))
	for _, n := range names {
		have[n] = true
	}

	var targets []string
	for _, n := range names {
		if strings.HasSuffix(n, "_extended.mp4") {
			continue
		}
		if !strings.HasSuffix(n, "_watermarked.mp4") && have[WatermarkedVideoName(n)] {
			continue
		}
		if have[ExtendedVideoName(n)] {
			continue
		}
		targets = append(targets, n)
	}
	return targets
}

// WatermarkedImageName appends a unix-millis token so regenerating a
// watermark never overwrites a prior version; the UI compares them.
func WatermarkedImageName(originalStem string, now time.Time) string {
	return fmt.Sprintf("%s_watermarked_%d.png", originalStem, now.UnixMilli())
}

// ParseImageStem inverts ImageStem. Returns ok=false when the stem does
// not carry the {batchId}_{language}_v{variation} shape.
func ParseImageStem(stem string) (batchID uuid.UUID, language string, variation int, ok bool) {
	if len(stem) < 37 {
		return uuid.Nil, "", 0, false
	}
	batchID, err := uuid.Parse(stem[:36])
	if err != nil || stem[36] != '_' {
		return uuid.Nil, "", 0, false
	}
	rest := stem[37:]

	sep := strings.LastIndex(rest, "_v")
	if sep <= 0 {
		return uuid.Nil, "", 0, false
	}
	var v int
	if _, err := fmt.Sscanf(rest[sep+2:], "%d", &v); err != nil || v < 1 {
		return uuid.Nil, "", 0, false
	}
	return batchID, rest[:sep], v, true
}

// LanguageFromVideoName recovers the language token from a batch video
// filename ({batchId}_{language}[_suffix].mp4). Returns "unknown" when the
// name does not carry the batch prefix.
func LanguageFromVideoName(filename string, batchID uuid.UUID) string {
	stem := strings.TrimSuffix(filename, ".mp4")
	stem = strings.TrimSuffix(stem, "_watermarked")
	stem = strings.TrimSuffix(stem, "_extended")

	prefix := batchID.String() + "_"
	if !strings.HasPrefix(stem, prefix) {
		return "unknown"
	}
	return strings.TrimPrefix(stem, prefix)
}

func sanitizeLanguage(language string) string {
	clean := storage.SanitizeName(strings.ToLower(language))
	if clean == "" {
		clean = "unknown"
	}
	return clean
}
