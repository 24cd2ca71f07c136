package worker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRequest rejects malformed batch input before any task executes.
var ErrInvalidRequest = errors.New("invalid generation request")

// stylePalette is the fixed ordered palette of style descriptors. Style
// assignment is deterministic per variation index, independent of execution
// order, so re-running a batch reproduces the same styles.
var stylePalette = []string{
	"soft morning light with dew drops",
	"golden hour lighting with warm tones",
	"bright daylight with sharp details",
	"romantic sunset lighting",
	"ethereal backlighting with lens flare",
}

// GenerationTask is one (language, variation) unit of work, one synthesizer
// call. Overlay and watermark text are filled in from the translation cache
// before the task is dispatched.
type GenerationTask struct {
	Language      string
	Variation     int // 1-based
	Style         string
	OverlayText   string
	WatermarkText string
}

// StyleForVariation selects from the palette by (variation-1) mod size.
func StyleForVariation(variation int) string {
	return stylePalette[(variation-1)%len(stylePalette)]
}

// ExpandTasks turns the language list and variation count into exactly
// L×V tasks, grouped by language then variation (language order as given,
// variations ascending). Duplicate languages are dropped, keeping the first
// occurrence.
func ExpandTasks(languages []string, variationsPerLanguage int) ([]GenerationTask, error) {
	langs := dedupeLanguages(languages)
	if len(langs) == 0 {
		return nil, fmt.Errorf("%w: at least one language is required", ErrInvalidRequest)
	}
	if variationsPerLanguage < 1 {
		return nil, fmt.Errorf("%w: variationsPerLanguage must be positive, got %d", ErrInvalidRequest, variationsPerLanguage)
	}

	tasks := make([]GenerationTask, 0, len(langs)*variationsPerLanguage)
	for _, language := range langs {
		for variation := 1; variation <= variationsPerLanguage; variation++ {
			tasks = append(tasks, GenerationTask{
				Language:  language,
				Variation: variation,
				Style:     StyleForVariation(variation),
			})
		}
	}

	return tasks, nil
}

func dedupeLanguages(languages []string) []string {
	seen := make(map[string]bool, len(languages))
	out := make([]string, 0, len(languages))
	for _, l := range languages {
		norm := strings.ToLower(strings.TrimSpace(l))
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, norm)
	}
	return out
}
