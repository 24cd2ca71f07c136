package worker

import (
	"fmt"
	"strings"
)

// Prompt composition is pure and deterministic: the synthesizer is
// non-deterministic, the prompt must not be.

// FormatOptions are the request's format controls. Unknown values fall back
// to a default descriptor instead of failing.
type FormatOptions struct {
	FontStyle   string
	TextSize    string
	Orientation string
	Resolution  string
}

var fontDescriptions = map[string]string{
	"sans-serif": "modern clean sans-serif font",
	"serif":      "elegant classic serif font",
	"mono":       "technical monospace font",
	"script":     "flowing script handwriting font",
	"display":    "bold display font",
	"condensed":  "tall condensed font",
}

const defaultFontDescription = "elegant font"

var textSizeDescriptions = map[string]string{
	"small":       "small, subtle text",
	"medium":      "medium-sized text",
	"large":       "large, prominent text",
	"extra-large": "very large, bold text",
}

const defaultTextSizeDescription = "large, prominent text"

var orientationPhrases = map[string]string{
	"portrait":  "vertical orientation, tall aspect ratio",
	"landscape": "horizontal orientation, wide aspect ratio",
	"square":    "square format, 1:1 aspect ratio",
}

const defaultOrientationPhrase = "square format, 1:1 aspect ratio"

// ComposeImagePrompt builds the full synthesizer prompt for one image task.
// Same inputs always yield the same string. The overlay instruction is only
// included when the source image actually carried text.
func ComposeImagePrompt(description, style, overlayText string, opts FormatOptions) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Create a photorealistic image based on: %s.\n", description)

	if overlayText != "" {
		fmt.Fprintf(&b, "Include this text overlay in %s with %s: %q\n",
			lookupOr(fontDescriptions, opts.FontStyle, defaultFontDescription),
			lookupOr(textSizeDescriptions, opts.TextSize, defaultTextSizeDescription),
			overlayText)
	}

	fmt.Fprintf(&b, "Style: %s.\n", style)
	fmt.Fprintf(&b, "Format: %s.\n", lookupOr(orientationPhrases, opts.Orientation, defaultOrientationPhrase))

	if opts.Resolution != "" {
		fmt.Fprintf(&b, "Resolution preference: %s.\n", opts.Resolution)
	}

	b.WriteString("Make it highly detailed, professional quality, with realistic lighting and textures.\n")
	b.WriteString("IMPORTANT: Do not add any logos, watermarks, URLs, or brand names to the generated image.")

	return b.String()
}

// ComposeVideoPrompt builds the synthesizer prompt for one video task.
func ComposeVideoPrompt(description, overlayText, language string, opts FormatOptions) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Create a high-quality video based on: %s.\n", description)

	if overlayText != "" {
		fmt.Fprintf(&b, "Include overlay text: %q\n", overlayText)
	}

	b.WriteString("Style: Cinematic, professional quality video with smooth camera movements.\n")
	fmt.Fprintf(&b, "Language context: %s\n", language)
	b.WriteString("Duration: 8 seconds\n")
	fmt.Fprintf(&b, "Orientation: %s\n", lookupOr(orientationPhrases, opts.Orientation, defaultOrientationPhrase))
	b.WriteString("Include natural ambient sounds and audio effects that match the scene.\n")
	b.WriteString("Do not add any logos, watermarks, URLs, or brand names to the generated video.")

	return b.String()
}

// AspectRatioFor maps an orientation to the synthesizer's aspect-ratio hint.
func AspectRatioFor(orientation string) string {
	switch orientation {
	case "landscape":
		return "16:9"
	case "portrait":
		return "9:16"
	default:
		return "1:1"
	}
}

func lookupOr(table map[string]string, key, fallback string) string {
	if v, ok := table[key]; ok {
		return v
	}
	return fallback
}
