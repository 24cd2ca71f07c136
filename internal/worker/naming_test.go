package worker

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageStem(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")

	assert.Equal(t, "11111111-2222-3333-4444-555555555555_french_v2", ImageStem(id, "french", 2))
}

func TestImageStemSanitizesLanguage(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")

	stem := ImageStem(id, "Français!", 1)
	assert.NotContains(t, stem, "!")

	stem = ImageStem(id, "///", 1)
	assert.Contains(t, stem, "unknown")
}

func TestVideoNames(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")

	stem := VideoStem(id, "german")
	assert.Equal(t, "11111111-2222-3333-4444-555555555555_german", stem)

	assert.Equal(t, stem+"_watermarked.mp4", WatermarkedVideoName(stem+".mp4"))
	assert.Equal(t, stem+"_extended.mp4", ExtendedVideoName(stem+".mp4"))
}

func TestWatermarkedImageNameCarriesTimestamp(t *testing.T) {
	now := time.UnixMilli(1700000000000)

	assert.Equal(t, "stem_watermarked_1700000000000.png", WatermarkedImageName("stem", now))

	// Regeneration a moment later yields a distinct name.
	later := WatermarkedImageName("stem", now.Add(time.Millisecond))
	assert.NotEqual(t, WatermarkedImageName("stem", now), later)
}

func TestParseImageStem(t *testing.T) {
	id := uuid.New()

	batchID, language, variation, ok := ParseImageStem(ImageStem(id, "french", 3))
	require.True(t, ok)
	assert.Equal(t, id, batchID)
	assert.Equal(t, "french", language)
	assert.Equal(t, 3, variation)
}

func TestParseImageStemRejectsMalformed(t *testing.T) {
	_, _, _, ok := ParseImageStem("not-a-stem")
	assert.False(t, ok)

	_, _, _, ok = ParseImageStem(uuid.New().String())
	assert.False(t, ok)

	_, _, _, ok = ParseImageStem(uuid.New().String() + "_frenchonly")
	assert.False(t, ok)
}

func TestLanguageFromVideoName(t *testing.T) {
	id := uuid.New()
	name := VideoStem(id, "spanish") + ".mp4"

	assert.Equal(t, "spanish", LanguageFromVideoName(name, id))
	assert.Equal(t, "spanish", LanguageFromVideoName(WatermarkedVideoName(name), id))
	assert.Equal(t, "spanish", LanguageFromVideoName(ExtendedVideoName(name), id))
	assert.Equal(t, "unknown", LanguageFromVideoName("random.mp4", id))
}

func TestExtendTargetsPrefersWatermarkedVariant(t *testing.T) {
	targets := extendTargets([]string{
		"b_french.mp4",
		"b_french_watermarked.mp4",
		"b_german.mp4",
	})

	// The watermarked clip is the reported one, so only it gets stretched;
	// German has no watermarked variant and is extended as-is.
	assert.Equal(t, []string{"b_french_watermarked.mp4", "b_german.mp4"}, targets)
}

func TestExtendTargetsSkipsExistingExtensions(t *testing.T) {
	targets := extendTargets([]string{
		"b_french.mp4",
		"b_french_extended.mp4",
		"b_german_watermarked.mp4",
		"b_german_watermarked_extended.mp4",
		"b_spanish.mp4",
	})

	require.Equal(t, []string{"b_spanish.mp4"}, targets)

	// A second pass over a fully extended batch is a no-op.
	assert.Empty(t, extendTargets([]string{"b_spanish.mp4", "b_spanish_extended.mp4"}))
}
