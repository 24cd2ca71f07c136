package services

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestApplyReturnsThreePlacementsInsideMargins(t *testing.T) {
	c, err := NewWatermarkCompositorWithRand(rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	src := solidImage(400, 300, color.Black)
	_, placements, err := c.Apply(src, "Gardening Tips and Trick", 40)
	require.NoError(t, err)
	require.Len(t, placements, watermarkMarkCount)

	for _, p := range placements {
		assert.GreaterOrEqual(t, p.X, 0.1*400)
		assert.LessOrEqual(t, p.X, 0.9*400)
		assert.GreaterOrEqual(t, p.Y, 0.1*300)
		assert.LessOrEqual(t, p.Y, 0.9*300)
		assert.GreaterOrEqual(t, p.Rotation, -watermarkMaxRotation)
		assert.LessOrEqual(t, p.Rotation, watermarkMaxRotation)
	}
}

func TestApplyModifiesPixels(t *testing.T) {
	c, err := NewWatermarkCompositorWithRand(rand.New(rand.NewSource(2)))
	require.NoError(t, err)

	src := solidImage(200, 200, color.Black)
	out, _, err := c.Apply(src, "MARK", 100)
	require.NoError(t, err)

	changed := false
	bounds := out.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y && !changed; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := out.At(x, y).RGBA()
			if r != 0 || g != 0 || b != 0 {
				changed = true
				break
			}
		}
	}
	assert.True(t, changed, "watermark text should alter at least one pixel")
}

func TestApplyLeavesSourceUntouched(t *testing.T) {
	c, err := NewWatermarkCompositorWithRand(rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	src := solidImage(120, 120, color.Black)
	_, _, err = c.Apply(src, "MARK", 100)
	require.NoError(t, err)

	for y := 0; y < 120; y++ {
		for x := 0; x < 120; x++ {
			r, g, b, _ := src.At(x, y).RGBA()
			if r != 0 || g != 0 || b != 0 {
				t.Fatalf("source pixel (%d,%d) was modified", x, y)
			}
		}
	}
}

func TestApplyRegenerationResamplesPlacements(t *testing.T) {
	c, err := NewWatermarkCompositorWithRand(rand.New(rand.NewSource(4)))
	require.NoError(t, err)

	src := solidImage(300, 300, color.White)

	_, first, err := c.Apply(src, "MARK", 40)
	require.NoError(t, err)
	_, second, err := c.Apply(src, "MARK", 40)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestApplyRejectsEmptyText(t *testing.T) {
	c, err := NewWatermarkCompositorWithRand(rand.New(rand.NewSource(5)))
	require.NoError(t, err)

	_, _, err = c.Apply(solidImage(50, 50, color.White), "", 40)
	assert.Error(t, err)
}

func TestApplyClampsOpacityToDefault(t *testing.T) {
	c, err := NewWatermarkCompositorWithRand(rand.New(rand.NewSource(6)))
	require.NoError(t, err)

	src := solidImage(100, 100, color.Black)

	_, _, err = c.Apply(src, "MARK", 0)
	assert.NoError(t, err)
	_, _, err = c.Apply(src, "MARK", 150)
	assert.NoError(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	src := solidImage(10, 10, color.RGBA{R: 200, G: 10, B: 30, A: 255})

	data, err := EncodePNG(src)
	require.NoError(t, err)

	decoded, err := DecodeImage(data)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), decoded.Bounds())
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	_, err := DecodeImage([]byte("not an image"))
	assert.Error(t, err)
}
