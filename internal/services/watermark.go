package services

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"math/rand"
	"sync"
	"time"

	"github.com/dkarlovi/babelshot/internal/models"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Watermark geometry: marks stay inside the central 80% of the image so
// they survive edge crops, with a slight random tilt for visual variety.
const (
	watermarkMarkCount   = 3
	watermarkEdgeMargin  = 0.1  // fraction of each dimension kept clear
	watermarkMaxRotation = 0.15 // radians, either direction
	watermarkFontScale   = 0.04 // font size = scale × min(W, H)

	defaultWatermarkOpacity = 40
)

// WatermarkCompositor overlays translated marker text onto raster images at
// randomized, edge-avoiding positions. The randomness source is injected so
// tests can seed it; placements are resampled fresh on every call, never
// persisted.
type WatermarkCompositor struct {
	mu   sync.Mutex
	rng  *rand.Rand
	font *opentype.Font
}

// NewWatermarkCompositor builds a compositor with its own time-seeded RNG.
func NewWatermarkCompositor() (*WatermarkCompositor, error) {
	return NewWatermarkCompositorWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewWatermarkCompositorWithRand wires an explicit randomness source.
func NewWatermarkCompositorWithRand(rng *rand.Rand) (*WatermarkCompositor, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse watermark font: %w", err)
	}
	return &WatermarkCompositor{rng: rng, font: f}, nil
}

// Apply renders exactly three marks of text over a copy of src and returns
// the composited image along with the placements used. The source image is
// never modified. opacityPercent outside (0,100] falls back to the default.
func (c *WatermarkCompositor) Apply(src image.Image, text string, opacityPercent int) (image.Image, []models.WatermarkPlacement, error) {
	if text == "" {
		return nil, nil, fmt.Errorf("watermark text is required")
	}
	if opacityPercent <= 0 || opacityPercent > 100 {
		opacityPercent = defaultWatermarkOpacity
	}

	bounds := src.Bounds()
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())
	if w < 1 || h < 1 {
		return nil, nil, fmt.Errorf("image has no pixels")
	}

	fontSize := watermarkFontScale * min(w, h)
	face, err := opentype.NewFace(c.font, &opentype.FaceOptions{
		Size: fontSize,
		DPI:  72,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build watermark font face: %w", err)
	}
	defer face.Close()

	placements := c.samplePlacements(w, h)

	dc := gg.NewContextForImage(src)
	dc.SetFontFace(face)

	alpha := float64(opacityPercent) / 100

	for _, p := range placements {
		dc.Push()
		dc.RotateAbout(p.Rotation, p.X, p.Y)

		// Darker outline first, then the semi-transparent fill on top, so
		// the mark stays legible against varied backgrounds.
		dc.SetRGBA(0, 0, 0, 0.5*alpha)
		for _, off := range outlineOffsets {
			dc.DrawStringAnchored(text, p.X+off[0], p.Y+off[1], 0.5, 0.5)
		}

		dc.SetRGBA(1, 1, 1, alpha)
		dc.DrawStringAnchored(text, p.X, p.Y, 0.5, 0.5)

		dc.Pop()
	}

	return dc.Image(), placements, nil
}

// outlineOffsets approximate a 2px text stroke by repeating the string
// around the fill position.
var outlineOffsets = [][2]float64{
	{-2, 0}, {2, 0}, {0, -2}, {0, 2},
	{-1.5, -1.5}, {1.5, -1.5}, {-1.5, 1.5}, {1.5, 1.5},
}

// samplePlacements draws three independent uniform placements inside the
// edge margins. Each call is a fresh sample; regeneration shares no state
// with prior placements.
func (c *WatermarkCompositor) samplePlacements(w, h float64) []models.WatermarkPlacement {
	c.mu.Lock()
	defer c.mu.Unlock()

	placements := make([]models.WatermarkPlacement, watermarkMarkCount)
	for i := range placements {
		placements[i] = models.WatermarkPlacement{
			X:        watermarkEdgeMargin*w + c.rng.Float64()*(1-2*watermarkEdgeMargin)*w,
			Y:        watermarkEdgeMargin*h + c.rng.Float64()*(1-2*watermarkEdgeMargin)*h,
			Rotation: (c.rng.Float64() - 0.5) * 2 * watermarkMaxRotation,
		}
	}
	return placements
}

// DecodeImage decodes PNG or JPEG bytes.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// EncodePNG encodes an image as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
