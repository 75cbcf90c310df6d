package enhance

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plateLike(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// Light background with dark vertical strokes, roughly what a
			// plate crop looks like.
			v := uint8(220)
			if x%8 < 2 {
				v = 40
			}
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestEnhanceNilCrop(t *testing.T) {
	assert.Nil(t, Enhance(nil))
}

func TestEnhanceZeroAreaCrop(t *testing.T) {
	assert.Nil(t, Enhance(image.NewNRGBA(image.Rect(0, 0, 0, 0))))
	assert.Nil(t, Enhance(image.NewNRGBA(image.Rect(0, 0, 10, 0))))
}

func TestEnhanceUpscalesTinyCrop(t *testing.T) {
	out := Enhance(plateLike(30, 10))
	require.NotNil(t, out)

	assert.GreaterOrEqual(t, out.Bounds().Dy(), MinHeight)
	assert.GreaterOrEqual(t, out.Bounds().Dx(), MinWidth)
}

func TestEnhanceKeepsWorkableResolution(t *testing.T) {
	out := Enhance(plateLike(120, 40))
	require.NotNil(t, out)

	assert.Equal(t, 120, out.Bounds().Dx())
	assert.Equal(t, 40, out.Bounds().Dy())
}

func TestEnhanceIsStableOnOwnOutput(t *testing.T) {
	first := Enhance(plateLike(30, 10))
	require.NotNil(t, first)

	// The first pass already met the minimum working size, so a second pass
	// must not rescale.
	second := Enhance(first)
	require.NotNil(t, second)
	assert.Equal(t, first.Bounds().Dx(), second.Bounds().Dx())
	assert.Equal(t, first.Bounds().Dy(), second.Bounds().Dy())

	large := Enhance(plateLike(120, 40))
	require.NotNil(t, large)
	again := Enhance(large)
	require.NotNil(t, again)
	assert.Equal(t, large.Bounds(), again.Bounds())
}

func TestEnhanceOutputIsReplicatedGrayscale(t *testing.T) {
	out := Enhance(plateLike(120, 40))
	require.NotNil(t, out)

	for y := 0; y < out.Bounds().Dy(); y += 7 {
		for x := 0; x < out.Bounds().Dx(); x += 11 {
			i := y*out.Stride + x*4
			assert.Equal(t, out.Pix[i], out.Pix[i+1])
			assert.Equal(t, out.Pix[i], out.Pix[i+2])
			assert.Equal(t, uint8(255), out.Pix[i+3])
		}
	}
}

func TestClaheGrayPreservesDimensions(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 64, 32))
	for i := range gray.Pix {
		gray.Pix[i] = uint8(i % 97)
	}

	out := claheGray(gray, 2.0, 8)
	require.NotNil(t, out)
	assert.Equal(t, gray.Bounds(), out.Bounds())
}

func TestBilateralPreservesFlatRegions(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 32, 32))
	for i := range gray.Pix {
		gray.Pix[i] = 128
	}

	out := bilateral(gray, 2, 50, 50)
	for _, v := range out.Pix {
		assert.Equal(t, uint8(128), v)
	}
}
