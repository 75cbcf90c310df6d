// Package enhance normalizes plate crops for character recognition. The
// crops coming out of detection are often tiny, low-contrast and noisy;
// this chain upscales them to a workable resolution, boosts local contrast
// and sharpens stroke edges so visually similar glyphs (D vs 0/O) separate.
package enhance

import (
	"image"
	"image/draw"
	"math"

	"github.com/anthonynsimon/bild/convolution"
	"github.com/disintegration/imaging"
)

// Recognition quality drops off sharply below this working resolution.
const (
	MinHeight = 20
	MinWidth  = 60
)

// sharpenKernel is an unsharp mask tuned for stroke edges.
var sharpenKernel = &convolution.Kernel{
	Width:  3,
	Height: 3,
	Matrix: []float64{
		-1, -1, -1,
		-1, 9, -1,
		-1, -1, -1,
	},
}

// Enhance runs the normalization chain over a plate crop: conditional
// upscale to the minimum working size, CLAHE on luminance, grayscale with
// edge-preserving denoise, unsharp mask, re-equalization, and replication
// back to three channels for recognition engines that expect color input.
// A nil or zero-area crop returns nil without touching any pixel data.
func Enhance(crop image.Image) *image.NRGBA {
	if crop == nil {
		return nil
	}
	bounds := crop.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	img := imaging.Clone(crop)

	if h < MinHeight || w < MinWidth {
		scale := math.Max(float64(MinHeight)/float64(h), float64(MinWidth)/float64(w))
		img = imaging.Resize(img,
			int(math.Round(float64(w)*scale)),
			int(math.Round(float64(h)*scale)),
			imaging.CatmullRom)
	}

	img = equalizeLuminance(img, 2.0)

	gray := toGray(img)
	gray = bilateral(gray, 2, 50, 50)

	sharpened := convolution.Convolve(gray, sharpenKernel, &convolution.Options{KeepAlpha: true})
	gray = toGray(sharpened)

	gray = claheGray(gray, 3.0, 8)

	return replicate(gray)
}

// equalizeLuminance applies CLAHE to the luminance channel only and rescales
// the color channels by the luminance ratio, boosting local contrast without
// blowing out color.
func equalizeLuminance(img *image.NRGBA, clipLimit float64) *image.NRGBA {
	luma := toGray(img)
	equalized := claheGray(luma, clipLimit, 8)

	bounds := img.Bounds()
	out := image.NewNRGBA(bounds)
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			i := y*img.Stride + x*4
			oldY := luma.Pix[y*luma.Stride+x]
			newY := equalized.Pix[y*equalized.Stride+x]
			ratio := (float64(newY) + 1) / (float64(oldY) + 1)

			o := y*out.Stride + x*4
			out.Pix[o] = scaleByte(img.Pix[i], ratio)
			out.Pix[o+1] = scaleByte(img.Pix[i+1], ratio)
			out.Pix[o+2] = scaleByte(img.Pix[i+2], ratio)
			out.Pix[o+3] = img.Pix[i+3]
		}
	}
	return out
}

func scaleByte(v uint8, ratio float64) uint8 {
	s := math.Round(float64(v) * ratio)
	if s > 255 {
		return 255
	}
	if s < 0 {
		return 0
	}
	return uint8(s)
}

func toGray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	return gray
}

func replicate(gray *image.Gray) *image.NRGBA {
	bounds := gray.Bounds()
	out := image.NewNRGBA(bounds)
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			v := gray.Pix[y*gray.Stride+x]
			o := y*out.Stride + x*4
			out.Pix[o] = v
			out.Pix[o+1] = v
			out.Pix[o+2] = v
			out.Pix[o+3] = 255
		}
	}
	return out
}
