package geometry

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// PadValue is the constant gray fill used for the letterbox padding.
const PadValue = 114

// Letterbox resizes img preserving aspect ratio so its longer side equals
// targetSize, pastes it at the top-left of a targetSize x targetSize canvas
// filled with gray, and returns the canvas plus the scale factor applied.
// The scale is needed later to map model-space coordinates back to the frame.
func Letterbox(img image.Image, targetSize int) (*image.NRGBA, float64) {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()

	longest := w
	if h > longest {
		longest = h
	}
	if longest == 0 {
		// Nothing to resize; hand back the bare canvas.
		return imaging.New(targetSize, targetSize, color.NRGBA{PadValue, PadValue, PadValue, 255}), 1
	}
	scale := float64(targetSize) / float64(longest)

	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	resized := imaging.Resize(img, nw, nh, imaging.Linear)

	canvas := imaging.New(targetSize, targetSize, color.NRGBA{PadValue, PadValue, PadValue, 255})
	return imaging.Paste(canvas, resized, image.Pt(0, 0)), scale
}

// Unmap converts a coordinate from padded model space back to source-frame
// space. Coordinates that fall inside the padding clip to the frame edge;
// they are never extrapolated.
func Unmap(c, scale float64, dim int) float64 {
	v := c / scale
	if v < 0 {
		return 0
	}
	if m := float64(dim - 1); v > m {
		return m
	}
	return v
}
