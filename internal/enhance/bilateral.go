package enhance

import (
	"image"
	"math"
)

// bilateral applies an edge-preserving smoothing filter to a grayscale
// image: each output pixel is a weighted mean of its neighborhood where the
// weight falls off with both spatial distance and intensity difference, so
// flat regions are denoised while character strokes keep their edges.
func bilateral(src *image.Gray, radius int, sigmaColor, sigmaSpace float64) *image.Gray {
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	size := 2*radius + 1
	spatial := make([]float64, size*size)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d2 := float64(dx*dx + dy*dy)
			spatial[(dy+radius)*size+(dx+radius)] = math.Exp(-d2 / (2 * sigmaSpace * sigmaSpace))
		}
	}

	var rangeWeight [256]float64
	for i := range rangeWeight {
		d := float64(i)
		rangeWeight[i] = math.Exp(-(d * d) / (2 * sigmaColor * sigmaColor))
	}

	dst := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			center := src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y

			var sum, norm float64
			for dy := -radius; dy <= radius; dy++ {
				py := clampInt(y+dy, 0, height-1)
				for dx := -radius; dx <= radius; dx++ {
					px := clampInt(x+dx, 0, width-1)
					v := src.GrayAt(bounds.Min.X+px, bounds.Min.Y+py).Y

					diff := int(v) - int(center)
					if diff < 0 {
						diff = -diff
					}
					w := spatial[(dy+radius)*size+(dx+radius)] * rangeWeight[diff]
					sum += w * float64(v)
					norm += w
				}
			}
			dst.Pix[y*dst.Stride+x] = uint8(math.Round(sum / norm))
		}
	}
	return dst
}
