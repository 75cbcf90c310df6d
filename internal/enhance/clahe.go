package enhance

import (
	"image"
	"math"
)

// claheGray runs contrast-limited adaptive histogram equalization over a
// grayscale image using a tiles x tiles grid. Per-tile histograms are
// clipped at clipLimit times the flat bin height, the excess redistributed
// evenly, and each pixel is mapped through a bilinear blend of the four
// surrounding tile lookup tables to hide tile seams.
func claheGray(src *image.Gray, clipLimit float64, tiles int) *image.Gray {
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return src
	}
	if tiles < 1 {
		tiles = 1
	}

	tileW := (width + tiles - 1) / tiles
	tileH := (height + tiles - 1) / tiles

	luts := make([][][256]uint8, tiles)
	for ty := 0; ty < tiles; ty++ {
		luts[ty] = make([][256]uint8, tiles)
		for tx := 0; tx < tiles; tx++ {
			luts[ty][tx] = tileLUT(src, tx*tileW, ty*tileH, tileW, tileH, clipLimit)
		}
	}

	dst := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		// Position of the pixel relative to tile centers.
		fy := (float64(y)-float64(tileH)/2.0)/float64(tileH)
		ty0 := int(math.Floor(fy))
		wy := fy - float64(ty0)
		ty1 := clampInt(ty0+1, 0, tiles-1)
		ty0 = clampInt(ty0, 0, tiles-1)

		for x := 0; x < width; x++ {
			fx := (float64(x)-float64(tileW)/2.0)/float64(tileW)
			tx0 := int(math.Floor(fx))
			wx := fx - float64(tx0)
			tx1 := clampInt(tx0+1, 0, tiles-1)
			tx0 = clampInt(tx0, 0, tiles-1)

			v := src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y
			top := (1-wx)*float64(luts[ty0][tx0][v]) + wx*float64(luts[ty0][tx1][v])
			bottom := (1-wx)*float64(luts[ty1][tx0][v]) + wx*float64(luts[ty1][tx1][v])
			dst.Pix[y*dst.Stride+x] = uint8(math.Round((1-wy)*top + wy*bottom))
		}
	}
	return dst
}

func tileLUT(src *image.Gray, x0, y0, tileW, tileH int, clipLimit float64) [256]uint8 {
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	x1 := clampInt(x0+tileW, 0, width)
	y1 := clampInt(y0+tileH, 0, height)
	x0 = clampInt(x0, 0, width)
	y0 = clampInt(y0, 0, height)

	var hist [256]int
	count := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			hist[src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y]++
			count++
		}
	}

	var lut [256]uint8
	if count == 0 {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}

	// Clip the histogram and hand the excess back evenly.
	limit := int(clipLimit * float64(count) / 256.0)
	if limit < 1 {
		limit = 1
	}
	excess := 0
	for i := range hist {
		if hist[i] > limit {
			excess += hist[i] - limit
			hist[i] = limit
		}
	}
	share := excess / 256
	for i := range hist {
		hist[i] += share
	}

	cdf := 0
	for i := range hist {
		cdf += hist[i]
		lut[i] = uint8(math.Round(float64(cdf) * 255.0 / float64(count)))
	}
	return lut
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
