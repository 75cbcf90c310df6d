package detect

import (
	"image"
	"runtime"
	"sync"
)

// PackTensor converts an NRGBA image into a CHW float32 tensor with values
// scaled to [0,1], the layout the detection models expect. Rows are split
// across workers; packing dominates preprocessing time on large inputs.
func PackTensor(img *image.NRGBA) []float32 {
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	channelSize := width * height
	buffer := make([]float32, channelSize*3)

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > height {
		numWorkers = height
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	rowsPerWorker := height / numWorkers

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		startRow := w * rowsPerWorker
		endRow := startRow + rowsPerWorker
		if w == numWorkers-1 {
			endRow = height
		}

		go func(start, end int) {
			defer wg.Done()
			for y := start; y < end; y++ {
				row := img.Pix[y*img.Stride:]
				offset := y * width
				for x := 0; x < width; x++ {
					i := offset + x
					px := row[x*4:]
					buffer[i] = float32(px[0]) / 255.0
					buffer[channelSize+i] = float32(px[1]) / 255.0
					buffer[channelSize*2+i] = float32(px[2]) / 255.0
				}
			}
		}(startRow, endRow)
	}
	wg.Wait()

	return buffer
}
