package detect

import (
	"fmt"
	"image"
	"io"

	"github.com/agrovate/plategate/internal/geometry"
)

// Inferencer runs one forward pass over a packed CHW tensor and returns the
// model's flat output. The model artifact behind it is opaque to decoding.
type Inferencer interface {
	Infer(input []float32) ([]float32, error)
}

// RowDecoder interprets one raw output row in padded model space. ok is
// false for rows the decoder cannot read; such rows are skipped, not fatal.
// The row layout varies per exported model family, so the decoder is chosen
// at construction alongside the model artifact.
type RowDecoder func(row []float32) (box Box, conf float32, cls int, ok bool)

// DecodeXYXY reads the [x1,y1,x2,y2,conf,cls] layout the plate model
// exports, corner coordinates already in padded model space.
func DecodeXYXY(row []float32) (Box, float32, int, bool) {
	if len(row) < 6 {
		return Box{}, 0, 0, false
	}
	b := Box{
		X1: float64(row[0]),
		Y1: float64(row[1]),
		X2: float64(row[2]),
		Y2: float64(row[3]),
	}
	return b, row[4], int(row[5]), true
}

// RawDecodeConfig configures a RawDecodeDetector.
type RawDecodeConfig struct {
	// InputSize is the square letterbox resolution the model was exported at.
	InputSize int
	// ConfThreshold drops rows below this confidence.
	ConfThreshold float32
	// RowStride is the number of floats per output row (>= 6 for DecodeXYXY).
	RowStride int
	// Decode reads one row; defaults to DecodeXYXY.
	Decode RowDecoder
}

// RawDecodeDetector letterboxes the frame, runs the opaque inference call
// and decodes the flat output row by row, mapping every kept box back to
// frame coordinates with the scale recorded during preprocessing. The model
// has no NMS stage, so overlapping rows for one plate are merged afterwards.
type RawDecodeDetector struct {
	infer Inferencer
	cfg   RawDecodeConfig
}

func NewRawDecodeDetector(infer Inferencer, cfg RawDecodeConfig) (*RawDecodeDetector, error) {
	if infer == nil {
		return nil, fmt.Errorf("raw decode detector: nil inferencer")
	}
	if cfg.InputSize <= 0 {
		return nil, fmt.Errorf("raw decode detector: invalid input size %d", cfg.InputSize)
	}
	if cfg.RowStride <= 0 {
		return nil, fmt.Errorf("raw decode detector: invalid row stride %d", cfg.RowStride)
	}
	if cfg.Decode == nil {
		cfg.Decode = DecodeXYXY
	}
	return &RawDecodeDetector{infer: infer, cfg: cfg}, nil
}

func (d *RawDecodeDetector) Detect(frame image.Image) ([]Detection, error) {
	frameW := frame.Bounds().Dx()
	frameH := frame.Bounds().Dy()

	padded, scale := geometry.Letterbox(frame, d.cfg.InputSize)
	output, err := d.infer.Infer(PackTensor(padded))
	if err != nil {
		return nil, fmt.Errorf("detector inference: %w", err)
	}

	var detections []Detection
	stride := d.cfg.RowStride
	for i := 0; i+stride <= len(output); i += stride {
		box, conf, _, ok := d.cfg.Decode(output[i : i+stride])
		if !ok || conf < d.cfg.ConfThreshold {
			continue
		}
		detections = append(detections, Detection{
			Box: Box{
				X1: geometry.Unmap(box.X1, scale, frameW),
				Y1: geometry.Unmap(box.Y1, scale, frameH),
				X2: geometry.Unmap(box.X2, scale, frameW),
				Y2: geometry.Unmap(box.Y2, scale, frameH),
			},
			Confidence: conf,
		})
	}

	return MergeDetections(detections), nil
}

// Close releases the underlying inference session if it owns one.
func (d *RawDecodeDetector) Close() error {
	if c, ok := d.infer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
