package detect

import (
	"fmt"
	"image"
	"io"

	"github.com/agrovate/plategate/internal/geometry"
)

// ONNXVehicleDetector implements VehicleDetector on top of a COCO vehicle
// model exported with its NMS stage fused into the graph, so each output row
// is already a final [x1,y1,x2,y2,conf,cls] box in padded model space.
type ONNXVehicleDetector struct {
	infer     Inferencer
	inputSize int
	rowStride int
	decode    RowDecoder
}

func NewONNXVehicleDetector(infer Inferencer, inputSize, rowStride int, decode RowDecoder) (*ONNXVehicleDetector, error) {
	if infer == nil {
		return nil, fmt.Errorf("vehicle detector: nil inferencer")
	}
	if inputSize <= 0 || rowStride <= 0 {
		return nil, fmt.Errorf("vehicle detector: invalid shape %dx%d", inputSize, rowStride)
	}
	if decode == nil {
		decode = DecodeXYXY
	}
	return &ONNXVehicleDetector{
		infer:     infer,
		inputSize: inputSize,
		rowStride: rowStride,
		decode:    decode,
	}, nil
}

func (d *ONNXVehicleDetector) DetectVehicles(frame image.Image, confThreshold, iouThreshold float32) ([]RawVehicle, error) {
	frameW := frame.Bounds().Dx()
	frameH := frame.Bounds().Dy()

	padded, scale := geometry.Letterbox(frame, d.inputSize)
	output, err := d.infer.Infer(PackTensor(padded))
	if err != nil {
		return nil, err
	}

	var vehicles []RawVehicle
	for i := 0; i+d.rowStride <= len(output); i += d.rowStride {
		box, conf, cls, ok := d.decode(output[i : i+d.rowStride])
		if !ok || conf < confThreshold {
			continue
		}
		vehicles = append(vehicles, RawVehicle{
			Box: Box{
				X1: geometry.Unmap(box.X1, scale, frameW),
				Y1: geometry.Unmap(box.Y1, scale, frameH),
				X2: geometry.Unmap(box.X2, scale, frameW),
				Y2: geometry.Unmap(box.Y2, scale, frameH),
			},
			Confidence: conf,
			ClassID:    cls,
		})
	}

	return vehicles, nil
}

func (d *ONNXVehicleDetector) Close() error {
	if c, ok := d.infer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
