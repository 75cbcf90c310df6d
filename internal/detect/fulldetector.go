package detect

import (
	"fmt"
	"image"
	"io"
)

// COCO class indices for the vehicle classes worth reading a plate from.
const (
	cocoCar        = 2
	cocoMotorcycle = 3
)

// RawVehicle is one box as reported by an NMS-complete vehicle detector,
// in frame coordinates, before class filtering.
type RawVehicle struct {
	Box        Box
	Confidence float32
	ClassID    int
}

// VehicleDetector is the detection collaborator for the full-detector
// strategy. It owns preprocessing, inference and NMS; only its final boxes
// cross this interface.
type VehicleDetector interface {
	DetectVehicles(frame image.Image, confThreshold, iouThreshold float32) ([]RawVehicle, error)
}

// FullDetectorConfig configures a FullDetector.
type FullDetectorConfig struct {
	ConfThreshold float32
	IoUThreshold  float32
}

// FullDetector keeps only car and motorcycle detections above the
// confidence threshold from an NMS-complete vehicle model. Every other
// class is dropped on purpose: reading plates off trucks and buses at the
// gate camera angle produces more misreads than hits.
type FullDetector struct {
	backend VehicleDetector
	cfg     FullDetectorConfig
}

func NewFullDetector(backend VehicleDetector, cfg FullDetectorConfig) (*FullDetector, error) {
	if backend == nil {
		return nil, fmt.Errorf("full detector: nil vehicle backend")
	}
	return &FullDetector{backend: backend, cfg: cfg}, nil
}

func (d *FullDetector) Detect(frame image.Image) ([]Detection, error) {
	frameW := frame.Bounds().Dx()
	frameH := frame.Bounds().Dy()

	vehicles, err := d.backend.DetectVehicles(frame, d.cfg.ConfThreshold, d.cfg.IoUThreshold)
	if err != nil {
		return nil, fmt.Errorf("vehicle detection: %w", err)
	}

	var detections []Detection
	for _, v := range vehicles {
		if v.Confidence < d.cfg.ConfThreshold {
			continue
		}

		var class Class
		switch v.ClassID {
		case cocoCar:
			class = ClassCar
		case cocoMotorcycle:
			class = ClassMotorcycle
		default:
			continue
		}

		detections = append(detections, Detection{
			Box:        v.Box.Clip(frameW, frameH),
			Confidence: v.Confidence,
			Class:      class,
		})
	}

	return detections, nil
}

// Close releases the vehicle backend if it owns a session.
func (d *FullDetector) Close() error {
	if c, ok := d.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
