package detect

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlateRegionCarUsesLowerQuarter(t *testing.T) {
	d := Detection{
		Box:   Box{X1: 800, Y1: 400, X2: 1000, Y2: 600},
		Class: ClassCar,
	}

	region := PlateRegion(d, 1920, 1080)
	assert.InDelta(t, 800.0, region.X1, 1e-9)
	assert.InDelta(t, 550.0, region.Y1, 1e-9)
	assert.InDelta(t, 1000.0, region.X2, 1e-9)
	assert.InDelta(t, 600.0, region.Y2, 1e-9)
}

func TestPlateRegionMotorcycleKeepsFullBox(t *testing.T) {
	d := Detection{
		Box:   Box{X1: 100, Y1: 100, X2: 200, Y2: 300},
		Class: ClassMotorcycle,
	}

	region := PlateRegion(d, 1920, 1080)
	assert.Equal(t, d.Box, region)
}

func TestPlateRegionClipsToFrame(t *testing.T) {
	d := Detection{
		Box:   Box{X1: -10, Y1: 900, X2: 2000, Y2: 1200},
		Class: ClassCar,
	}

	region := PlateRegion(d, 1920, 1080)
	assert.GreaterOrEqual(t, region.X1, 0.0)
	assert.LessOrEqual(t, region.X2, 1919.0)
	assert.LessOrEqual(t, region.Y2, 1079.0)
}

type stubVehicleBackend struct {
	vehicles []RawVehicle
}

func (s *stubVehicleBackend) DetectVehicles(_ image.Image, _, _ float32) ([]RawVehicle, error) {
	return s.vehicles, nil
}

func TestFullDetectorKeepsOnlyCarsAndMotorcycles(t *testing.T) {
	backend := &stubVehicleBackend{vehicles: []RawVehicle{
		{Box: Box{X1: 10, Y1: 10, X2: 100, Y2: 100}, Confidence: 0.9, ClassID: cocoCar},
		{Box: Box{X1: 200, Y1: 10, X2: 300, Y2: 100}, Confidence: 0.9, ClassID: cocoMotorcycle},
		{Box: Box{X1: 400, Y1: 10, X2: 500, Y2: 100}, Confidence: 0.9, ClassID: 7}, // truck
		{Box: Box{X1: 600, Y1: 10, X2: 700, Y2: 100}, Confidence: 0.3, ClassID: cocoCar},
	}}

	detector, err := NewFullDetector(backend, FullDetectorConfig{ConfThreshold: 0.5, IoUThreshold: 0.5})
	require.NoError(t, err)

	frame := image.NewNRGBA(image.Rect(0, 0, 1920, 1080))
	detections, err := detector.Detect(frame)
	require.NoError(t, err)
	require.Len(t, detections, 2)

	assert.Equal(t, ClassCar, detections[0].Class)
	assert.Equal(t, ClassMotorcycle, detections[1].Class)
}

func TestFullDetectorNilBackend(t *testing.T) {
	_, err := NewFullDetector(nil, FullDetectorConfig{})
	assert.Error(t, err)
}

func TestClassString(t *testing.T) {
	assert.Equal(t, "car", ClassCar.String())
	assert.Equal(t, "motorcycle", ClassMotorcycle.String())
	assert.Equal(t, "other", ClassOther.String())
}
