package pipeline

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrovate/plategate/internal/detect"
	"github.com/agrovate/plategate/internal/recognize"
)

type stubDetector struct {
	detections []detect.Detection
	err        error
}

func (s *stubDetector) Detect(_ image.Image) ([]detect.Detection, error) {
	return s.detections, s.err
}

type stubRecognizer struct {
	candidate recognize.Candidate
	err       error
	crops     []image.Image
}

func (s *stubRecognizer) Recognize(crop image.Image) (recognize.Candidate, error) {
	s.crops = append(s.crops, crop)
	return s.candidate, s.err
}

func testFrame() *image.NRGBA {
	frame := image.NewNRGBA(image.Rect(0, 0, 400, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 400; x++ {
			frame.SetNRGBA(x, y, color.NRGBA{R: 180, G: 180, B: 180, A: 255})
		}
	}
	return frame
}

func TestProcessReadsPlateFromBestDetection(t *testing.T) {
	detector := &stubDetector{detections: []detect.Detection{
		{Box: detect.Box{X1: 10, Y1: 10, X2: 110, Y2: 60}, Confidence: 0.6, Class: detect.ClassCar},
		{Box: detect.Box{X1: 50, Y1: 100, X2: 250, Y2: 250}, Confidence: 0.9, Class: detect.ClassCar},
	}}
	recognizer := &stubRecognizer{candidate: recognize.Candidate{Text: "KA01AB1234", Confidence: 0.85}}

	p := New(detector, recognizer, nil)
	reading := p.Process(testFrame())

	assert.Equal(t, "KA01AB1234", reading.Text)
	assert.Equal(t, 0.85, reading.Confidence)
	assert.Equal(t, detect.ClassCar, reading.Class)

	// The winning detection is the 0.9 car; its plate region is the lower
	// quarter of the box.
	assert.InDelta(t, 50.0, reading.Box.X1, 1e-9)
	assert.InDelta(t, 212.5, reading.Box.Y1, 1e-9)
	assert.InDelta(t, 250.0, reading.Box.X2, 1e-9)
	assert.InDelta(t, 250.0, reading.Box.Y2, 1e-9)

	require.Len(t, recognizer.crops, 1)
	assert.NotNil(t, recognizer.crops[0])
}

func TestProcessNoDetections(t *testing.T) {
	p := New(&stubDetector{}, &stubRecognizer{}, nil)
	assert.Equal(t, Reading{}, p.Process(testFrame()))
}

func TestProcessDetectorErrorYieldsEmptyReading(t *testing.T) {
	detector := &stubDetector{err: errors.New("inference failed")}
	p := New(detector, &stubRecognizer{}, nil)
	assert.Equal(t, Reading{}, p.Process(testFrame()))
}

func TestProcessRecognizerErrorYieldsEmptyReading(t *testing.T) {
	detector := &stubDetector{detections: []detect.Detection{
		{Box: detect.Box{X1: 50, Y1: 100, X2: 250, Y2: 250}, Confidence: 0.9, Class: detect.ClassCar},
	}}
	recognizer := &stubRecognizer{err: errors.New("engine failed")}

	p := New(detector, recognizer, nil)
	assert.Equal(t, Reading{}, p.Process(testFrame()))
}

func TestProcessUnreadablePlateIsEmptyNotError(t *testing.T) {
	detector := &stubDetector{detections: []detect.Detection{
		{Box: detect.Box{X1: 50, Y1: 100, X2: 250, Y2: 250}, Confidence: 0.9, Class: detect.ClassCar},
	}}
	recognizer := &stubRecognizer{candidate: recognize.Candidate{}}

	p := New(detector, recognizer, nil)
	reading := p.Process(testFrame())
	assert.Empty(t, reading.Text)
	assert.Zero(t, reading.Confidence)
}
