package detect

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubInferencer struct {
	output []float32
	err    error
}

func (s *stubInferencer) Infer(_ []float32) ([]float32, error) {
	return s.output, s.err
}

func TestRawDecodeDetectorMapsBoxesToFrame(t *testing.T) {
	// 1280x720 frame letterboxed to 640 gives scale 0.5, so padded-space
	// corners come back doubled.
	infer := &stubInferencer{output: []float32{10, 10, 50, 50, 0.9, 0}}
	detector, err := NewRawDecodeDetector(infer, RawDecodeConfig{
		InputSize:     640,
		ConfThreshold: 0.5,
		RowStride:     6,
	})
	require.NoError(t, err)

	frame := image.NewNRGBA(image.Rect(0, 0, 1280, 720))
	detections, err := detector.Detect(frame)
	require.NoError(t, err)
	require.Len(t, detections, 1)

	assert.InDelta(t, 20.0, detections[0].Box.X1, 1e-9)
	assert.InDelta(t, 20.0, detections[0].Box.Y1, 1e-9)
	assert.InDelta(t, 100.0, detections[0].Box.X2, 1e-9)
	assert.InDelta(t, 100.0, detections[0].Box.Y2, 1e-9)
	assert.Equal(t, float32(0.9), detections[0].Confidence)
	assert.Equal(t, ClassOther, detections[0].Class)
}

func TestRawDecodeDetectorFiltersLowConfidence(t *testing.T) {
	infer := &stubInferencer{output: []float32{
		10, 10, 50, 50, 0.4, 0,
		60, 60, 90, 90, 0.8, 0,
	}}
	detector, err := NewRawDecodeDetector(infer, RawDecodeConfig{
		InputSize:     640,
		ConfThreshold: 0.5,
		RowStride:     6,
	})
	require.NoError(t, err)

	frame := image.NewNRGBA(image.Rect(0, 0, 640, 640))
	detections, err := detector.Detect(frame)
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, float32(0.8), detections[0].Confidence)
}

func TestRawDecodeDetectorSkipsTruncatedRow(t *testing.T) {
	// Nine floats with stride six: one full row, then a truncated tail that
	// must be ignored rather than decoded.
	infer := &stubInferencer{output: []float32{
		10, 10, 50, 50, 0.9, 0,
		60, 60, 90,
	}}
	detector, err := NewRawDecodeDetector(infer, RawDecodeConfig{
		InputSize:     640,
		ConfThreshold: 0.5,
		RowStride:     6,
	})
	require.NoError(t, err)

	frame := image.NewNRGBA(image.Rect(0, 0, 640, 640))
	detections, err := detector.Detect(frame)
	require.NoError(t, err)
	assert.Len(t, detections, 1)
}

func TestRawDecodeDetectorEmptyOutput(t *testing.T) {
	detector, err := NewRawDecodeDetector(&stubInferencer{}, RawDecodeConfig{
		InputSize:     640,
		ConfThreshold: 0.5,
		RowStride:     6,
	})
	require.NoError(t, err)

	frame := image.NewNRGBA(image.Rect(0, 0, 640, 640))
	detections, err := detector.Detect(frame)
	require.NoError(t, err)
	assert.Empty(t, detections)
}

func TestRawDecodeDetectorPropagatesInferenceError(t *testing.T) {
	infer := &stubInferencer{err: errors.New("session died")}
	detector, err := NewRawDecodeDetector(infer, RawDecodeConfig{
		InputSize:     640,
		ConfThreshold: 0.5,
		RowStride:     6,
	})
	require.NoError(t, err)

	frame := image.NewNRGBA(image.Rect(0, 0, 640, 640))
	_, err = detector.Detect(frame)
	assert.Error(t, err)
}

func TestNewRawDecodeDetectorValidation(t *testing.T) {
	_, err := NewRawDecodeDetector(nil, RawDecodeConfig{InputSize: 640, RowStride: 6})
	assert.Error(t, err)

	_, err = NewRawDecodeDetector(&stubInferencer{}, RawDecodeConfig{InputSize: 0, RowStride: 6})
	assert.Error(t, err)

	_, err = NewRawDecodeDetector(&stubInferencer{}, RawDecodeConfig{InputSize: 640, RowStride: 0})
	assert.Error(t, err)
}

func TestDecodeXYXYShortRow(t *testing.T) {
	_, _, _, ok := DecodeXYXY([]float32{1, 2, 3})
	assert.False(t, ok)
}
