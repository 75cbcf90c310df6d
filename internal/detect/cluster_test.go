package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeDetectionsEmpty(t *testing.T) {
	assert.Nil(t, MergeDetections(nil))
	assert.Nil(t, MergeDetections([]Detection{}))
}

func TestMergeDetectionsSinglePassthrough(t *testing.T) {
	input := []Detection{
		{Box: Box{X1: 20, Y1: 20, X2: 100, Y2: 100}, Confidence: 0.9},
	}

	merged := MergeDetections(input)
	require.Len(t, merged, 1)
	assert.Equal(t, input[0].Box, merged[0].Box)
	assert.Equal(t, input[0].Confidence, merged[0].Confidence)
}

func TestMergeDetectionsCollapsesDuplicates(t *testing.T) {
	// Two near-identical boxes for the same plate, as a model without NMS
	// typically emits.
	input := []Detection{
		{Box: Box{X1: 100, Y1: 100, X2: 200, Y2: 150}, Confidence: 0.7},
		{Box: Box{X1: 105, Y1: 102, X2: 198, Y2: 149}, Confidence: 0.9},
	}

	merged := MergeDetections(input)
	require.Len(t, merged, 1)

	assert.InDelta(t, 100.0, merged[0].Box.X1, 1e-9)
	assert.InDelta(t, 100.0, merged[0].Box.Y1, 1e-9)
	assert.InDelta(t, 200.0, merged[0].Box.X2, 1e-9)
	assert.InDelta(t, 150.0, merged[0].Box.Y2, 1e-9)
	assert.Equal(t, float32(0.9), merged[0].Confidence)
}

func TestMergeDetectionsKeepsDistantBoxesApart(t *testing.T) {
	input := []Detection{
		{Box: Box{X1: 0, Y1: 0, X2: 50, Y2: 50}, Confidence: 0.8},
		{Box: Box{X1: 500, Y1: 500, X2: 560, Y2: 540}, Confidence: 0.6},
	}

	merged := MergeDetections(input)
	assert.Len(t, merged, 2)
}

func TestIoU(t *testing.T) {
	a := Box{X1: 0, Y1: 0, X2: 10, Y2: 10}
	b := Box{X1: 5, Y1: 5, X2: 15, Y2: 15}
	// 25 overlap over 175 union.
	assert.InDelta(t, 25.0/175.0, iou(a, b), 1e-9)

	c := Box{X1: 20, Y1: 20, X2: 30, Y2: 30}
	assert.Zero(t, iou(a, c))
}
