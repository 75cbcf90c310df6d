package recognize

import (
	"fmt"
	"image"
	"io"
	"math"

	"github.com/disintegration/imaging"
)

// Model input geometry for the sequence head.
const (
	seqInputWidth  = 160
	seqInputHeight = 32
)

// Inferencer runs one forward pass of the sequence model.
type Inferencer interface {
	Infer(input []float32) ([]float32, error)
}

// SequenceRecognizer reads the plate in a single forward pass of a
// CTC-trained sequence model: the crop is normalized to a 32x160 grayscale
// tensor, the output is a class-probability column per plate position, and
// greedy decoding collapses repeats and blanks into the final text.
type SequenceRecognizer struct {
	infer   Inferencer
	classes int // alphabet plus trailing CTC blank
}

func NewSequenceRecognizer(infer Inferencer) (*SequenceRecognizer, error) {
	if infer == nil {
		return nil, fmt.Errorf("%w: nil inferencer", ErrEngineUnavailable)
	}
	return &SequenceRecognizer{
		infer:   infer,
		classes: len(Alphabet) + 1,
	}, nil
}

func (r *SequenceRecognizer) Recognize(crop image.Image) (Candidate, error) {
	if crop == nil {
		return Candidate{}, nil
	}
	bounds := crop.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return Candidate{}, nil
	}

	output, err := r.infer.Infer(packSequenceInput(crop))
	if err != nil {
		return Candidate{}, fmt.Errorf("sequence inference: %w", err)
	}

	return Accept(r.decode(output)), nil
}

// packSequenceInput normalizes the crop to the model's grayscale input:
// resize to 160x32, scale to [0,1], then center on zero ((x-0.5)/0.5).
func packSequenceInput(crop image.Image) []float32 {
	resized := imaging.Grayscale(imaging.Resize(crop, seqInputWidth, seqInputHeight, imaging.Lanczos))

	input := make([]float32, seqInputWidth*seqInputHeight)
	for y := 0; y < seqInputHeight; y++ {
		for x := 0; x < seqInputWidth; x++ {
			v := float32(resized.Pix[y*resized.Stride+x*4]) / 255.0
			input[y*seqInputWidth+x] = (v - 0.5) / 0.5
		}
	}
	return input
}

// decode greedily reads the output columns: argmax per position, softmax
// probability as that position's confidence, then CTC collapse (drop blanks
// and repeated labels). Confidence of the reading is the mean winning
// probability over the emitted characters.
func (r *SequenceRecognizer) decode(output []float32) Candidate {
	positions := len(output) / r.classes
	if positions == 0 {
		return Candidate{}
	}

	blank := r.classes - 1
	text := make([]byte, 0, positions)
	confSum := 0.0
	previous := -1

	for pos := 0; pos < positions; pos++ {
		best := 0
		for cls := 1; cls < r.classes; cls++ {
			// Column-major layout: one stripe of positions per class.
			if output[pos+cls*positions] > output[pos+best*positions] {
				best = cls
			}
		}

		label := best
		if label == blank || label == previous {
			previous = label
			continue
		}
		previous = label

		text = append(text, Alphabet[label])
		confSum += softmaxAt(output, pos, best, positions, r.classes)
	}

	if len(text) == 0 {
		return Candidate{}
	}
	return Candidate{
		Text:       string(text),
		Confidence: confSum / float64(len(text)),
	}
}

// softmaxAt computes the softmax probability of class cls at one position.
func softmaxAt(output []float32, pos, cls, positions, classes int) float64 {
	maxLogit := output[pos]
	for c := 1; c < classes; c++ {
		if v := output[pos+c*positions]; v > maxLogit {
			maxLogit = v
		}
	}

	var sum float64
	for c := 0; c < classes; c++ {
		sum += math.Exp(float64(output[pos+c*positions] - maxLogit))
	}
	return math.Exp(float64(output[pos+cls*positions]-maxLogit)) / sum
}

// Close releases the underlying inference session if it owns one.
func (r *SequenceRecognizer) Close() error {
	if c, ok := r.infer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
