package detect

import "image"

// Class is the vehicle class attached to a detection. Detections produced by
// a plate-only model carry ClassOther since the model has no class head.
type Class int

const (
	ClassOther Class = iota
	ClassCar
	ClassMotorcycle
)

func (c Class) String() string {
	switch c {
	case ClassCar:
		return "car"
	case ClassMotorcycle:
		return "motorcycle"
	default:
		return "other"
	}
}

// Box is an axis-aligned rectangle in source-frame pixel coordinates,
// X1 <= X2 and Y1 <= Y2, both corners inside the frame.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (b Box) Width() float64  { return b.X2 - b.X1 }
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// Empty reports whether the box has no area.
func (b Box) Empty() bool { return b.X2 <= b.X1 || b.Y2 <= b.Y1 }

// Clip constrains both corners to [0,w-1] x [0,h-1].
func (b Box) Clip(w, h int) Box {
	return Box{
		X1: clamp(b.X1, 0, float64(w-1)),
		Y1: clamp(b.Y1, 0, float64(h-1)),
		X2: clamp(b.X2, 0, float64(w-1)),
		Y2: clamp(b.Y2, 0, float64(h-1)),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Detection is one detected region with its confidence and optional class.
type Detection struct {
	Box        Box     `json:"box"`
	Confidence float32 `json:"confidence"`
	Class      Class   `json:"class"`
}

// Detector locates candidate plate regions in a frame. Implementations hold
// a long-lived inference session and are not safe for concurrent calls; run
// one instance per worker or serialize access.
type Detector interface {
	Detect(frame image.Image) ([]Detection, error)
}
