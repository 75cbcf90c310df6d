// Package pipeline wires detection, enhancement and recognition into one
// synchronous frame-to-text call.
package pipeline

import (
	"image"
	"io"
	"math"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/agrovate/plategate/internal/detect"
	"github.com/agrovate/plategate/internal/enhance"
	"github.com/agrovate/plategate/internal/recognize"
)

// Reading is the result of one frame. The zero value means no plate was
// read; callers cannot distinguish that from no plate being present.
type Reading struct {
	Text       string       `json:"text"`
	Confidence float64      `json:"confidence"`
	Box        detect.Box   `json:"box"`
	Class      detect.Class `json:"-"`
}

// Timings records how long each stage of one invocation took.
type Timings struct {
	Detect    time.Duration
	Crop      time.Duration
	Enhance   time.Duration
	Recognize time.Duration
	Total     time.Duration
}

// Pipeline is a pure synchronous function of one frame. It owns long-lived
// inference sessions via its detector and recognizer, so a single Pipeline
// must not process frames concurrently; run one per worker.
type Pipeline struct {
	detector   detect.Detector
	recognizer recognize.Recognizer
	log        *zap.Logger
}

func New(detector detect.Detector, recognizer recognize.Recognizer, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{detector: detector, recognizer: recognizer, log: log}
}

// Process reads the most likely plate from one frame. Failed or empty
// inference yields the zero Reading; nothing here retries or errors out.
func (p *Pipeline) Process(frame image.Image) Reading {
	var t Timings
	start := time.Now()
	defer func() {
		t.Total = time.Since(start)
		p.log.Debug("pipeline timings",
			zap.Duration("detect", t.Detect),
			zap.Duration("crop", t.Crop),
			zap.Duration("enhance", t.Enhance),
			zap.Duration("recognize", t.Recognize),
			zap.Duration("total", t.Total))
	}()

	frameW := frame.Bounds().Dx()
	frameH := frame.Bounds().Dy()

	detectStart := time.Now()
	detections, err := p.detector.Detect(frame)
	t.Detect = time.Since(detectStart)
	if err != nil {
		p.log.Warn("detection failed", zap.Error(err))
		return Reading{}
	}
	if len(detections) == 0 {
		return Reading{}
	}

	best := detections[0]
	for _, d := range detections[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}

	region := detect.PlateRegion(best, frameW, frameH)
	if region.Empty() {
		return Reading{}
	}

	cropStart := time.Now()
	crop := imaging.Crop(frame, regionRect(region, frameW, frameH))
	t.Crop = time.Since(cropStart)

	enhanceStart := time.Now()
	enhanced := enhance.Enhance(crop)
	t.Enhance = time.Since(enhanceStart)
	if enhanced == nil {
		return Reading{}
	}

	recognizeStart := time.Now()
	candidate, err := p.recognizer.Recognize(enhanced)
	t.Recognize = time.Since(recognizeStart)
	if err != nil {
		p.log.Warn("recognition failed", zap.Error(err))
		return Reading{}
	}

	return Reading{
		Text:       candidate.Text,
		Confidence: candidate.Confidence,
		Box:        region,
		Class:      best.Class,
	}
}

// regionRect converts inclusive box coordinates to the half-open rectangle
// image crops use.
func regionRect(b detect.Box, frameW, frameH int) image.Rectangle {
	x1 := int(math.Round(b.X1))
	y1 := int(math.Round(b.Y1))
	x2 := int(math.Round(b.X2)) + 1
	y2 := int(math.Round(b.Y2)) + 1
	if x2 > frameW {
		x2 = frameW
	}
	if y2 > frameH {
		y2 = frameH
	}
	return image.Rect(x1, y1, x2, y2)
}

// Close releases the detector and recognizer sessions.
func (p *Pipeline) Close() error {
	var firstErr error
	for _, component := range []interface{}{p.detector, p.recognizer} {
		if closer, ok := component.(io.Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
