package detection

import (
	"context"
	"image"
	"sync/atomic"
)

// StaticDetector returns the same detections for every image. It stands in
// for the model server in tests.
type StaticDetector struct {
	Confidences []float64
	Classes     []string
	Boxes       [][]float64

	// Err, when set, is returned by every call.
	Err error

	calls atomic.Int64
}

// Detect annotates img with the configured boxes. Detections below
// opts.Confidence are dropped.
func (d *StaticDetector) Detect(ctx context.Context, img image.Image, opts Options) (*Result, error) {
	d.calls.Add(1)
	if d.Err != nil {
		return nil, d.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkParallel(len(d.Confidences), len(d.Classes), len(d.Boxes)); err != nil {
		return nil, err
	}

	result := &Result{}
	for i, conf := range d.Confidences {
		if conf < opts.Confidence {
			continue
		}
		result.Confidences = append(result.Confidences, conf)
		result.Classes = append(result.Classes, d.Classes[i])
		result.Boxes = append(result.Boxes, d.Boxes[i])
	}
	result.Output = Annotate(img, result.Boxes)
	return result, nil
}

// Calls returns how many times Detect was invoked.
func (d *StaticDetector) Calls() int64 {
	return d.calls.Load()
}

var _ Detector = (*StaticDetector)(nil)
