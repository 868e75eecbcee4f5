// Package detection is the client side of the external object-detection
// model. The model itself runs out of process; this package sends it images
// and turns its answers into a Result.
package detection

import (
	"context"
	"fmt"
	"image"
)

// Options are per-call detection parameters.
type Options struct {
	// Confidence is the minimum confidence (0-1) a detection must reach to
	// be reported.
	Confidence float64
}

// Result is the model output for one image. Confidences, Classes and Boxes
// are parallel slices: entry i of each describes the same detection.
type Result struct {
	// Output is the annotated image.
	Output image.Image

	// Confidences are in the range 0-1.
	Confidences []float64

	Classes []string

	// Boxes are [x1, y1, x2, y2] in pixel coordinates of the input image.
	Boxes [][]float64
}

// Len returns the number of detections.
func (r *Result) Len() int {
	return len(r.Confidences)
}

// Check reports an error if the parallel slices disagree in length.
func (r *Result) Check() error {
	return checkParallel(len(r.Confidences), len(r.Classes), len(r.Boxes))
}

func checkParallel(confidences, classes, boxes int) error {
	if classes != confidences || boxes != confidences {
		return fmt.Errorf("mismatched detections: %d confidences, %d classes, %d boxes",
			confidences, classes, boxes)
	}
	return nil
}

// Detector runs object detection on a decoded image.
type Detector interface {
	Detect(ctx context.Context, img image.Image, opts Options) (*Result, error)
}
