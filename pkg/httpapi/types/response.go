// Package types defines the JSON bodies exchanged on /detect_img.
package types

import "mercator-hq/wastewatch/pkg/detect"

// DetectionItem is one detected object.
type DetectionItem struct {
	// Confidence is in the range 0-100.
	Confidence    float64   `json:"confidence"`
	DetectedClass string    `json:"detected_class"`
	BoxXYList     []float64 `json:"box_xy_list"`
}

// DetectResponse is the body of every /detect_img response. On success
// Error is null; on failure ImageURL and Detections are null.
type DetectResponse struct {
	ImageURL   *string         `json:"imageURL"`
	Detections []DetectionItem `json:"detections"`
	Error      *string         `json:"error"`
}

// NewDetectResponse converts a pipeline result. An image with no detections
// yields an empty list, not null.
func NewDetectResponse(resp *detect.Response) *DetectResponse {
	url := resp.ImageURL
	items := make([]DetectionItem, 0, len(resp.Detections))
	for _, d := range resp.Detections {
		items = append(items, DetectionItem{
			Confidence:    d.Confidence,
			DetectedClass: d.Class,
			BoxXYList:     d.Box,
		})
	}
	return &DetectResponse{ImageURL: &url, Detections: items}
}

// NewErrorResponse builds a failure body carrying message.
func NewErrorResponse(message string) *DetectResponse {
	return &DetectResponse{Error: &message}
}
