package detection

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"mercator-hq/wastewatch/pkg/apperr"
	"mercator-hq/wastewatch/pkg/telemetry/tracing"
)

// maxResponseBytes bounds the model's JSON answer, which may embed an image.
const maxResponseBytes = 64 << 20

// HTTPConfig configures an HTTPDetector.
type HTTPConfig struct {
	// URL receives a multipart POST with the image in the "file" field.
	URL string

	// HealthURL is probed once by NewHTTPDetector. Empty skips the probe.
	HealthURL string

	// Timeout bounds each call to the model.
	Timeout time.Duration

	// Client overrides the HTTP client. Mostly for tests.
	Client *http.Client
}

// HTTPDetector calls an inference service over HTTP.
//
// The service answers with JSON:
//
//	{"detections": [{"class": "plastic", "confidence": 0.91, "box": [x1, y1, x2, y2]}],
//	 "image": "<base64 PNG, optional>"}
//
// When the service does not return an annotated image, the boxes are drawn
// onto a copy of the input.
type HTTPDetector struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

type wireDetection struct {
	Class      string    `json:"class"`
	Confidence float64   `json:"confidence"`
	Box        []float64 `json:"box"`
}

type wireResponse struct {
	Detections []wireDetection `json:"detections"`
	Image      string          `json:"image,omitempty"`
}

// NewHTTPDetector builds a detector and, when HealthURL is set, verifies the
// model is up. A failed probe is returned as a KindDetectionInit error.
func NewHTTPDetector(ctx context.Context, cfg HTTPConfig) (*HTTPDetector, error) {
	if cfg.URL == "" {
		return nil, apperr.DetectionInit(fmt.Errorf("detector URL is required"))
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	d := &HTTPDetector{
		url:    cfg.URL,
		client: client,
		logger: slog.Default().With("component", "detection.http"),
	}

	if cfg.HealthURL != "" {
		if err := d.probe(ctx, cfg.HealthURL); err != nil {
			return nil, apperr.DetectionInit(err)
		}
		d.logger.Info("detection model reachable", "health_url", cfg.HealthURL)
	}

	return d, nil
}

func (d *HTTPDetector) probe(ctx context.Context, healthURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("detector health check: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("detector health check returned status %d", resp.StatusCode)
	}
	return nil
}

// Detect sends img to the model and returns detections at or above
// opts.Confidence.
func (d *HTTPDetector) Detect(ctx context.Context, img image.Image, opts Options) (*Result, error) {
	body, contentType, err := encodeRequest(img, opts)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, body)
	if err != nil {
		return nil, fmt.Errorf("build detect request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	tracing.Inject(ctx, req.Header)

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call detector: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detector returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var wire wireResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode detector response: %w", err)
	}

	result, err := toResult(img, &wire, opts)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("detection complete",
		"detections", result.Len(),
		"duration", time.Since(start),
	)
	return result, nil
}

func encodeRequest(img image.Image, opts Options) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", "image.png")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if err := png.Encode(part, img); err != nil {
		return nil, "", fmt.Errorf("encode png: %w", err)
	}
	if err := mw.WriteField("confidence", strconv.FormatFloat(opts.Confidence, 'f', -1, 64)); err != nil {
		return nil, "", fmt.Errorf("write confidence field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func toResult(input image.Image, wire *wireResponse, opts Options) (*Result, error) {
	result := &Result{}
	for i, det := range wire.Detections {
		if len(det.Box) != 4 {
			return nil, fmt.Errorf("detection %d: box has %d coordinates, want 4", i, len(det.Box))
		}
		if det.Confidence < opts.Confidence {
			continue
		}
		result.Confidences = append(result.Confidences, det.Confidence)
		result.Classes = append(result.Classes, det.Class)
		result.Boxes = append(result.Boxes, det.Box)
	}

	if wire.Image == "" {
		result.Output = Annotate(input, result.Boxes)
		return result, nil
	}

	raw, err := base64.StdEncoding.DecodeString(wire.Image)
	if err != nil {
		return nil, fmt.Errorf("decode annotated image: %w", err)
	}
	out, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode annotated image: %w", err)
	}
	result.Output = out
	return result, nil
}

var _ Detector = (*HTTPDetector)(nil)
