package detect

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"time"

	"mercator-hq/wastewatch/pkg/apperr"
	"mercator-hq/wastewatch/pkg/artifact"
	"mercator-hq/wastewatch/pkg/detection"
	"mercator-hq/wastewatch/pkg/index"
	"mercator-hq/wastewatch/pkg/telemetry/metrics"
	"mercator-hq/wastewatch/pkg/telemetry/tracing"
)

// Detection is one object found in the image.
type Detection struct {
	// Confidence is scaled to 0-100.
	Confidence float64
	Class      string
	Box        []float64
}

// Response is the outcome of a successful pipeline run.
type Response struct {
	ID         string
	ImageURL   string
	Location   string
	ExpiresAt  time.Time
	Detections []Detection
}

// Config holds the service dependencies. Detector, Store and Index are
// required.
type Config struct {
	Detector detection.Detector
	Store    artifact.Store
	Index    index.Index

	// Retention is added to the insert time to get the expiry.
	Retention time.Duration

	// Confidence is the minimum detection confidence (0-1).
	Confidence float64

	// Now defaults to time.Now.
	Now func() time.Time

	Metrics *metrics.Collector
	Tracer  *tracing.Tracer
}

// Service is the detection orchestrator. It is safe for concurrent use.
type Service struct {
	detector   detection.Detector
	store      artifact.Store
	index      index.Index
	retention  time.Duration
	confidence float64
	now        func() time.Time
	metrics    *metrics.Collector
	tracer     *tracing.Tracer
	logger     *slog.Logger
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Detector == nil {
		return nil, errors.New("detector is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("artifact store is required")
	}
	if cfg.Index == nil {
		return nil, errors.New("retention index is required")
	}
	if cfg.Retention < 0 {
		return nil, errors.New("retention period must be non-negative")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		detector:   cfg.Detector,
		store:      cfg.Store,
		index:      cfg.Index,
		retention:  cfg.Retention,
		confidence: cfg.Confidence,
		now:        now,
		metrics:    cfg.Metrics,
		tracer:     cfg.Tracer,
		logger:     slog.Default().With("component", "detect"),
	}, nil
}

// Detect runs the model on img, persists the annotated output and registers
// it for expiry.
//
// The caller's context bounds the model call. Once the model has answered,
// the write and the insert run to completion even if the caller goes away,
// so a disconnect never leaves a file without its index row.
func (s *Service) Detect(ctx context.Context, img image.Image) (*Response, error) {
	ctx, span := s.tracer.Start(ctx, "detect.pipeline")
	defer span.End()

	resp, err := s.run(ctx, img)
	if err != nil {
		span.SetAttributes(tracing.AttrErrorKind.String(apperr.KindOf(err).String()))
	}
	tracing.RecordError(span, err)
	return resp, err
}

func (s *Service) run(ctx context.Context, img image.Image) (*Response, error) {
	if img == nil {
		return nil, apperr.FileRead(errors.New("no image"))
	}

	result, err := s.detect(ctx, img)
	if err != nil {
		return nil, err
	}

	// Past this point the work is committed.
	ctx = context.WithoutCancel(ctx)

	location, err := s.save(ctx, result.Output)
	if err != nil {
		return nil, err
	}

	createdAt := s.now()
	expiresAt := createdAt.Add(s.retention)

	id, err := s.register(ctx, location, createdAt, expiresAt)
	if err != nil {
		s.logger.Error("artifact written but not indexed",
			"location", location,
			"error", err,
		)
		return nil, err
	}

	s.metrics.RecordArtifactSaved()

	resp := &Response{
		ID:         id,
		ImageURL:   s.store.URL(location),
		Location:   location,
		ExpiresAt:  expiresAt,
		Detections: make([]Detection, 0, result.Len()),
	}
	for i := range result.Confidences {
		resp.Detections = append(resp.Detections, Detection{
			Confidence: result.Confidences[i] * 100,
			Class:      result.Classes[i],
			Box:        result.Boxes[i],
		})
	}

	s.logger.Debug("artifact registered",
		"id", id,
		"location", location,
		"detections", len(resp.Detections),
		"expires_at", expiresAt,
	)
	return resp, nil
}

func (s *Service) detect(ctx context.Context, img image.Image) (*detection.Result, error) {
	ctx, span := s.tracer.Start(ctx, "detector.detect")
	defer span.End()

	result, err := s.detector.Detect(ctx, img, detection.Options{Confidence: s.confidence})
	if err == nil && (result == nil || result.Output == nil) {
		err = errors.New("detector returned no output image")
	}
	if err == nil {
		err = result.Check()
	}
	if err != nil {
		tracing.RecordError(span, err)
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperr.Detection(err)
	}

	span.SetAttributes(tracing.AttrDetections.Int(result.Len()))
	return result, nil
}

func (s *Service) save(ctx context.Context, img image.Image) (string, error) {
	ctx, span := s.tracer.Start(ctx, "artifact.save")
	defer span.End()

	location, err := s.store.Save(ctx, img)
	tracing.RecordError(span, err)
	if err != nil {
		return "", apperr.Storage(err)
	}
	span.SetAttributes(tracing.AttrArtifactLocation.String(location))
	return location, nil
}

func (s *Service) register(ctx context.Context, location string, createdAt, expiresAt time.Time) (string, error) {
	ctx, span := s.tracer.Start(ctx, "index.insert")
	defer span.End()

	id, err := s.index.Insert(ctx, location, createdAt, expiresAt)
	tracing.RecordError(span, err)
	if err != nil {
		return "", apperr.Persistence(err)
	}
	span.SetAttributes(
		tracing.AttrArtifactID.String(id),
		tracing.AttrExpiresAt.String(expiresAt.UTC().Format(time.RFC3339)),
	)
	return id, nil
}
