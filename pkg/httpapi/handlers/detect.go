package handlers

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"mercator-hq/wastewatch/pkg/apperr"
	"mercator-hq/wastewatch/pkg/detect"
	"mercator-hq/wastewatch/pkg/httpapi/middleware"
	"mercator-hq/wastewatch/pkg/httpapi/types"
	"mercator-hq/wastewatch/pkg/telemetry/metrics"
)

// ImageField is the multipart field that carries the upload.
const ImageField = "image_file"

// Detector is the pipeline behind /detect_img.
type Detector interface {
	Detect(ctx context.Context, img image.Image) (*detect.Response, error)
}

// DetectHandler serves POST /detect_img.
type DetectHandler struct {
	service        Detector
	maxUploadBytes int64
	maxImagePixels int64
	metrics        *metrics.Collector
	logger         *slog.Logger
}

// NewDetectHandler creates the handler. Uploads larger than maxUploadBytes,
// or declaring more than maxImagePixels, are rejected. A zero limit disables
// that check.
func NewDetectHandler(service Detector, maxUploadBytes, maxImagePixels int64, collector *metrics.Collector) *DetectHandler {
	return &DetectHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
		maxImagePixels: maxImagePixels,
		metrics:        collector,
		logger:         slog.Default().With("component", "handlers.detect"),
	}
}

// ServeHTTP reads the image, runs the pipeline and writes the JSON body.
// Every failure is mapped through apperr, so the client only ever sees the
// public message for the error kind.
func (h *DetectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() {
		h.metrics.RecordDetect(strconv.Itoa(status), time.Since(start))
	}()

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	img, err := h.readImage(r)
	if err == nil {
		var resp *detect.Response
		resp, err = h.service.Detect(r.Context(), img)
		if err == nil {
			middleware.WriteJSON(w, status, types.NewDetectResponse(resp))
			return
		}
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || errors.Is(err, detect.ErrImageTooLarge) {
		status = http.StatusRequestEntityTooLarge
		middleware.WriteJSON(w, status, types.NewErrorResponse("IMAGE TOO LARGE"))
		return
	}

	status = apperr.StatusCode(err)
	level := slog.LevelError
	if status < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	h.logger.Log(r.Context(), level, "detect request failed",
		"kind", apperr.KindOf(err).String(),
		"status", status,
		"error", err,
	)
	middleware.WriteJSON(w, status, types.NewErrorResponse(apperr.PublicMessage(err)))
}

// readImage decodes the upload. Multipart bodies are searched for the
// image_file field and fall back to the first file part; any other body is
// decoded as raw image bytes.
func (h *DetectHandler) readImage(r *http.Request) (image.Image, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return h.decode(r.Body)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, apperr.FileRead(err)
	}

	var fallback []byte
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, readErr(err)
		}

		switch {
		case part.FormName() == ImageField:
			return h.decode(part)
		case fallback == nil && part.FileName() != "":
			if fallback, err = readPart(part); err != nil {
				return nil, readErr(err)
			}
		}
		part.Close()
	}

	if fallback == nil {
		return nil, apperr.FileRead(errors.New("no image file in form"))
	}
	return h.decode(bytes.NewReader(fallback))
}

func (h *DetectHandler) decode(r io.Reader) (image.Image, error) {
	img, err := detect.DecodeImage(r, h.maxImagePixels)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return nil, tooLarge
	}
	return img, err
}

func readPart(part *multipart.Part) ([]byte, error) {
	defer part.Close()
	data, err := io.ReadAll(part)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// readErr keeps size-limit errors distinct from malformed bodies.
func readErr(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return tooLarge
	}
	return apperr.FileRead(err)
}
