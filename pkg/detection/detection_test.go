package detection

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"mercator-hq/wastewatch/pkg/apperr"
)

func blankImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

func newModelServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPDetector_Detect(t *testing.T) {
	srv := newModelServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
			http.Error(w, "no file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		if _, err := png.Decode(file); err != nil {
			t.Errorf("file part is not a PNG: %v", err)
		}
		if got := r.FormValue("confidence"); got != "0.5" {
			t.Errorf("confidence field = %q, want 0.5", got)
		}

		json.NewEncoder(w).Encode(wireResponse{Detections: []wireDetection{
			{Class: "plastic", Confidence: 0.91, Box: []float64{1, 1, 8, 8}},
			{Class: "paper", Confidence: 0.2, Box: []float64{0, 0, 2, 2}},
		}})
	})

	d, err := NewHTTPDetector(context.Background(), HTTPConfig{URL: srv.URL})
	if err != nil {
		t.Fatalf("NewHTTPDetector() failed: %v", err)
	}

	result, err := d.Detect(context.Background(), blankImage(10, 10), Options{Confidence: 0.5})
	if err != nil {
		t.Fatalf("Detect() failed: %v", err)
	}

	if result.Len() != 1 || result.Classes[0] != "plastic" {
		t.Fatalf("expected one plastic detection, got %+v", result)
	}
	if result.Output == nil {
		t.Fatal("Output image missing")
	}
	// Boxes are drawn locally when the model returns no image.
	if got := color.RGBAModel.Convert(result.Output.At(1, 1)); got != boxColor {
		t.Errorf("expected box outline at (1,1), got %v", got)
	}
}

func TestHTTPDetector_ModelImage(t *testing.T) {
	var buf bytes.Buffer
	png.Encode(&buf, blankImage(3, 2))
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())

	srv := newModelServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(wireResponse{Image: encoded})
	})

	d, _ := NewHTTPDetector(context.Background(), HTTPConfig{URL: srv.URL})
	result, err := d.Detect(context.Background(), blankImage(10, 10), Options{})
	if err != nil {
		t.Fatalf("Detect() failed: %v", err)
	}
	if b := result.Output.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
		t.Errorf("expected model-provided 3x2 image, got %v", b)
	}
}

func TestHTTPDetector_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model crashed", http.StatusInternalServerError)
			},
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("{not json"))
			},
		},
		{
			name: "short box",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"detections":[{"class":"x","confidence":1,"box":[1,2]}]}`))
			},
		},
		{
			name: "bad image",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"detections":[],"image":"!!!"}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newModelServer(t, tt.handler)
			d, _ := NewHTTPDetector(context.Background(), HTTPConfig{URL: srv.URL})
			if _, err := d.Detect(context.Background(), blankImage(4, 4), Options{}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewHTTPDetector_HealthProbe(t *testing.T) {
	healthy := newModelServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if _, err := NewHTTPDetector(context.Background(), HTTPConfig{URL: healthy.URL, HealthURL: healthy.URL}); err != nil {
		t.Fatalf("healthy probe failed: %v", err)
	}

	down := newModelServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := NewHTTPDetector(context.Background(), HTTPConfig{URL: down.URL, HealthURL: down.URL})
	if !apperr.Is(err, apperr.KindDetectionInit) {
		t.Fatalf("expected KindDetectionInit, got %v", err)
	}

	if _, err := NewHTTPDetector(context.Background(), HTTPConfig{}); !apperr.Is(err, apperr.KindDetectionInit) {
		t.Fatalf("missing URL should be KindDetectionInit, got %v", err)
	}
}

func TestStaticDetector(t *testing.T) {
	d := &StaticDetector{
		Confidences: []float64{0.9, 0.3},
		Classes:     []string{"metal", "glass"},
		Boxes:       [][]float64{{0, 0, 5, 5}, {1, 1, 2, 2}},
	}

	result, err := d.Detect(context.Background(), blankImage(6, 6), Options{Confidence: 0.5})
	if err != nil {
		t.Fatalf("Detect() failed: %v", err)
	}
	if result.Len() != 1 || result.Classes[0] != "metal" {
		t.Errorf("unexpected result %+v", result)
	}
	if d.Calls() != 1 {
		t.Errorf("Calls() = %d, want 1", d.Calls())
	}

	boom := errors.New("boom")
	d.Err = boom
	if _, err := d.Detect(context.Background(), blankImage(1, 1), Options{}); !errors.Is(err, boom) {
		t.Errorf("expected configured error, got %v", err)
	}
}

func TestStaticDetector_MismatchedSlices(t *testing.T) {
	d := &StaticDetector{
		Confidences: []float64{0.9, 0.8},
		Classes:     []string{"metal"},
		Boxes:       [][]float64{{0, 0, 5, 5}, {1, 1, 2, 2}},
	}
	if _, err := d.Detect(context.Background(), blankImage(6, 6), Options{}); err == nil {
		t.Fatal("Detect() should reject mismatched slices")
	}

	r := &Result{Confidences: []float64{0.5}, Classes: []string{"metal"}, Boxes: [][]float64{{0, 0, 1, 1}}}
	if err := r.Check(); err != nil {
		t.Errorf("Check() on a consistent result = %v", err)
	}
	r.Boxes = nil
	if err := r.Check(); err == nil {
		t.Error("Check() should fail when boxes are missing")
	}
}

func TestAnnotate(t *testing.T) {
	src := blankImage(10, 10)
	out := Annotate(src, [][]float64{
		{2, 2, 7, 7},
		{-5, -5, 1, 1},   // partially outside, clipped
		{20, 20, 30, 30}, // fully outside, skipped
		{1, 2, 3},        // malformed, skipped
	})

	if got := out.RGBAAt(2, 2); got != boxColor {
		t.Errorf("corner (2,2) = %v, want box color", got)
	}
	if got := out.RGBAAt(4, 4); got == boxColor {
		t.Error("interior of box should not be filled")
	}
	if got := out.RGBAAt(0, 0); got != boxColor {
		t.Errorf("clipped box corner (0,0) = %v, want box color", got)
	}
	// The input is never modified.
	if got := color.RGBAModel.Convert(src.At(2, 2)); got == boxColor {
		t.Error("Annotate modified its input")
	}
}
