package detect

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/wastewatch/pkg/apperr"
	"mercator-hq/wastewatch/pkg/artifact"
	"mercator-hq/wastewatch/pkg/config"
	"mercator-hq/wastewatch/pkg/detection"
	"mercator-hq/wastewatch/pkg/index"
	"mercator-hq/wastewatch/pkg/telemetry/metrics"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 128, A: 255})
		}
	}
	return img
}

func twoBottles() *detection.StaticDetector {
	return &detection.StaticDetector{
		Confidences: []float64{0.91, 0.62, 0.2},
		Classes:     []string{"bottle", "can", "bag"},
		Boxes:       [][]float64{{1, 1, 10, 10}, {12, 2, 20, 18}, {0, 0, 4, 4}},
	}
}

type failingStore struct {
	artifact.Store
	err error
}

func (f *failingStore) Save(context.Context, image.Image) (string, error) { return "", f.err }

type failingIndex struct {
	index.Index
	err error
}

func (f *failingIndex) Insert(context.Context, string, time.Time, time.Time) (string, error) {
	return "", f.err
}

func newService(t *testing.T, cfg Config) *Service {
	t.Helper()
	svc, err := New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return svc
}

func TestDetect_RegistersArtifact(t *testing.T) {
	store, err := artifact.NewFileStore(t.TempDir(), "/static/PREDICTIONS")
	if err != nil {
		t.Fatal(err)
	}
	idx := index.NewMemoryIndex()
	before := time.Now()

	svc := newService(t, Config{
		Detector:   twoBottles(),
		Store:      store,
		Index:      idx,
		Retention:  5 * time.Minute,
		Confidence: 0.5,
	})

	resp, err := svc.Detect(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Detect() failed: %v", err)
	}
	after := time.Now()

	if !strings.HasPrefix(resp.ImageURL, "/static/PREDICTIONS/") || !strings.HasSuffix(resp.ImageURL, ".png") {
		t.Errorf("ImageURL = %q", resp.ImageURL)
	}
	if _, err := os.Stat(resp.Location); err != nil {
		t.Errorf("artifact file missing: %v", err)
	}
	if filepath.Base(resp.Location) != filepath.Base(resp.ImageURL) {
		t.Errorf("URL %q does not name file %q", resp.ImageURL, resp.Location)
	}

	// One entry per detection above the confidence threshold, scaled to 0-100.
	if len(resp.Detections) != 2 {
		t.Fatalf("got %d detections, want 2", len(resp.Detections))
	}
	if resp.Detections[0].Confidence != 91 || resp.Detections[0].Class != "bottle" {
		t.Errorf("first detection = %+v", resp.Detections[0])
	}
	if len(resp.Detections[1].Box) != 4 {
		t.Errorf("box = %v", resp.Detections[1].Box)
	}

	rec, err := idx.Get(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("index record missing: %v", err)
	}
	if rec.Location != resp.Location {
		t.Errorf("record location = %q, want %q", rec.Location, resp.Location)
	}
	lo, hi := before.Add(5*time.Minute), after.Add(5*time.Minute)
	if rec.ExpiresAt.Before(lo) || rec.ExpiresAt.After(hi) {
		t.Errorf("ExpiresAt = %v, want within [%v, %v]", rec.ExpiresAt, lo, hi)
	}
}

func TestDetect_ExpiryArithmetic(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)

	for _, retention := range []time.Duration{0, time.Minute, 5 * time.Minute, 24 * time.Hour} {
		idx := index.NewMemoryIndex()
		store, err := artifact.NewFileStore(t.TempDir(), "/p")
		if err != nil {
			t.Fatal(err)
		}
		svc := newService(t, Config{
			Detector:  twoBottles(),
			Store:     store,
			Index:     idx,
			Retention: retention,
			Now:       func() time.Time { return t0 },
		})

		resp, err := svc.Detect(context.Background(), testImage())
		if err != nil {
			t.Fatalf("retention %v: Detect() failed: %v", retention, err)
		}
		rec, err := idx.Get(context.Background(), resp.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !rec.CreatedAt.Equal(t0) {
			t.Errorf("retention %v: CreatedAt = %v, want %v", retention, rec.CreatedAt, t0)
		}
		if want := t0.Add(retention); !rec.ExpiresAt.Equal(want) {
			t.Errorf("retention %v: ExpiresAt = %v, want %v", retention, rec.ExpiresAt, want)
		}
	}
}

func TestDetect_ErrorKinds(t *testing.T) {
	goodStore := func(t *testing.T) artifact.Store {
		s, err := artifact.NewFileStore(t.TempDir(), "/p")
		if err != nil {
			t.Fatal(err)
		}
		return s
	}

	tests := []struct {
		name      string
		detector  detection.Detector
		store     func(t *testing.T) artifact.Store
		idx       index.Index
		wantKind  apperr.Kind
		wantFiles int
	}{
		{
			name:     "detector failure",
			detector: &detection.StaticDetector{Err: errors.New("cuda out of memory")},
			store:    goodStore,
			idx:      index.NewMemoryIndex(),
			wantKind: apperr.KindDetection,
		},
		{
			name: "mismatched detector output",
			detector: fixedDetector{result: &detection.Result{
				Output:      testImage(),
				Confidences: []float64{0.9, 0.8},
				Classes:     []string{"bottle"},
				Boxes:       [][]float64{{0, 0, 4, 4}, {1, 1, 2, 2}},
			}},
			store:    goodStore,
			idx:      index.NewMemoryIndex(),
			wantKind: apperr.KindDetection,
		},
		{
			name:     "store failure",
			detector: twoBottles(),
			store: func(*testing.T) artifact.Store {
				return &failingStore{err: errors.New("no space left on device")}
			},
			idx:      index.NewMemoryIndex(),
			wantKind: apperr.KindStorage,
		},
		{
			name:      "index failure leaves orphan",
			detector:  twoBottles(),
			store:     goodStore,
			idx:       &failingIndex{err: index.NewStorageError("sqlite3", "insert", errors.New("database is locked"))},
			wantKind:  apperr.KindPersistence,
			wantFiles: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tt.store(t)
			svc := newService(t, Config{Detector: tt.detector, Store: store, Index: tt.idx, Retention: time.Minute})

			resp, err := svc.Detect(context.Background(), testImage())
			if err == nil {
				t.Fatalf("expected error, got %+v", resp)
			}
			if got := apperr.KindOf(err); got != tt.wantKind {
				t.Errorf("kind = %v, want %v (err: %v)", got, tt.wantKind, err)
			}
			if apperr.StatusCode(err) != 500 {
				t.Errorf("status = %d, want 500", apperr.StatusCode(err))
			}

			if fs, ok := store.(*artifact.FileStore); ok {
				objs, err := fs.List(context.Background())
				if err != nil {
					t.Fatal(err)
				}
				if len(objs) != tt.wantFiles {
					t.Errorf("files on disk = %d, want %d", len(objs), tt.wantFiles)
				}
			}
		})
	}
}

func TestDetect_DetectorAppErrorPassesThrough(t *testing.T) {
	store, _ := artifact.NewFileStore(t.TempDir(), "/p")
	svc := newService(t, Config{
		Detector: &detection.StaticDetector{Err: apperr.DetectionInit(errors.New("model not loaded"))},
		Store:    store,
		Index:    index.NewMemoryIndex(),
	})

	_, err := svc.Detect(context.Background(), testImage())
	if !apperr.Is(err, apperr.KindDetectionInit) {
		t.Errorf("err = %v, want detection init kind", err)
	}
}

func TestDetect_CanceledAfterModelStillRegisters(t *testing.T) {
	store, _ := artifact.NewFileStore(t.TempDir(), "/p")
	idx := index.NewMemoryIndex()

	ctx, cancel := context.WithCancel(context.Background())
	det := &cancelingDetector{inner: twoBottles(), cancel: cancel}
	svc := newService(t, Config{Detector: det, Store: store, Index: idx, Retention: time.Minute})

	if _, err := svc.Detect(ctx, testImage()); err != nil {
		t.Fatalf("Detect() failed: %v", err)
	}
	if n, _ := idx.Count(context.Background()); n != 1 {
		t.Errorf("index count = %d, want 1", n)
	}
}

// fixedDetector returns result as is, without the checks StaticDetector does.
type fixedDetector struct {
	result *detection.Result
}

func (d fixedDetector) Detect(context.Context, image.Image, detection.Options) (*detection.Result, error) {
	return d.result, nil
}

// cancelingDetector cancels the request context right after the model answers.
type cancelingDetector struct {
	inner  detection.Detector
	cancel context.CancelFunc
}

func (d *cancelingDetector) Detect(ctx context.Context, img image.Image, opts detection.Options) (*detection.Result, error) {
	res, err := d.inner.Detect(ctx, img, opts)
	d.cancel()
	return res, err
}

func TestDetect_Metrics(t *testing.T) {
	store, _ := artifact.NewFileStore(t.TempDir(), "/p")
	enabled := true
	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: &enabled, Namespace: "test"}, prometheus.NewRegistry())

	svc := newService(t, Config{Detector: twoBottles(), Store: store, Index: index.NewMemoryIndex(), Metrics: collector})
	for i := 0; i < 3; i++ {
		if _, err := svc.Detect(context.Background(), testImage()); err != nil {
			t.Fatal(err)
		}
	}

	const want = `
# HELP test_artifacts_saved_total Total number of artifacts written and registered in the index
# TYPE test_artifacts_saved_total counter
test_artifacts_saved_total 3
`
	if err := testutil.GatherAndCompare(collector.Registry(), strings.NewReader(want), "test_artifacts_saved_total"); err != nil {
		t.Error(err)
	}
}

func TestNew_Validation(t *testing.T) {
	store, _ := artifact.NewFileStore(t.TempDir(), "/p")
	idx := index.NewMemoryIndex()
	det := twoBottles()

	cases := map[string]Config{
		"no detector":        {Store: store, Index: idx},
		"no store":           {Detector: det, Index: idx},
		"no index":           {Detector: det, Store: store},
		"negative retention": {Detector: det, Store: store, Index: idx, Retention: -time.Second},
	}
	for name, cfg := range cases {
		if _, err := New(cfg); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestDecodeImage(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage()); err != nil {
		t.Fatal(err)
	}

	data := buf.Bytes()

	img, err := DecodeImage(bytes.NewReader(data), 32*24)
	if err != nil {
		t.Fatalf("DecodeImage(png) failed: %v", err)
	}
	if img.Bounds().Dx() != 32 {
		t.Errorf("width = %d", img.Bounds().Dx())
	}

	for name, body := range map[string][]byte{
		"empty":     nil,
		"text":      []byte("definitely not an image"),
		"truncated": data[:40],
	} {
		_, err := DecodeImage(bytes.NewReader(body), 0)
		if !apperr.Is(err, apperr.KindFileRead) {
			t.Errorf("%s: err = %v, want file read kind", name, err)
		}
		if apperr.StatusCode(err) != 415 {
			t.Errorf("%s: status = %d, want 415", name, apperr.StatusCode(err))
		}
	}
}

// pngHeader returns a PNG signature and IHDR chunk declaring a w×h 8-bit
// grayscale image, with no pixel data behind it.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth; color type, compression, filter, interlace stay 0

	chunk := append([]byte("IHDR"), ihdr...)
	binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestDecodeImage_PixelLimit(t *testing.T) {
	huge := pngHeader(20000, 20000)

	_, err := DecodeImage(bytes.NewReader(huge), 40_000_000)
	if !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("err = %v, want ErrImageTooLarge", err)
	}
	if !apperr.Is(err, apperr.KindFileRead) {
		t.Errorf("err = %v, want file read kind", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage()); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()

	// One pixel under the image size is over the limit.
	if _, err := DecodeImage(bytes.NewReader(data), 32*24-1); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("err = %v, want ErrImageTooLarge", err)
	}
	// The bytes consumed for the header are replayed into the full decode.
	img, err := DecodeImage(bytes.NewReader(data), 32*24)
	if err != nil {
		t.Fatalf("DecodeImage at the limit failed: %v", err)
	}
	if got := img.Bounds(); got.Dx() != 32 || got.Dy() != 24 {
		t.Errorf("bounds = %v", got)
	}
}
