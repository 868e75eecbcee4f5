package artifact

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config contains configuration for S3-compatible object storage.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool

	// PublicURL is the base URL clients fetch objects from. When empty the
	// endpoint's path-style URL is used.
	PublicURL string
}

// S3Store writes artifacts as PNG objects into a bucket. Locations have the
// form s3://<bucket>/<key>.
type S3Store struct {
	client    *minio.Client
	bucket    string
	region    string
	prefix    string
	publicURL string
	now       func() time.Time
	logger    *slog.Logger

	// bucketMu guards bucketReady. Only a successful check is remembered so
	// an unreachable endpoint at startup does not fail every later call.
	bucketMu    sync.Mutex
	bucketReady bool
}

// NewS3Store creates a minio client for cfg. The bucket is created lazily on
// first use if it does not exist.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	publicURL := strings.TrimRight(strings.TrimSpace(cfg.PublicURL), "/")
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, endpoint, bucket)
	}

	return &S3Store{
		client:    client,
		bucket:    bucket,
		region:    region,
		prefix:    normalizePrefix(cfg.Prefix),
		publicURL: publicURL,
		now:       time.Now,
		logger:    slog.Default().With("component", "artifact.s3", "bucket", bucket),
	}, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	s.bucketMu.Lock()
	defer s.bucketMu.Unlock()
	if s.bucketReady {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return err
		}
		s.logger.Info("bucket created")
	}
	s.bucketReady = true
	return nil
}

// Save encodes img as PNG and uploads it under a fresh key.
func (s *S3Store) Save(ctx context.Context, img image.Image) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}

	key := s.prefix + objectName(s.now())
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), minio.PutObjectOptions{
		ContentType: "image/png",
	})
	if err != nil {
		return "", fmt.Errorf("put object %q: %w", key, err)
	}

	return s.location(key), nil
}

// Delete removes the object at location. A missing object is not an error.
func (s *S3Store) Delete(ctx context.Context, location string) error {
	key, err := s.keyOf(location)
	if err != nil {
		return err
	}

	err = s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		code := minio.ToErrorResponse(err).Code
		if code == "NoSuchKey" || code == "NoSuchBucket" {
			return nil
		}
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	return nil
}

// URL returns the public URL of the object at location.
func (s *S3Store) URL(location string) string {
	key, err := s.keyOf(location)
	if err != nil {
		return ""
	}
	return s.publicURL + "/" + key
}

// List returns every PNG object under the store's prefix.
func (s *S3Store) List(ctx context.Context) ([]Object, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	objects := make([]Object, 0, 32)
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if !strings.HasSuffix(obj.Key, ".png") {
			continue
		}
		objects = append(objects, Object{
			Location: s.location(obj.Key),
			ModTime:  obj.LastModified,
		})
	}
	return objects, nil
}

// Ping checks the bucket is reachable.
func (s *S3Store) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", s.bucket)
	}
	return nil
}

func (s *S3Store) location(key string) string {
	return "s3://" + s.bucket + "/" + key
}

// keyOf extracts the object key from a location produced by this store.
func (s *S3Store) keyOf(location string) (string, error) {
	want := "s3://" + s.bucket + "/"
	if !strings.HasPrefix(location, want) {
		return "", fmt.Errorf("location %q does not belong to bucket %q", location, s.bucket)
	}
	key := strings.TrimPrefix(location, want)
	if key == "" || !strings.HasPrefix(key, s.prefix) {
		return "", fmt.Errorf("location %q is outside prefix %q", location, s.prefix)
	}
	return key, nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

var _ Store = (*S3Store)(nil)
