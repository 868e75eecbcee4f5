package artifact

import (
	"fmt"

	"mercator-hq/wastewatch/pkg/config"
)

// Open builds the store selected by cfg.Backend.
func Open(cfg *config.ArtifactsConfig) (Store, error) {
	switch cfg.Backend {
	case "file":
		return NewFileStore(cfg.SavePath, cfg.AccessPath)
	case "s3":
		return NewS3Store(S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			UseSSL:    cfg.S3.UseSSL,
			PublicURL: cfg.S3.PublicURL,
		})
	default:
		return nil, fmt.Errorf("unsupported artifact backend %q", cfg.Backend)
	}
}
