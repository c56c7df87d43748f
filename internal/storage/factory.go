package storage

import (
	"fmt"

	"github.com/refind-app/refind/internal/config"
)

// NewStore creates an ImageStore based on the configuration.
// Parameters:
//   - cfg: storage configuration.
//   - imageSize: standard square edge size for loaded images.
// Returns:
//   - ImageStore: initialized store implementation.
//   - error: non-nil if the backend cannot be created.
func NewStore(cfg *config.StorageConfig, imageSize int) (ImageStore, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalStore(cfg.LocalDir, cfg.PublicURL, imageSize)
	case "s3":
		return NewS3Store(&S3Config{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			PublicURL: cfg.PublicURL,
			ImageSize: imageSize,
		})
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
}
