package storage

import (
	"context"
	"fmt"

	infraconfig "github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/printing"
	"go.uber.org/zap"
)

// Storage type identifiers accepted in StorageConfig.Type
const (
	TypeLocal = "local"
	TypeS3    = "s3"
)

// NewArtifactStorage builds the artifact backend selected by cfg.Type.
// For S3 the bucket is created when missing.
func NewArtifactStorage(ctx context.Context, cfg *infraconfig.StorageConfig, logger *zap.Logger) (printing.ArtifactStorage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage configuration is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Type {
	case TypeLocal, "":
		return printing.NewFileSystemStorage(&printing.FileSystemStorageConfig{
			BasePath: cfg.LocalPath,
			BaseURL:  cfg.BaseURL,
			Logger:   logger.Named("artifact-storage"),
		})
	case TypeS3:
		s3Storage, err := NewS3ArtifactStorage(cfg,
			WithLogger(logger.Named("artifact-storage")),
			WithPresignExpiration(cfg.PresignExpiration),
		)
		if err != nil {
			return nil, err
		}
		if err := s3Storage.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s3Storage, nil
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}
